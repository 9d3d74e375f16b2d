// sweeper.go — сервис очистки по сроку хранения.
//
// Sweeper выполняет две задачи:
//  1. Удаляет предложения, созданные раньше now - RetentionDays (PDF + копия в зеркале + запись)
//  2. Удаляет устаревшие временные файлы (*.pdf, *.png, *.jpg, *.jpeg) по mtime
//
// Запускается горутиной с периодическим тикером (SD_SWEEP_INTERVAL), по запросу
// API/CLI и из UI не чаще одного раза в SD_SWEEP_THROTTLE. Ошибки очистки
// никогда не возвращаются вызывающему: они логируются и учитываются в метриках.
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/senadocs/internal/besteffort"
	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/repository"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// Prometheus метрики очистки
var (
	// sweepRunsTotal — количество проходов очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_sweep_runs_total",
		Help: "Общее количество проходов очистки",
	})

	// sweepRecordsRemovedTotal — количество удалённых просроченных предложений.
	sweepRecordsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_sweep_records_removed_total",
		Help: "Общее количество предложений, удалённых по сроку хранения",
	})

	// sweepTempFilesRemovedTotal — количество удалённых временных файлов.
	sweepTempFilesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_sweep_temp_files_removed_total",
		Help: "Общее количество удалённых устаревших временных файлов",
	})

	// sweepErrorsTotal — количество проглоченных ошибок очистки.
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_sweep_errors_total",
		Help: "Общее количество ошибок очистки",
	})

	// sweepDurationSeconds — длительность прохода очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sd_sweep_duration_seconds",
		Help:    "Длительность прохода очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// tempExtensions — расширения временных файлов, удаляемых по возрасту.
var tempExtensions = map[string]bool{".pdf": true, ".png": true, ".jpg": true, ".jpeg": true}

// Sweeper — сервис очистки.
type Sweeper struct {
	repo          repository.ProposalRepository
	store         *filestore.FileStore
	mirror        Mirror
	retentionDays int
	tempMaxAge    time.Duration
	interval      time.Duration
	throttle      time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu sync.Mutex // защита от параллельного запуска RunOnce

	throttleMu sync.Mutex
	lastRun    time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper создаёт сервис очистки. mirror может быть nil.
func NewSweeper(
	cfg *config.Config,
	repo repository.ProposalRepository,
	store *filestore.FileStore,
	mirror Mirror,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		repo:          repo,
		store:         store,
		mirror:        mirror,
		retentionDays: cfg.RetentionDays,
		tempMaxAge:    cfg.TempMaxAge,
		interval:      cfg.SweepInterval,
		throttle:      cfg.SweepThrottle,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("Очистка запущена",
		slog.String("interval", s.interval.String()),
		slog.Int("retention_days", s.retentionDays),
	)
}

// Stop останавливает фоновую очистку и дожидается завершения текущего прохода.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	// Первый проход — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// MaybeSweep выполняет проход, если с предыдущего прошло не меньше throttle.
// Если проход уже выполняется, новый не запускается.
func (s *Sweeper) MaybeSweep(ctx context.Context) *model.SweepResult {
	s.throttleMu.Lock()
	now := s.now()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.throttle {
		s.throttleMu.Unlock()
		return &model.SweepResult{StartedAt: now, Skipped: true}
	}
	s.lastRun = now
	s.throttleMu.Unlock()

	if !s.mu.TryLock() {
		return &model.SweepResult{StartedAt: now, Skipped: true}
	}
	defer s.mu.Unlock()
	return s.runLocked(ctx)
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (s *Sweeper) RunOnce(ctx context.Context) *model.SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.throttleMu.Lock()
	s.lastRun = s.now()
	s.throttleMu.Unlock()

	return s.runLocked(ctx)
}

func (s *Sweeper) runLocked(ctx context.Context) *model.SweepResult {
	start := time.Now()
	result := &model.SweepResult{StartedAt: s.now()}

	s.logger.Debug("Проход очистки начат")

	// Фаза 1: просроченные предложения
	result.RecordsRemoved = s.SweepExpired(ctx, s.retentionDays)

	// Фаза 2: временные файлы и забытые каталоги рендеринга
	for _, dir := range s.store.TempDirs() {
		result.TempFilesRemoved += s.SweepStaleTemp(dir, s.tempMaxAge)
	}
	result.TempFilesRemoved += s.sweepWorkDirs(s.tempMaxAge)

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepRecordsRemovedTotal.Add(float64(result.RecordsRemoved))
	sweepTempFilesRemovedTotal.Add(float64(result.TempFilesRemoved))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Проход очистки завершён",
		slog.Int("records_removed", result.RecordsRemoved),
		slog.Int("temp_files_removed", result.TempFilesRemoved),
		slog.Duration("duration", result.Duration),
	)
	return result
}

// SweepExpired удаляет предложения, созданные раньше now - retentionDays.
// PDF каждого предложения удаляется не более одного раза, затем все записи
// удаляются одним запросом. Возвращает количество удалённых записей.
func (s *Sweeper) SweepExpired(ctx context.Context, retentionDays int) int {
	cutoff := s.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	var expired []*model.Proposal
	ok := besteffort.Do(s.logger, "list_expired", func() error {
		var err error
		expired, err = s.repo.ListCreatedBefore(ctx, cutoff)
		return err
	})
	if !ok {
		sweepErrorsTotal.Inc()
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	removedFiles := make(map[string]bool, len(expired))
	ids := make([]int64, 0, len(expired))
	for _, p := range expired {
		ids = append(ids, p.ID)
		if !p.HasPDF() || removedFiles[*p.PDFPath] {
			continue
		}
		removedFiles[*p.PDFPath] = true
		if !besteffort.Remove(s.logger, *p.PDFPath) {
			sweepErrorsTotal.Inc()
		}
		if s.mirror != nil {
			path := *p.PDFPath
			if !besteffort.Do(s.logger, "mirror_remove", func() error {
				return s.mirror.Remove(ctx, path)
			}, slog.Int64("id", p.ID)) {
				sweepErrorsTotal.Inc()
			}
		}
	}

	var removed int
	ok = besteffort.Do(s.logger, "delete_expired", func() error {
		var err error
		removed, err = s.repo.DeleteByIDs(ctx, ids)
		return err
	}, slog.Int("count", len(ids)))
	if !ok {
		sweepErrorsTotal.Inc()
		return 0
	}

	s.logger.Debug("Просроченные предложения удалены",
		slog.Int("count", removed),
		slog.Time("cutoff", cutoff),
	)
	return removed
}

// SweepStaleTemp удаляет файлы *.pdf, *.png, *.jpg, *.jpeg непосредственно
// в dir, чей mtime старше now - maxAge. Отсутствующий каталог — 0.
// Ошибки по отдельным файлам пропускаются.
func (s *Sweeper) SweepStaleTemp(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Ошибка чтения временного каталога",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			sweepErrorsTotal.Inc()
		}
		return 0
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !tempExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			continue
		}
		removed++
	}
	return removed
}

// sweepWorkDirs удаляет каталоги рендеринга, оставшиеся после аварийного
// завершения процесса.
func (s *Sweeper) sweepWorkDirs(maxAge time.Duration) int {
	root := s.store.Dir(filestore.WorkDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if besteffort.Do(s.logger, "remove_stale_workdir", func() error {
			return os.RemoveAll(path)
		}, slog.String("path", path)) {
			removed++
		}
	}
	return removed
}
