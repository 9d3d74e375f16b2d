// Пакет convert — преобразование DOCX в PDF внешним офисным пакетом.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrConversionFailed — конвертер завершился с ошибкой, по таймауту
// или не создал выходной файл.
var ErrConversionFailed = errors.New("falha na conversão para PDF")

// Prometheus метрики конвертера
var (
	conversionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sd_conversion_duration_seconds",
		Help:    "Длительность конвертации DOCX в PDF в секундах",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"result"})
)

// ConversionError — ненулевой код завершения конвертера.
type ConversionError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: código de saída %d: %s", ErrConversionFailed, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Unwrap позволяет сопоставлять ошибку с ErrConversionFailed через errors.Is.
func (e *ConversionError) Unwrap() error {
	return ErrConversionFailed
}

// Converter преобразует входной документ в PDF внутри outDir.
// Возвращает путь к созданному PDF.
type Converter interface {
	Convert(ctx context.Context, inputPath, outDir string) (string, error)
}

// Soffice — Converter на основе LibreOffice в режиме headless.
// Каждый вызов запускает ровно один процесс с собственным профилем
// пользователя внутри outDir.
type Soffice struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSoffice создаёт конвертер. path — путь к исполняемому файлу soffice.
func NewSoffice(path string, timeout time.Duration, logger *slog.Logger) *Soffice {
	return &Soffice{
		path:    path,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "soffice")),
	}
}

// Convert запускает soffice --convert-to pdf и проверяет наличие результата.
func (s *Soffice) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	start := time.Now()
	out, err := s.convert(ctx, inputPath, outDir)

	result := "success"
	if err != nil {
		result = "error"
	}
	conversionDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return out, err
}

func (s *Soffice) convert(ctx context.Context, inputPath, outDir string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	cmd := exec.CommandContext(ctx, s.path,
		"--headless",
		"--norestore",
		"--invisible",
		"-env:UserInstallation=file://"+filepath.ToSlash(filepath.Join(absOut, ".lo-profile")),
		"--convert-to", "pdf",
		"--outdir", absOut,
		inputPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Дочерние процессы soffice наследуют stdout; не ждём их дольше секунды после отмены
	cmd.WaitDelay = time.Second

	s.logger.Debug("Запуск конвертации",
		slog.String("input", inputPath),
		slog.String("outdir", absOut),
	)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.logger.Warn("Конвертация прервана",
				slog.String("input", inputPath),
				slog.String("error", ctxErr.Error()),
			)
			return "", fmt.Errorf("%w: tempo esgotado: %v", ErrConversionFailed, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			convErr := &ConversionError{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}
			s.logger.Warn("Конвертер завершился с ошибкой",
				slog.String("input", inputPath),
				slog.Int("exit_code", convErr.ExitCode),
				slog.String("stderr", strings.TrimSpace(convErr.Stderr)),
			)
			return "", convErr
		}
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(absOut, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		s.logger.Warn("Конвертер не создал PDF",
			slog.String("expected", pdfPath),
			slog.String("stdout", strings.TrimSpace(stdout.String())),
		)
		return "", fmt.Errorf("%w: arquivo não gerado (%s)", ErrConversionFailed, filepath.Base(pdfPath))
	}

	return pdfPath, nil
}
