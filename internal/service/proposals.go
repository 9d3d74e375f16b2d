// proposals.go — сервис коммерческих предложений: запись в хранилище,
// формирование PDF, список последних, удаление.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/senadocs/internal/besteffort"
	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/repository"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// DefaultRecentLimit — размер списка последних предложений.
const DefaultRecentLimit = 200

// Mirror — внешняя копия готовых PDF (реализуется *s3mirror.Mirror).
type Mirror interface {
	Upload(ctx context.Context, localPath string) error
	Remove(ctx context.Context, localPath string) error
}

// ProposalService — сервис предложений.
type ProposalService struct {
	repo          repository.ProposalRepository
	docs          *DocumentService
	store         *filestore.FileStore
	mirror        Mirror
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewProposalService создаёт сервис предложений. mirror может быть nil.
func NewProposalService(
	cfg *config.Config,
	repo repository.ProposalRepository,
	docs *DocumentService,
	store *filestore.FileStore,
	mirror Mirror,
	logger *slog.Logger,
) *ProposalService {
	return &ProposalService{
		repo:          repo,
		docs:          docs,
		store:         store,
		mirror:        mirror,
		retentionDays: cfg.RetentionDays,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "proposals")),
	}
}

// Create проверяет поля и сохраняет новое предложение (без PDF).
// Некорректные поля отклоняются до записи в хранилище.
func (s *ProposalService) Create(ctx context.Context, payload map[string]string) (*model.Proposal, error) {
	now := s.now()
	if _, err := BuildValues(config.KindProposal, payload, now); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		fields[k] = strings.TrimSpace(v)
	}

	p := model.NewProposal(fields[model.FieldClient], fields, now, s.retentionDays)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("ошибка сохранения предложения: %w", err)
	}

	s.logger.Info("Предложение создано",
		slog.Int64("id", p.ID),
		slog.String("client", p.ClientName),
		slog.Time("expires_at", p.ExpiresAt),
	)
	return p, nil
}

// Get возвращает предложение по идентификатору.
func (s *ProposalService) Get(ctx context.Context, id int64) (*model.Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return p, nil
}

// ListRecent возвращает последние предложения, новые первыми.
// limit <= 0 — DefaultRecentLimit.
func (s *ProposalService) ListRecent(ctx context.Context, limit int) ([]*model.Proposal, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	items, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка предложений: %w", err)
	}
	return items, nil
}

// Generate формирует PDF предложения по сохранённым полям и изображению,
// записывает путь в хранилище и (если настроено) копирует PDF в зеркало.
// Загруженное изображение удаляется после использования при любом исходе.
func (s *ProposalService) Generate(ctx context.Context, p *model.Proposal, imagePath string) error {
	if imagePath != "" {
		defer besteffort.Remove(s.logger, imagePath)
	}

	target := s.store.ProposalPath(p.ClientName, p.ID)
	if err := s.docs.Generate(ctx, config.KindProposal, p.Payload, target, imagePath); err != nil {
		return err
	}

	if err := s.repo.SetPDFPath(ctx, p.ID, target); err != nil {
		return mapRepoError(err)
	}
	p.PDFPath = &target

	if s.mirror != nil {
		besteffort.Do(s.logger, "mirror_upload", func() error {
			return s.mirror.Upload(ctx, target)
		}, slog.Int64("id", p.ID))
	}
	return nil
}

// Delete удаляет предложение и его PDF (удаление файла — best-effort).
func (s *ProposalService) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err)
	}

	s.removeArtifact(ctx, p)

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}

	s.logger.Info("Предложение удалено", slog.Int64("id", id))
	return nil
}

// PDFPath возвращает путь к существующему PDF предложения.
// ErrNotFound, если документ не сформирован или файл отсутствует.
func (s *ProposalService) PDFPath(ctx context.Context, id int64) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.HasPDF() || !filestore.FileExists(*p.PDFPath) {
		return "", ErrNotFound
	}
	return *p.PDFPath, nil
}

// removeArtifact удаляет PDF предложения и его копию в зеркале.
func (s *ProposalService) removeArtifact(ctx context.Context, p *model.Proposal) {
	if !p.HasPDF() {
		return
	}
	besteffort.Remove(s.logger, *p.PDFPath)
	if s.mirror != nil {
		besteffort.Do(s.logger, "mirror_remove", func() error {
			return s.mirror.Remove(ctx, *p.PDFPath)
		}, slog.Int64("id", p.ID))
	}
}
