// documents.go — конвейер формирования документов:
// сборка контекста → DOCX → PDF → атомарное размещение результата.
//
// Каждый вызов работает в собственном временном каталоге внутри
// filestore.WorkDir; каталог удаляется при любом исходе.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/senadocs/internal/besteffort"
	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/render/docx"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// Prometheus метрики конвейера
var (
	// documentsGeneratedTotal — количество запусков конвейера по виду и результату.
	documentsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sd_documents_generated_total",
		Help: "Общее количество сформированных документов",
	}, []string{"kind", "result"})

	// documentGenerationDuration — длительность формирования документа.
	documentGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sd_document_generation_duration_seconds",
		Help:    "Длительность формирования документа в секундах",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"kind"})
)

// Renderer заполняет DOCX-шаблон (реализуется *docx.Renderer).
type Renderer interface {
	Render(ctx context.Context, templatePath string, rc docx.Context, outDir string) (string, error)
}

// DocumentService — конвейер формирования PDF.
type DocumentService struct {
	cfg       *config.Config
	store     *filestore.FileStore
	renderer  Renderer
	converter convert.Converter
	now       func() time.Time
	logger    *slog.Logger
}

// NewDocumentService создаёт конвейер.
func NewDocumentService(
	cfg *config.Config,
	store *filestore.FileStore,
	renderer Renderer,
	converter convert.Converter,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		cfg:       cfg,
		store:     store,
		renderer:  renderer,
		converter: converter,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "documents")),
	}
}

// Generate формирует документ вида kind из fields и помещает PDF по пути targetPath.
// Для видов с изображением imagePath обязателен. Ошибки валидации возвращаются
// до создания временного каталога и запуска конвертера; при любой ошибке
// targetPath не изменяется.
func (s *DocumentService) Generate(ctx context.Context, kind string, fields map[string]string, targetPath, imagePath string) error {
	start := time.Now()
	err := s.generate(ctx, kind, fields, targetPath, imagePath)

	documentsGeneratedTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	documentGenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Warn("Документ не сформирован",
			slog.String("kind", kind),
			slog.String("result", resultLabel(err)),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.logger.Info("Документ сформирован",
		slog.String("kind", kind),
		slog.String("target", targetPath),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// GenerateTemp формирует документ во временном подкаталоге вида
// ("CONTRATO - <nome>_<ts>_<uuid>.pdf") и возвращает путь к PDF.
// Такие файлы удаляются очисткой по возрасту.
func (s *DocumentService) GenerateTemp(ctx context.Context, kind string, fields map[string]string, imagePath string) (string, error) {
	spec, ok := kinds[kind]
	if !ok || spec.tempDir == "" {
		return "", ErrUnknownKind
	}
	target := s.store.TempOutputPath(spec.tempDir, spec.prefix, fields[spec.nameField])
	if err := s.Generate(ctx, kind, fields, target, imagePath); err != nil {
		return "", err
	}
	return target, nil
}

func (s *DocumentService) generate(ctx context.Context, kind string, fields map[string]string, targetPath, imagePath string) error {
	// 1. Контекст шаблона
	values, err := BuildValues(kind, fields, s.now())
	if err != nil {
		return err
	}
	spec := kinds[kind]

	var image *docx.Image
	if spec.imageKey != "" {
		if imagePath == "" {
			return invalid("%s", spec.imageMessage)
		}
		image = &docx.Image{
			Placeholder: spec.imageKey,
			Path:        imagePath,
			WidthMM:     s.cfg.Documents[kind].ImageWidthMM,
		}
	}

	templatePath := s.cfg.TemplatePath(kind)
	if templatePath == "" {
		return fmt.Errorf("%w: шаблон для %s не настроен", docx.ErrTemplate, kind)
	}

	// 2. Приватный временный каталог
	workDir, err := os.MkdirTemp(s.store.Dir(filestore.WorkDir), "render-*")
	if err != nil {
		return fmt.Errorf("%w: ошибка создания временного каталога: %v", filestore.ErrStorageIO, err)
	}
	defer besteffort.Do(s.logger, "remove_workdir", func() error {
		return os.RemoveAll(workDir)
	}, slog.String("path", workDir))

	// 3. DOCX
	docxPath, err := s.renderer.Render(ctx, templatePath, docx.Context{Values: values, Image: image}, workDir)
	if err != nil {
		return err
	}

	// 4. PDF
	pdfPath, err := s.converter.Convert(ctx, docxPath, workDir)
	if err != nil {
		return err
	}

	// 5. Атомарное размещение
	return filestore.PlaceFile(pdfPath, targetPath)
}

// resultLabel — значение метки result.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, convert.ErrConversionFailed):
		return "conversion_failed"
	case errors.Is(err, docx.ErrTemplate), errors.Is(err, docx.ErrImage):
		return "render_failed"
	case errors.Is(err, filestore.ErrStorageIO):
		return "storage_failed"
	default:
		return "error"
	}
}
