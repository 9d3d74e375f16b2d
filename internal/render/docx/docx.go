// Пакет docx — заполнение DOCX-шаблонов: подстановка {{ KEY }} в тексте
// документа, колонтитулах и встраивание изображения на место плейсхолдера.
// Разобранные шаблоны кэшируются в LRU с TTL и инвалидируются по mtime.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ошибки рендеринга.
var (
	// ErrTemplate — шаблон отсутствует или не является DOCX.
	ErrTemplate = errors.New("modelo de documento indisponível ou corrompido")
	// ErrImage — изображение недоступно или имеет неподдерживаемый формат.
	ErrImage = errors.New("imagem indisponível ou em formato não suportado")
)

// Prometheus-метрики кэша шаблонов.
var (
	templateCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_template_cache_hits_total",
		Help: "Общее количество попаданий в кэш DOCX-шаблонов.",
	})
	templateCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_template_cache_misses_total",
		Help: "Общее количество промахов кэша DOCX-шаблонов.",
	})
)

// Image — изображение, встраиваемое на место плейсхолдера.
type Image struct {
	// Placeholder — ключ плейсхолдера (например, IMAGEM)
	Placeholder string
	// Path — путь к файлу PNG/JPEG
	Path string
	// WidthMM — ширина изображения в документе, высота по пропорциям
	WidthMM float64
}

// Context — значения для подстановки в шаблон.
type Context struct {
	// Values — ключ плейсхолдера → текст
	Values map[string]string
	// Image — необязательное изображение
	Image *Image
}

// Renderer заполняет DOCX-шаблоны. Безопасен для конкурентного использования.
type Renderer struct {
	cache  *expirable.LRU[string, *template]
	logger *slog.Logger
}

// template — разобранный шаблон: содержимое всех частей архива.
type template struct {
	modTime time.Time
	size    int64
	parts   []part
}

// part — одна часть (файл) DOCX-архива.
type part struct {
	name     string
	modified time.Time
	data     []byte
}

// Части, в которых выполняется подстановка текста.
var textPartRe = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
)

// NewRenderer создаёт Renderer с кэшем на cacheSize шаблонов.
func NewRenderer(cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *Renderer {
	return &Renderer{
		cache:  expirable.NewLRU[string, *template](cacheSize, nil, cacheTTL),
		logger: logger.With(slog.String("component", "docx")),
	}
}

// Render заполняет шаблон templatePath значениями rc и записывает результат
// в outDir под именем шаблона. Возвращает путь к созданному файлу.
// Плейсхолдеры без значения остаются в тексте без изменений.
func (r *Renderer) Render(ctx context.Context, templatePath string, rc Context, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tpl, err := r.load(templatePath)
	if err != nil {
		return "", err
	}

	var img *embeddedImage
	if rc.Image != nil {
		img, err = loadImage(rc.Image)
		if err != nil {
			return "", err
		}
	}

	parts := make([]part, 0, len(tpl.parts)+1)
	imageUsed := false

	for _, p := range tpl.parts {
		if textPartRe.MatchString(p.name) {
			var imgRun func() string
			if img != nil && p.name == documentPart {
				imgRun = func() string {
					imageUsed = true
					return img.run()
				}
			}
			p.data = substitute(p.data, rc.Values, placeholderOf(rc.Image), imgRun)
		}
		parts = append(parts, p)
	}

	if imageUsed {
		parts, err = attachImage(parts, img)
		if err != nil {
			return "", err
		}
	} else if img != nil {
		r.logger.Warn("Плейсхолдер изображения не найден в шаблоне",
			slog.String("template", templatePath),
			slog.String("placeholder", rc.Image.Placeholder),
		)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(templatePath), filepath.Ext(templatePath))
	outPath := filepath.Join(outDir, base+".docx")
	if err := writeArchive(outPath, parts); err != nil {
		return "", err
	}
	return outPath, nil
}

// load возвращает шаблон из кэша или читает его с диска.
// Запись кэша считается устаревшей при изменении mtime или размера файла.
func (r *Renderer) load(path string) (*template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	if tpl, ok := r.cache.Get(path); ok && tpl.modTime.Equal(info.ModTime()) && tpl.size == info.Size() {
		templateCacheHits.Inc()
		return tpl, nil
	}
	templateCacheMisses.Inc()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, path, err)
	}
	defer zr.Close()

	tpl := &template{modTime: info.ModTime(), size: info.Size()}
	hasDocument := false
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, f.Name, err)
		}
		if f.Name == documentPart {
			hasDocument = true
		}
		tpl.parts = append(tpl.parts, part{name: f.Name, modified: f.Modified, data: data})
	}
	if !hasDocument {
		return nil, fmt.Errorf("%w: %s не содержит %s", ErrTemplate, path, documentPart)
	}

	r.cache.Add(path, tpl)
	r.logger.Debug("Шаблон загружен", slog.String("path", path), slog.Int("parts", len(tpl.parts)))
	return tpl, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// writeArchive записывает части в новый DOCX-архив.
func writeArchive(outPath string, parts []part) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: p.modified,
		})
		if err != nil {
			return fmt.Errorf("ошибка записи части %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return fmt.Errorf("ошибка записи части %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ошибка формирования архива: %w", err)
	}

	if err := os.WriteFile(outPath, buf.Bytes(), 0o640); err != nil {
		return fmt.Errorf("ошибка записи документа %s: %w", outPath, err)
	}
	return nil
}

func placeholderOf(img *Image) string {
	if img == nil {
		return ""
	}
	return img.Placeholder
}
