package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/database"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/render/docx"
	"github.com/bigkaa/senadocs/internal/repository"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// fixedNow — фиксированное "сейчас" для детерминированных дат.
var fixedNow = time.Date(2026, time.February, 20, 15, 4, 5, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConverter копирует входной DOCX в <outDir>/<base>.pdf.
type fakeConverter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, inputPath, outDir string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(outDir, base+".pdf")
	return out, os.WriteFile(out, data, 0o644)
}

func (f *fakeConverter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ convert.Converter = (*fakeConverter)(nil)

// fakeMirror запоминает загруженные и удалённые файлы.
type fakeMirror struct {
	mu       sync.Mutex
	uploaded []string
	removed  []string
}

func (m *fakeMirror) Upload(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded = append(m.uploaded, path)
	return nil
}

func (m *fakeMirror) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	return nil
}

// failingRepo — репозиторий, все операции которого завершаются ошибкой.
type failingRepo struct {
	repository.ProposalRepository
}

var errRepoDown = errors.New("хранилище недоступно")

func (failingRepo) ListCreatedBefore(context.Context, time.Time) ([]*model.Proposal, error) {
	return nil, errRepoDown
}

// templateBodies — тела минимальных шаблонов по видам документов.
var templateBodies = map[string]string{
	"template_proposta.docx": `<w:p><w:r><w:t>PROPOSTA {{ CLIENTE }} CPF {{ CPF }} {{ MODELO }} ` +
		`{{ FRANQUIA }} {{ VALOR }} {{ DATA }}</w:t></w:r></w:p><w:p><w:r><w:t>{{ IMAGEM }}</w:t></w:r></w:p>`,
	"template_contrato.docx": `<w:p><w:r><w:t>CONTRATO {{ DENOMINACAO }} {{ DATA_INICIO }} a {{ DATA_TERMINO }} ` +
		`{{ FRANQUIA_FORMATADA }} ({{ FRANQUIA_EXTENSO }}) {{ VALOR_MENSAL_FORMATADO }} ({{ VALOR_MENSAL_EXTENSO }}) ` +
		`{{ ACESSORIOS }} {{ DATA_ASSINATURA }}</w:t></w:r></w:p>`,
	"template_promissoria.docx": `<w:p><w:r><w:t>PROMISSORIA {{ NOME }} {{ DATA }} {{ DATA_SISTEMA }}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{ IMAGEM_RG }}</w:t></w:r></w:p>`,
	"template_termo.docx": `<w:p><w:r><w:t>TERMO {{ NOME }} {{ DATA_RETIRADA }} {{ HORA_RETIRADA }}</w:t></w:r></w:p>`,
}

// testEnv — окружение сервисного слоя на временных каталогах.
type testEnv struct {
	cfg       *config.Config
	store     *filestore.FileStore
	repo      repository.ProposalRepository
	converter *fakeConverter
	mirror    *fakeMirror
	docs      *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{
		StorageDir:    filepath.Join(root, "data"),
		TemplatesDir:  filepath.Join(root, "templates"),
		Documents:     config.DefaultDocuments(),
		DatabaseURL:   "sqlite://" + filepath.Join(root, "data", "senadocs.db"),
		DBDriver:      config.DriverSQLite,
		RetentionDays: 10,
		TempMaxAge:    24 * time.Hour,
		SweepInterval: time.Hour,
		SweepThrottle: time.Minute,
	}

	if err := os.MkdirAll(cfg.TemplatesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range templateBodies {
		writeTestTemplate(t, filepath.Join(cfg.TemplatesDir, name), body)
	}

	store, err := filestore.New(cfg.StorageDir)
	if err != nil {
		t.Fatalf("filestore.New() вернул ошибку: %v", err)
	}

	if err := database.Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	db, err := database.OpenSQLite(context.Background(), cfg.SQLitePath(), testLogger())
	if err != nil {
		t.Fatalf("OpenSQLite() вернул ошибку: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conv := &fakeConverter{}
	docs := NewDocumentService(cfg, store, docx.NewRenderer(8, time.Minute, testLogger()), conv, testLogger())
	docs.now = func() time.Time { return fixedNow }

	return &testEnv{
		cfg:       cfg,
		store:     store,
		repo:      repository.NewSQLiteProposalRepository(db),
		converter: conv,
		mirror:    &fakeMirror{},
		docs:      docs,
	}
}

func (e *testEnv) proposals() *ProposalService {
	s := NewProposalService(e.cfg, e.repo, e.docs, e.store, e.mirror, testLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func (e *testEnv) sweeper() *Sweeper {
	s := NewSweeper(e.cfg, e.repo, e.store, e.mirror, testLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

// writeTestTemplate создаёт минимальный DOCX.
func writeTestTemplate(t *testing.T, path, body string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeTestImage создаёт PNG 4x2.
func writeTestImage(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatal(err)
	}
}

// documentText возвращает word/document.xml из "PDF" фейкового конвертера (копия DOCX).
func documentText(t *testing.T, path string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("результат не является DOCX-копией: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatal("word/document.xml не найден")
	return ""
}

// dirEntries возвращает имена элементов каталога.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
