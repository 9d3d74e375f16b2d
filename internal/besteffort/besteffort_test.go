package besteffort

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDo_SwallowsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ok := Do(logger, "mirror", func() error { return errors.New("boom") })
	if ok {
		t.Fatal("Do должна вернуть false при ошибке")
	}
	if !strings.Contains(buf.String(), "boom") || !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("ожидается WARN-запись с текстом ошибки, получено: %s", buf.String())
	}
}

func TestDo_Success(t *testing.T) {
	if !Do(nil, "noop", func() error { return nil }) {
		t.Error("Do должна вернуть true без ошибки")
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !Remove(nil, path) {
		t.Fatal("Remove существующего файла должен вернуть true")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("файл не удалён: %v", err)
	}
	// Повторное удаление — не ошибка
	if !Remove(nil, path) {
		t.Error("Remove отсутствующего файла должен вернуть true")
	}
}
