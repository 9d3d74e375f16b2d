package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// createProposal сохраняет предложение, созданное в момент created, с файлом PDF.
func createProposal(t *testing.T, env *testEnv, client string, created time.Time, withPDF bool) *model.Proposal {
	t.Helper()
	ctx := context.Background()
	p := model.NewProposal(client, map[string]string{model.FieldClient: client}, created, env.cfg.RetentionDays)
	if err := env.repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if withPDF {
		path := env.store.ProposalPath(client, p.ID)
		if err := os.WriteFile(path, []byte("%PDF"), 0o640); err != nil {
			t.Fatal(err)
		}
		if err := env.repo.SetPDFPath(ctx, p.ID, path); err != nil {
			t.Fatal(err)
		}
		p.PDFPath = &path
	}
	return p
}

// touch создаёт файл с заданным временем модификации.
func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	sw := env.sweeper()
	ctx := context.Background()

	old := createProposal(t, env, "Antigo", fixedNow.Add(-11*24*time.Hour), true)
	oldNoPDF := createProposal(t, env, "Sem PDF", fixedNow.Add(-30*24*time.Hour), false)
	fresh := createProposal(t, env, "Recente", fixedNow.Add(-9*24*time.Hour), true)

	removed := sw.SweepExpired(ctx, 10)
	if removed != 2 {
		t.Fatalf("удалено %d записей, ожидалось 2", removed)
	}

	if filestore.FileExists(*old.PDFPath) {
		t.Error("PDF просроченного предложения не удалён")
	}
	if !filestore.FileExists(*fresh.PDFPath) {
		t.Error("PDF свежего предложения удалён")
	}
	if len(env.mirror.removed) != 1 || env.mirror.removed[0] != *old.PDFPath {
		t.Errorf("копии в зеркале: %v", env.mirror.removed)
	}

	for _, id := range []int64{old.ID, oldNoPDF.ID} {
		if _, err := env.repo.GetByID(ctx, id); err == nil {
			t.Errorf("запись %d не удалена", id)
		}
	}
	if _, err := env.repo.GetByID(ctx, fresh.ID); err != nil {
		t.Errorf("свежая запись удалена: %v", err)
	}

	if again := sw.SweepExpired(ctx, 10); again != 0 {
		t.Errorf("повторная очистка удалила %d записей", again)
	}
}

func TestSweepExpired_StoreFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	sw := NewSweeper(env.cfg, failingRepo{}, env.store, nil, testLogger())

	if removed := sw.SweepExpired(context.Background(), 10); removed != 0 {
		t.Errorf("при недоступном хранилище удалено %d", removed)
	}
}

func TestSweepStaleTemp(t *testing.T) {
	env := newTestEnv(t)
	sw := env.sweeper()
	dir := env.store.Dir(filestore.ContractsDir)

	stale := fixedNow.Add(-25 * time.Hour)
	recent := fixedNow.Add(-time.Hour)
	touch(t, filepath.Join(dir, "CONTRATO - a.pdf"), stale)
	touch(t, filepath.Join(dir, "foto.JPG"), stale)
	touch(t, filepath.Join(dir, "notas.txt"), stale)
	touch(t, filepath.Join(dir, "CONTRATO - b.pdf"), recent)
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o750); err != nil {
		t.Fatal(err)
	}

	if removed := sw.SweepStaleTemp(dir, 24*time.Hour); removed != 2 {
		t.Errorf("удалено %d файлов, ожидалось 2", removed)
	}

	left := map[string]bool{}
	for _, name := range dirEntries(t, dir) {
		left[name] = true
	}
	for _, name := range []string{"notas.txt", "CONTRATO - b.pdf", "sub.pdf"} {
		if !left[name] {
			t.Errorf("%s не должен удаляться", name)
		}
	}

	if removed := sw.SweepStaleTemp(filepath.Join(dir, "nao-existe"), time.Hour); removed != 0 {
		t.Errorf("отсутствующий каталог: удалено %d", removed)
	}
}

func TestSweeper_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	sw := env.sweeper()

	createProposal(t, env, "Antigo", fixedNow.Add(-15*24*time.Hour), true)
	stale := fixedNow.Add(-48 * time.Hour)
	touch(t, filepath.Join(env.store.Dir(filestore.UploadsDir), "img.png"), stale)
	touch(t, filepath.Join(env.store.Dir(filestore.PromissoryDir), "PROMISSORIA - x.pdf"), stale)
	touch(t, filepath.Join(env.store.Dir(filestore.ReceiptsDir), "TERMO - y.pdf"), stale)

	workDir := filepath.Join(env.store.Dir(filestore.WorkDir), "render-123")
	if err := os.Mkdir(workDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(workDir, stale, stale); err != nil {
		t.Fatal(err)
	}

	result := sw.RunOnce(context.Background())
	if result.Skipped {
		t.Fatal("проход не должен пропускаться")
	}
	if result.RecordsRemoved != 1 {
		t.Errorf("RecordsRemoved = %d", result.RecordsRemoved)
	}
	if result.TempFilesRemoved != 4 {
		t.Errorf("TempFilesRemoved = %d, ожидалось 4", result.TempFilesRemoved)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Error("забытый каталог рендеринга не удалён")
	}
}

func TestSweeper_MaybeSweepThrottled(t *testing.T) {
	env := newTestEnv(t)
	sw := env.sweeper()
	now := fixedNow
	sw.now = func() time.Time { return now }

	if r := sw.MaybeSweep(context.Background()); r.Skipped {
		t.Fatal("первый проход не должен пропускаться")
	}
	now = now.Add(30 * time.Second)
	if r := sw.MaybeSweep(context.Background()); !r.Skipped {
		t.Error("проход раньше интервала должен пропускаться")
	}
	now = now.Add(31 * time.Second)
	if r := sw.MaybeSweep(context.Background()); r.Skipped {
		t.Error("проход после интервала не должен пропускаться")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	env := newTestEnv(t)
	createProposal(t, env, "Antigo", time.Now().Add(-20*24*time.Hour), false)

	sw := NewSweeper(env.cfg, env.repo, env.store, nil, testLogger())
	sw.Start(context.Background())
	defer sw.Stop()

	// Первый проход выполняется сразу после старта
	deadline := time.Now().Add(5 * time.Second)
	for {
		recent, err := env.repo.ListRecent(context.Background(), 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recent) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("первый проход не выполнен: осталось %d записей", len(recent))
		}
		time.Sleep(20 * time.Millisecond)
	}
}
