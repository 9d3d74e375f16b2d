package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/senadocs/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestPostgres запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestPostgres(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("senadocs_test"),
		postgres.WithUsername("senadocs"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Не удалось получить строку подключения: %v", err)
	}

	return &config.Config{DatabaseURL: dsn, DBDriver: config.DriverPostgres}
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "senadocs.db")
	return &config.Config{DatabaseURL: "sqlite://" + path, DBDriver: config.DriverSQLite}
}

// TestMigrate_SQLite проверяет применение миграций к файлу SQLite.
func TestMigrate_SQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	db, err := OpenSQLite(ctx, cfg.SQLitePath(), logger)
	if err != nil {
		t.Fatalf("OpenSQLite() вернул ошибку: %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'proposals'").Scan(&name)
	if err != nil {
		t.Fatalf("Таблица proposals не создана: %v", err)
	}
}

func TestMigrate_UnknownDriver(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "mysql://x", DBDriver: "mysql"}
	if err := Migrate(cfg, testLogger()); err == nil {
		t.Fatal("ожидается ошибка для неизвестного драйвера")
	}
}

func TestMigrationFiles(t *testing.T) {
	for _, driver := range []string{config.DriverPostgres, config.DriverSQLite} {
		files, err := MigrationFiles(driver)
		if err != nil {
			t.Fatalf("MigrationFiles(%s): %v", driver, err)
		}
		// Каждая миграция имеет up и down
		if len(files) == 0 || len(files)%2 != 0 {
			t.Errorf("MigrationFiles(%s) = %v", driver, files)
		}
	}
}

func TestReadinessChecker(t *testing.T) {
	ok := NewReadinessChecker("SQLite", func(ctx context.Context) error { return nil })
	if status, _ := ok.CheckReady(); status != "ok" {
		t.Errorf("status = %q, ожидается ok", status)
	}

	fail := NewReadinessChecker("PostgreSQL", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	status, msg := fail.CheckReady()
	if status != "fail" {
		t.Errorf("status = %q, ожидается fail", status)
	}
	if msg != "PostgreSQL недоступен: connection refused" {
		t.Errorf("message = %q", msg)
	}
}

// TestConnect_Postgres проверяет подключение и миграции PostgreSQL.
func TestConnect_Postgres(t *testing.T) {
	cfg := setupTestPostgres(t)
	ctx := context.Background()
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'proposals')").Scan(&exists)
	if err != nil || !exists {
		t.Fatalf("Таблица proposals не создана: exists=%v, err=%v", exists, err)
	}

	checker := NewReadinessChecker("PostgreSQL", pool.Ping)
	if status, msg := checker.CheckReady(); status != "ok" {
		t.Errorf("CheckReady() = %q, %q", status, msg)
	}
}
