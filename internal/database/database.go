// Пакет database — подключение к хранилищу записей (PostgreSQL через pgxpool
// или SQLite через modernc.org/sqlite), применение миграций (golang-migrate)
// и проверка готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/senadocs/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Connect создаёт пул подключений к PostgreSQL.
// Выполняет ping для проверки доступности.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.Int("port", int(poolCfg.ConnConfig.Port)),
		slog.String("database", poolCfg.ConnConfig.Database),
	)

	return pool, nil
}

// Migrate применяет SQL-миграции из embedded FS к базе данных.
// Каталог миграций и драйвер golang-migrate выбираются по cfg.DBDriver.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	var dir, dbURL string
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dir = "migrations/postgres"
		// golang-migrate регистрирует драйвер pgx v5 под схемой pgx5://
		_, rest, _ := strings.Cut(cfg.DatabaseURL, "://")
		dbURL = "pgx5://" + rest
	case config.DriverSQLite:
		dir = "migrations/sqlite"
		dbURL = "sqlite://" + cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath()), 0o755); err != nil {
			return fmt.Errorf("ошибка создания каталога базы данных: %w", err)
		}
	default:
		return fmt.Errorf("неподдерживаемый драйвер %q", cfg.DBDriver)
	}

	// Создаём источник миграций из embedded FS
	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	// Применяем все миграции
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.String("driver", cfg.DBDriver),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// MigrationFiles возвращает имена встроенных миграций драйвера.
func MigrationFiles(driver string) ([]string, error) {
	return fs.Glob(migrationsFS, "migrations/"+driver+"/*.sql")
}

// PingFunc — проверка доступности хранилища.
type PingFunc func(ctx context.Context) error

// ReadinessChecker — проверка готовности хранилища записей для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	name string
	ping PingFunc
}

// NewReadinessChecker создаёт проверку готовности.
// name — отображаемое имя хранилища (PostgreSQL, SQLite).
func NewReadinessChecker(name string, ping PingFunc) *ReadinessChecker {
	return &ReadinessChecker{name: name, ping: ping}
}

// CheckReady проверяет подключение через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return "fail", fmt.Sprintf("%s недоступен: %v", c.name, err)
	}
	return "ok", "подключение активно"
}
