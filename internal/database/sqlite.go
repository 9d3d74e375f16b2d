// sqlite.go — локальное хранилище записей на SQLite (modernc.org/sqlite, без cgo).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenSQLite открывает файл SQLite, создавая родительский каталог.
// Запись сериализуется одним соединением, чтение ждёт блокировку до 5 секунд.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога базы данных: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ошибка настройки SQLite (%s): %w", p, err)
		}
	}

	logger.Info("Подключение к SQLite установлено", slog.String("path", path))
	return db, nil
}
