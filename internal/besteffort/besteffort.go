// Пакет besteffort — выполнение вспомогательных операций, ошибка которых
// не должна прерывать основной сценарий (удаление файлов, зеркалирование).
package besteffort

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
)

// Do выполняет fn и логирует ошибку на уровне WARN вместо её возврата.
// Возвращает true, если fn завершилась без ошибки.
func Do(logger *slog.Logger, op string, fn func() error, attrs ...slog.Attr) bool {
	err := fn()
	if err == nil {
		return true
	}
	if logger != nil {
		args := make([]any, 0, len(attrs)+2)
		args = append(args, slog.String("operation", op), slog.String("error", err.Error()))
		for _, a := range attrs {
			args = append(args, a)
		}
		logger.Warn("Вспомогательная операция не выполнена", args...)
	}
	return false
}

// Remove удаляет файл; отсутствие файла не считается ошибкой.
func Remove(logger *slog.Logger, path string) bool {
	return Do(logger, "remove", func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}, slog.String("path", path))
}
