// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/senadocs/internal/ptbr"
	"github.com/bigkaa/senadocs/internal/repository"
)

var (
	// ErrNotFound — предложение не найдено.
	ErrNotFound = errors.New("proposta não encontrada")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("dados inválidos")
	// ErrUnknownKind — неизвестный вид документа.
	ErrUnknownKind = errors.New("tipo de documento desconhecido")
)

// ValidationError — ошибка валидации с сообщением для пользователя.
// Сопоставляется с ErrValidation через errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap позволяет сопоставлять ошибку с ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// invalid создаёт ValidationError с форматированным сообщением.
func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// fromFormat преобразует ошибку форматирования ptbr в ValidationError.
// Сообщение ptbr уже на португальском, к нему добавляется имя поля.
func fromFormat(field string, err error) error {
	if errors.Is(err, ptbr.ErrInvalidInput) {
		return invalid("%s: %s", field, formatMessage(err))
	}
	return err
}

// formatMessage убирает из текста ошибки ptbr общий префикс sentinel.
func formatMessage(err error) string {
	msg := err.Error()
	prefix := ptbr.ErrInvalidInput.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

// mapRepoError преобразует ошибки репозитория в ошибки сервиса.
func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
