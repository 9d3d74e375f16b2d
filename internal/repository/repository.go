// Пакет repository — слой доступа к хранилищу записей.
// Все запросы — чистый SQL (pgx для PostgreSQL, database/sql для SQLite), без ORM.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/senadocs/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// ProposalRepository — операции над таблицей proposals.
type ProposalRepository interface {
	// Create сохраняет новое предложение и заполняет p.ID.
	Create(ctx context.Context, p *model.Proposal) error
	// GetByID возвращает предложение по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.Proposal, error)
	// ListRecent возвращает последние предложения, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]*model.Proposal, error)
	// SetPDFPath записывает путь к сформированному PDF.
	SetPDFPath(ctx context.Context, id int64, path string) error
	// Delete удаляет предложение.
	Delete(ctx context.Context, id int64) error
	// ListCreatedBefore возвращает предложения, созданные строго раньше cutoff.
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Proposal, error)
	// DeleteByIDs удаляет набор предложений одним запросом (один коммит).
	DeleteByIDs(ctx context.Context, ids []int64) (int, error)
}

// DBTX — интерфейс для выполнения SQL-запросов через pgx.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// encodePayload сериализует поля формы в JSON-текст.
func encodePayload(payload map[string]string) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации полей: %w", err)
	}
	return string(data), nil
}

// decodePayload разбирает JSON-текст полей формы.
func decodePayload(raw string) (map[string]string, error) {
	payload := map[string]string{}
	if raw == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("ошибка разбора полей: %w", err)
	}
	return payload, nil
}
