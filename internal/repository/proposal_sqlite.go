package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/senadocs/internal/domain/model"
)

// sqliteTimeLayout — фиксированная ширина, строковый порядок совпадает с хронологическим.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// sqliteProposalRepo — реализация ProposalRepository для SQLite.
type sqliteProposalRepo struct {
	db *sql.DB
}

// NewSQLiteProposalRepository создаёт репозиторий предложений SQLite.
func NewSQLiteProposalRepository(db *sql.DB) ProposalRepository {
	return &sqliteProposalRepo{db: db}
}

const sqliteProposalColumns = `id, client_name, created_at, expires_at, pdf_path, payload`

func (r *sqliteProposalRepo) Create(ctx context.Context, p *model.Proposal) error {
	payload, err := encodePayload(p.Payload)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO proposals (client_name, created_at, expires_at, pdf_path, payload)
		VALUES (?, ?, ?, ?, ?)`,
		p.ClientName, formatSQLiteTime(p.CreatedAt), formatSQLiteTime(p.ExpiresAt), p.PDFPath, payload,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания предложения: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения идентификатора предложения: %w", err)
	}
	return nil
}

func (r *sqliteProposalRepo) GetByID(ctx context.Context, id int64) (*model.Proposal, error) {
	query := `SELECT ` + sqliteProposalColumns + ` FROM proposals WHERE id = ?`

	p, err := scanSQLiteProposal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения предложения: %w", err)
	}
	return p, nil
}

func (r *sqliteProposalRepo) ListRecent(ctx context.Context, limit int) ([]*model.Proposal, error) {
	query := `SELECT ` + sqliteProposalColumns + `
		FROM proposals
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	return r.list(ctx, query, limit)
}

func (r *sqliteProposalRepo) SetPDFPath(ctx context.Context, id int64, path string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE proposals SET pdf_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пути PDF: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteProposalRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления предложения: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteProposalRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Proposal, error) {
	query := `SELECT ` + sqliteProposalColumns + `
		FROM proposals
		WHERE created_at < ?
		ORDER BY id`

	return r.list(ctx, query, formatSQLiteTime(cutoff))
}

func (r *sqliteProposalRepo) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("ошибка пакетного удаления предложений: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка пакетного удаления предложений: %w", err)
	}
	return int(n), nil
}

func (r *sqliteProposalRepo) list(ctx context.Context, query string, args ...any) ([]*model.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка предложений: %w", err)
	}
	defer rows.Close()

	var result []*model.Proposal
	for rows.Next() {
		p, err := scanSQLiteProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования предложения: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// rowScanner — общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProposal(row rowScanner) (*model.Proposal, error) {
	p := &model.Proposal{}
	var created, expires, payload string
	var pdfPath sql.NullString
	if err := row.Scan(&p.ID, &p.ClientName, &created, &expires, &pdfPath, &payload); err != nil {
		return nil, err
	}

	var err error
	if p.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
		return nil, fmt.Errorf("некорректное created_at %q: %w", created, err)
	}
	if p.ExpiresAt, err = time.Parse(sqliteTimeLayout, expires); err != nil {
		return nil, fmt.Errorf("некорректное expires_at %q: %w", expires, err)
	}
	if pdfPath.Valid {
		p.PDFPath = &pdfPath.String
	}
	if p.Payload, err = decodePayload(payload); err != nil {
		return nil, err
	}
	return p, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа изменённых строк: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
