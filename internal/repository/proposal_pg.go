package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/senadocs/internal/domain/model"
)

// pgProposalRepo — реализация ProposalRepository для PostgreSQL.
type pgProposalRepo struct {
	db DBTX
}

// NewPostgresProposalRepository создаёт репозиторий предложений PostgreSQL.
func NewPostgresProposalRepository(db DBTX) ProposalRepository {
	return &pgProposalRepo{db: db}
}

const pgProposalColumns = `id, client_name, created_at, expires_at, pdf_path, payload`

func (r *pgProposalRepo) Create(ctx context.Context, p *model.Proposal) error {
	payload, err := encodePayload(p.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO proposals (client_name, created_at, expires_at, pdf_path, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		p.ClientName, p.CreatedAt.UTC(), p.ExpiresAt.UTC(), p.PDFPath, payload,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания предложения: %w", err)
	}
	return nil
}

func (r *pgProposalRepo) GetByID(ctx context.Context, id int64) (*model.Proposal, error) {
	query := `SELECT ` + pgProposalColumns + ` FROM proposals WHERE id = $1`

	p, err := scanPgProposal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения предложения: %w", err)
	}
	return p, nil
}

func (r *pgProposalRepo) ListRecent(ctx context.Context, limit int) ([]*model.Proposal, error) {
	query := `SELECT ` + pgProposalColumns + `
		FROM proposals
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	return r.list(ctx, query, limit)
}

func (r *pgProposalRepo) SetPDFPath(ctx context.Context, id int64, path string) error {
	tag, err := r.db.Exec(ctx, `UPDATE proposals SET pdf_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пути PDF: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProposalRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления предложения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProposalRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Proposal, error) {
	query := `SELECT ` + pgProposalColumns + `
		FROM proposals
		WHERE created_at < $1
		ORDER BY id`

	return r.list(ctx, query, cutoff.UTC())
}

func (r *pgProposalRepo) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM proposals WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("ошибка пакетного удаления предложений: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgProposalRepo) list(ctx context.Context, query string, args ...any) ([]*model.Proposal, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка предложений: %w", err)
	}
	defer rows.Close()

	var result []*model.Proposal
	for rows.Next() {
		p, err := scanPgProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования предложения: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// scanPgProposal читает строку proposals (pgx.Row или pgx.Rows).
func scanPgProposal(row pgx.Row) (*model.Proposal, error) {
	p := &model.Proposal{}
	var payload string
	if err := row.Scan(&p.ID, &p.ClientName, &p.CreatedAt, &p.ExpiresAt, &p.PDFPath, &payload); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.ExpiresAt = p.ExpiresAt.UTC()

	var err error
	if p.Payload, err = decodePayload(payload); err != nil {
		return nil, err
	}
	return p, nil
}
