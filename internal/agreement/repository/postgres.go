package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trading-advisory/backend/internal/agreement/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an agreement repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const agreementColumns = `id, account_id, phase, callback_token, sign_url, client_id, completed_at, created_at`

func (r *PostgresRepository) Create(ctx context.Context, a *domain.Agreement) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agreements (id, account_id, phase, callback_token, sign_url, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.AccountID, a.Phase, a.CallbackToken, a.SignURL, a.ClientID, a.CreatedAt)
	return err
}

func (r *PostgresRepository) GetByCallbackToken(ctx context.Context, token string) (*domain.Agreement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE callback_token = $1`, token)
	return scanAgreement(row)
}

func (r *PostgresRepository) GetOpenByAccountAndPhase(ctx context.Context, accountID string, phase domain.Phase) (*domain.Agreement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+agreementColumns+` FROM agreements
		WHERE account_id = $1 AND phase = $2 AND completed_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, accountID, phase)
	return scanAgreement(row)
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Agreement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+agreementColumns+` FROM agreements
		WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE agreements SET completed_at = $2 WHERE id = $1 AND completed_at IS NULL`,
		id, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgreement(row rowScanner) (*domain.Agreement, error) {
	var a domain.Agreement
	var completed sql.NullTime
	err := row.Scan(&a.ID, &a.AccountID, &a.Phase, &a.CallbackToken, &a.SignURL,
		&a.ClientID, &completed, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if completed.Valid {
		a.CompletedAt = &completed.Time
	}
	return &a, nil
}
