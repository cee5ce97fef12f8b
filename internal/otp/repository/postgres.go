package repository

import (
	"context"
	"database/sql"
	"errors"

	"trading-advisory/backend/internal/otp/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an OTP challenge repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (id, account_id, phone, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.AccountID, c.Phone, c.CodeHash, c.ExpiresAt, c.CreatedAt)
	return err
}

func (r *PostgresRepository) GetLatestByAccount(ctx context.Context, accountID string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, phone, code_hash, expires_at, created_at
		FROM otp_challenges WHERE account_id = $1
		ORDER BY created_at DESC LIMIT 1`, accountID)
	var c domain.Challenge
	err := row.Scan(&c.ID, &c.AccountID, &c.Phone, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE account_id = $1`, accountID)
	return err
}
