package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trading-advisory/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, expires_at, revoked_at, ip_address, created_at
		FROM sessions WHERE id = $1`, id)
	var s domain.Session
	var revoked sql.NullTime
	var ip sql.NullString
	err := row.Scan(&s.ID, &s.AccountID, &s.ExpiresAt, &revoked, &ip, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revoked.Valid {
		s.RevokedAt = &revoked.Time
	}
	s.IPAddress = ip.String
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, expires_at, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.AccountID, s.ExpiresAt, s.IPAddress, s.CreatedAt)
	return err
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	return err
}

func (r *PostgresRepository) RevokeAllByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2 WHERE account_id = $1 AND revoked_at IS NULL`,
		accountID, time.Now().UTC())
	return err
}
