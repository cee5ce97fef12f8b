package repository

import (
	"context"
	"database/sql"
	"errors"

	"trading-advisory/backend/internal/study/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a study repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const studyColumns = `id, account_id, stock_exchange, stock_name, stock_index,
	current_price, expected_price, action, analysis, created_at`

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Study) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO studies (id, account_id, stock_exchange, stock_name, stock_index,
			current_price, expected_price, action, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.AccountID, s.StockExchange, s.StockName, s.StockIndex,
		s.CurrentPrice, s.ExpectedPrice, s.Action, s.Analysis, s.CreatedAt)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Study, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studyColumns+` FROM studies WHERE id = $1`, id)
	var s domain.Study
	err := row.Scan(&s.ID, &s.AccountID, &s.StockExchange, &s.StockName, &s.StockIndex,
		&s.CurrentPrice, &s.ExpectedPrice, &s.Action, &s.Analysis, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Study, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studyColumns+` FROM studies WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*domain.Study, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studyColumns+` FROM studies ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*domain.Study, error) {
	defer rows.Close()
	var out []*domain.Study
	for rows.Next() {
		var s domain.Study
		err := rows.Scan(&s.ID, &s.AccountID, &s.StockExchange, &s.StockName, &s.StockIndex,
			&s.CurrentPrice, &s.ExpectedPrice, &s.Action, &s.Analysis, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
