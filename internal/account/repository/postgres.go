package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trading-advisory/backend/internal/account/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, username, email, name, phone_number, aadhaar_number, role, status,
	password_hash, nsim_document_key, nsim_number, is_otp_sent, created_at, updated_at`

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByLogin returns the account whose username or email matches, or nil if not found.
func (r *PostgresRepository) GetByLogin(ctx context.Context, usernameOrEmail string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1 OR email = $1`, usernameOrEmail)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, name, phone_number, aadhaar_number, role, status,
			password_hash, nsim_document_key, nsim_number, is_otp_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.Username, a.Email, a.Name, a.PhoneNumber, a.AadhaarNumber, a.Role, a.Status,
		a.PasswordHash, a.NsimDocumentKey, a.NsimNumber, a.IsOtpSentToUser, a.CreatedAt, a.UpdatedAt)
	return err
}

// UpdateStatus performs the conditional status move. The WHERE clause on the
// prior status makes concurrent admin actions on the same account serialize:
// the second writer matches zero rows and gets ErrStatusConflict.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SetNsim attaches the certificate reference to the account.
func (r *PostgresRepository) SetNsim(ctx context.Context, id, documentKey, nsimNumber string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET nsim_document_key = $2, nsim_number = $3, updated_at = $4
		WHERE id = $1`,
		id, documentKey, nsimNumber, time.Now().UTC())
	return err
}

// SetNsimAndStatus attaches the certificate reference and moves the status in
// one conditional statement. A lost race on the prior status writes nothing,
// so a failed approval never leaves the link behind.
func (r *PostgresRepository) SetNsimAndStatus(ctx context.Context, id, documentKey, nsimNumber string, from, to domain.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET nsim_document_key = $2, nsim_number = $3, status = $5, updated_at = $6
		WHERE id = $1 AND status = $4`,
		id, documentKey, nsimNumber, from, to, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkOTPSent flips the dispatch flag; it stays true across resends.
func (r *PostgresRepository) MarkOTPSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET is_otp_sent = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

// ListByRoleAndStatus returns accounts matching both filters, newest first.
func (r *PostgresRepository) ListByRoleAndStatus(ctx context.Context, role domain.Role, status domain.Status) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE role = $1 AND status = $2 ORDER BY created_at DESC`, role, status)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

// ListByRole returns all accounts with the role, newest first.
func (r *PostgresRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE role = $1 ORDER BY created_at DESC`, role)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var name, phone, aadhaar sql.NullString
	var nsimKey, nsimNumber sql.NullString
	err := row.Scan(&a.ID, &a.Username, &a.Email, &name, &phone, &aadhaar, &a.Role, &a.Status,
		&a.PasswordHash, &nsimKey, &nsimNumber, &a.IsOtpSentToUser, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Name = name.String
	a.PhoneNumber = phone.String
	a.AadhaarNumber = aadhaar.String
	if nsimKey.Valid {
		a.NsimDocumentKey = &nsimKey.String
	}
	if nsimNumber.Valid {
		a.NsimNumber = &nsimNumber.String
	}
	return &a, nil
}

func scanAccounts(rows *sql.Rows) ([]*domain.Account, error) {
	defer rows.Close()
	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
