package repository

import (
	"context"
	"errors"

	"trading-advisory/backend/internal/account/domain"
)

// ErrStatusConflict is returned by UpdateStatus when the account's status no
// longer matches the expected prior status, i.e. a concurrent transition won.
var ErrStatusConflict = errors.New("account status changed concurrently")

// Repository defines persistence for accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByLogin looks up an account by username or email (either matches).
	// Returns nil, nil when not found.
	GetByLogin(ctx context.Context, usernameOrEmail string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Update(ctx context.Context, a *domain.Account) error
	// UpdateStatus moves the account from to the new status only if its current
	// status still equals from. Returns ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) error
	// SetNsim attaches an NSIM certificate (object key + number) to the account.
	SetNsim(ctx context.Context, id, documentKey, nsimNumber string) error
	// MarkOTPSent records that a registration OTP was dispatched.
	MarkOTPSent(ctx context.Context, id string) error
	ListByRoleAndStatus(ctx context.Context, role domain.Role, status domain.Status) ([]*domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error)
}
