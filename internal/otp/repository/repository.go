package repository

import (
	"context"

	"trading-advisory/backend/internal/otp/domain"
)

// Repository defines persistence for OTP challenges.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// GetLatestByAccount returns the newest challenge for the account, or nil, nil
	// when none exists.
	GetLatestByAccount(ctx context.Context, accountID string) (*domain.Challenge, error)
	// DeleteByAccount removes all challenges for the account. Called after a
	// successful verification and before storing a resent code.
	DeleteByAccount(ctx context.Context, accountID string) error
}
