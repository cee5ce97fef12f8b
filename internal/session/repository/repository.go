package repository

import (
	"context"

	"trading-advisory/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	// RevokeAllByAccount revokes every live session of the account. Called when
	// an admin suspends or rejects an account so open dashboards lose access.
	RevokeAllByAccount(ctx context.Context, accountID string) error
}
