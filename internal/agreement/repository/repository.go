package repository

import (
	"context"

	"trading-advisory/backend/internal/agreement/domain"
)

// Repository defines persistence for agreement signing rounds.
type Repository interface {
	Create(ctx context.Context, a *domain.Agreement) error
	// GetByCallbackToken returns the round for the token, or nil, nil when unknown.
	GetByCallbackToken(ctx context.Context, token string) (*domain.Agreement, error)
	// GetOpenByAccountAndPhase returns the newest uncompleted round for the
	// account and phase, or nil, nil.
	GetOpenByAccountAndPhase(ctx context.Context, accountID string, phase domain.Phase) (*domain.Agreement, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Agreement, error)
	MarkCompleted(ctx context.Context, id string) error
}
