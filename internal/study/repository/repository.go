package repository

import (
	"context"

	"trading-advisory/backend/internal/study/domain"
)

// Repository defines persistence for studies.
type Repository interface {
	Create(ctx context.Context, s *domain.Study) error
	GetByID(ctx context.Context, id string) (*domain.Study, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Study, error)
	ListAll(ctx context.Context) ([]*domain.Study, error)
}
