package repository

import (
	"context"

	"trading-advisory/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, e *domain.AuditLog) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.AuditLog, error)
}
