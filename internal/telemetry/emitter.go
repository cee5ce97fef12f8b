package telemetry

import (
	"context"

	"trading-advisory/backend/internal/telemetry/domain"
)

// EventEmitter emits workflow telemetry events (e.g. to Kafka or OTel Logs).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
