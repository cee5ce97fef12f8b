package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"trading-advisory/backend/internal/audit/domain"
	auditrepo "trading-advisory/backend/internal/audit/repository"
)

// SentinelSystemActor is the actor_id used for events with no authenticated
// actor (registration, e-sign callbacks, failed logins).
const SentinelSystemActor = "_system"

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID, accountID, action, resource, ip, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an AuditLogger that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, actorID, accountID, action, resource, ip, metadata string) {
	if l.repo == nil {
		return
	}
	if actorID == "" {
		actorID = SentinelSystemActor
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
