package domain

import "time"

// AuditLog represents one audited action against an account.
type AuditLog struct {
	ID string
	// ActorID is who performed the action; SentinelSystemActor for
	// unauthenticated or system-triggered actions.
	ActorID string
	// AccountID is the account the action targeted; equals ActorID for
	// self-service actions.
	AccountID string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
