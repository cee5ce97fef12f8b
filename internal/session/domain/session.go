package domain

import "time"

// Session represents an authenticated login session. Tokens carry the session
// id; a revoked session invalidates every token minted for it.
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	RevokedAt *time.Time // nil when not revoked
	IPAddress string
	CreatedAt time.Time
}

// Live reports whether the session is usable at the given time.
func (s *Session) Live(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
