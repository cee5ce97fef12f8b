package domain

import "time"

// Challenge is a registration OTP challenge (stored in otp_challenges table).
// An account has at most one live challenge; resends replace it.
type Challenge struct {
	ID        string
	AccountID string
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
