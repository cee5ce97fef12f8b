package domain

import "time"

// Phase distinguishes the two signing rounds of the TA agreement.
type Phase string

const (
	// PhaseTA is the Trusted Associate's own signature round.
	PhaseTA Phase = "ta"
	// PhaseAdmin is the admin counter-signature round.
	PhaseAdmin Phase = "admin"
)

// Agreement is one e-sign round for an account (stored in agreements table).
// The callback token ties the provider's completion redirect back to the round;
// it is single-use and unguessable.
type Agreement struct {
	ID            string
	AccountID     string
	Phase         Phase
	CallbackToken string
	SignURL       string
	// ClientID is the e-sign provider's reference for the sign request; empty in dev mode.
	ClientID    string
	CompletedAt *time.Time // nil until the callback confirms the signature
	CreatedAt   time.Time
}

// Completed reports whether the signing round has been confirmed.
func (a *Agreement) Completed() bool {
	return a.CompletedAt != nil
}
