package domain

import "time"

// Event types emitted by the registration and authorization workflow.
const (
	EventRegistrationStarted = "registration.started"
	EventOTPDispatched       = "registration.otp_dispatched"
	EventOTPVerified         = "registration.otp_verified"
	EventStatusChanged       = "workflow.status_changed"
	EventLoginSucceeded      = "auth.login_succeeded"
	EventLoginRefused        = "auth.login_refused"
	EventAgreementEvent      = "agreement.event"
)

// Event is a workflow telemetry event (account-scoped, optional actor).
type Event struct {
	AccountID string            `json:"account_id"`
	ActorID   string            `json:"actor_id,omitempty"`
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
