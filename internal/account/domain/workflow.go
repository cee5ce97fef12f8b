package domain

import (
	"errors"
	"fmt"
)

// Actor identifies who may trigger a workflow action. Every transition is
// triggered by exactly one actor; nothing is time-based except OTP expiry,
// which is handled by the OTP challenge, not the status machine.
type Actor string

const (
	ActorTA     Actor = "ta"
	ActorAdmin  Actor = "admin"
	// ActorSystem is the e-sign callback finalizing a signature.
	ActorSystem Actor = "system"
)

// Action is a workflow trigger against an account's status.
type Action string

const (
	// ActionDispatchOTP moves a freshly created registration to the OTP wait state.
	ActionDispatchOTP Action = "DISPATCH_OTP"
	// ActionVerifyOTP is the TA submitting a correct, unexpired OTP.
	ActionVerifyOTP Action = "VERIFY_OTP"
	// ActionApprove is the admin approving a pending, suspended, locked, or rejected account.
	ActionApprove Action = "APPROVE"
	// ActionReject is the admin declining a pending registration.
	ActionReject Action = "REJECT"
	// ActionSuspend is the admin blocking an account.
	ActionSuspend Action = "SUSPEND"
	// ActionRequestAgreement is the admin asking an approved TA to sign the agreement.
	ActionRequestAgreement Action = "REQUEST_AGREEMENT"
	// ActionAcceptAgreement is the TA starting the e-sign flow (self-service).
	ActionAcceptAgreement Action = "ACCEPT_AGREEMENT"
	// ActionConfirmTASignature is the e-sign callback confirming the TA signed.
	ActionConfirmTASignature Action = "CONFIRM_TA_SIGNATURE"
	// ActionDeclineAgreement is the admin declining a TA-signed agreement.
	ActionDeclineAgreement Action = "DECLINE_AGREEMENT"
	// ActionCounterSign is the admin starting the counter-signature e-sign flow.
	ActionCounterSign Action = "COUNTER_SIGN"
	// ActionConfirmAdminSignature is the e-sign callback confirming the admin signed.
	ActionConfirmAdminSignature Action = "CONFIRM_ADMIN_SIGNATURE"
)

// Workflow errors. Services wrap these; handlers map them to HTTP statuses.
var (
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrNSIMRequired is returned when an admin approves a pending registration
	// that has no NSIM certificate; the admin must link one first (or approve
	// with a certificate holder in one atomic action).
	ErrNSIMRequired = errors.New("NSIM certificate must be linked before approval")
)

type transition struct {
	actor Actor
	next  map[Status]Status
}

// transitions is the full state table: action -> (actor, current -> next).
// Any (action, current) pair absent from the table is an illegal transition.
var transitions = map[Action]transition{
	ActionDispatchOTP: {actor: ActorSystem, next: map[Status]Status{
		StatusInitiated: StatusWaitingForOTP,
	}},
	ActionVerifyOTP: {actor: ActorTA, next: map[Status]Status{
		StatusWaitingForOTP: StatusPendingVerification,
	}},
	ActionApprove: {actor: ActorAdmin, next: map[Status]Status{
		StatusPendingVerification: StatusApprovedByAdmin,
		StatusSuspended:           StatusApprovedByAdmin,
		StatusLocked:              StatusApprovedByAdmin,
		StatusRejectedByAdmin:     StatusApprovedByAdmin,
		StatusTAAgreementRejected: StatusApprovedByAdmin,
	}},
	ActionReject: {actor: ActorAdmin, next: map[Status]Status{
		StatusPendingVerification: StatusRejectedByAdmin,
	}},
	ActionSuspend: {actor: ActorAdmin, next: map[Status]Status{
		StatusPendingVerification: StatusSuspended,
		StatusApprovedByAdmin:     StatusSuspended,
		StatusActive:              StatusSuspended,
		StatusPendingTAAgreement:  StatusSuspended,
	}},
	ActionRequestAgreement: {actor: ActorAdmin, next: map[Status]Status{
		StatusApprovedByAdmin: StatusPendingTAAgreement,
		StatusActive:          StatusPendingTAAgreement,
	}},
	ActionAcceptAgreement: {actor: ActorTA, next: map[Status]Status{
		StatusPendingTAAgreement:   StatusTAAgreementInitiated,
		StatusTAAgreementInitiated: StatusTAAgreementInitiated,
	}},
	ActionConfirmTASignature: {actor: ActorSystem, next: map[Status]Status{
		StatusTAAgreementInitiated: StatusTAAgreementSigned,
	}},
	ActionDeclineAgreement: {actor: ActorAdmin, next: map[Status]Status{
		StatusTAAgreementSigned: StatusTAAgreementRejected,
	}},
	ActionCounterSign: {actor: ActorAdmin, next: map[Status]Status{
		StatusTAAgreementSigned: StatusAdminSignatureInitiated,
	}},
	ActionConfirmAdminSignature: {actor: ActorSystem, next: map[Status]Status{
		StatusAdminSignatureInitiated: StatusAdminSignatureSigned,
	}},
}

// ActorFor returns the actor allowed to trigger the action.
func ActorFor(action Action) (Actor, bool) {
	t, ok := transitions[action]
	return t.actor, ok
}

// Next returns the status that action moves current to. Returns
// ErrIllegalTransition (wrapped with detail) when the pair is not in the table.
func Next(current Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, action)
	}
	next, ok := t.next[current]
	if !ok {
		return "", fmt.Errorf("%w: %s is not valid from %s", ErrIllegalTransition, action, current)
	}
	return next, nil
}

// Apply validates action against the account's current status and guards, then
// sets the new status on the account. The caller persists the change with a
// conditional update keyed on the prior status.
func Apply(a *Account, action Action) error {
	next, err := Next(a.Status, action)
	if err != nil {
		return err
	}
	// Approving a pending registration requires an NSIM certificate; re-approval
	// of suspended/rejected accounts already passed this gate.
	if action == ActionApprove && a.Status == StatusPendingVerification && !a.HasNsimDocument() {
		return ErrNSIMRequired
	}
	a.Status = next
	return nil
}

// AdminActionForTarget resolves the admin-actor action that moves current to
// target. Used by the generic approve endpoint, which carries the desired status
// rather than an action name. Returns ErrIllegalTransition when no admin action
// connects the two states.
func AdminActionForTarget(current, target Status) (Action, error) {
	for action, t := range transitions {
		if t.actor != ActorAdmin {
			continue
		}
		if next, ok := t.next[current]; ok && next == target {
			return action, nil
		}
	}
	return "", fmt.Errorf("%w: no admin action moves %s to %s", ErrIllegalTransition, current, target)
}
