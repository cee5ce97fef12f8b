package domain

import "fmt"

// FrontendRole is the authorization view derived from (Role, Status). It decides
// which dashboard and feature set an authenticated account sees.
type FrontendRole string

const (
	FrontendRoleAdmin FrontendRole = "admin"
	// FrontendRoleTA is the fully-verified Trusted Associate role; granted only
	// when the admin counter-signature is complete.
	FrontendRoleTA FrontendRole = "ta"
	// FrontendRoleNTA is the non-verified TA role: restricted feature set with
	// the agreement flow visible.
	FrontendRoleNTA FrontendRole = "nta"
	// FrontendRoleNone means login is refused for this (role, status) pair.
	FrontendRoleNone FrontendRole = ""
)

// LoginRefusedError carries the status-specific message shown when a (role, status)
// pair yields no frontend role.
type LoginRefusedError struct {
	Role    Role
	Status  Status
	Message string
}

func (e *LoginRefusedError) Error() string { return e.Message }

// ntaStatuses are the TRUSTED_ASSOCIATE statuses that grant the restricted nta role.
var ntaStatuses = map[Status]bool{
	StatusApprovedByAdmin:         true,
	StatusPendingTAAgreement:      true,
	StatusTAAgreementInitiated:    true,
	StatusTAAgreementSigned:       true,
	StatusAdminSignatureInitiated: true,
}

// refusalMessages are the login refusal messages for TRUSTED_ASSOCIATE statuses
// outside the nta/ta sets.
var refusalMessages = map[Status]string{
	StatusInitiated:           "registration is not complete; verify the OTP sent to you",
	StatusWaitingForOTP:       "registration is not complete; verify the OTP sent to you",
	StatusPendingVerification: "your registration is pending verification by an admin",
	StatusRejectedByAdmin:     "your registration was declined by an admin",
	StatusTAAgreementRejected: "your agreement was declined by an admin",
	StatusSuspended:           "your account is suspended",
	StatusLocked:              "your account is locked",
	StatusInactive:            "your account is inactive",
}

// DeriveFrontendRole is a pure, total function from (role, status) to the frontend
// authorization role. It must be re-evaluated on every login and after every status
// change; caching its result across status changes is a correctness bug.
//
// Refusals are returned as *LoginRefusedError with the user-facing message.
func DeriveFrontendRole(role Role, status Status) (FrontendRole, error) {
	switch role {
	case RoleAdmin:
		return FrontendRoleAdmin, nil
	case RoleTrustedAssociate:
		if status == StatusAdminSignatureSigned {
			return FrontendRoleTA, nil
		}
		if ntaStatuses[status] {
			return FrontendRoleNTA, nil
		}
		msg, ok := refusalMessages[status]
		if !ok {
			msg = fmt.Sprintf("account status %s does not permit login", status)
		}
		return FrontendRoleNone, &LoginRefusedError{Role: role, Status: status, Message: msg}
	case RoleAssociate:
		return FrontendRoleNone, &LoginRefusedError{
			Role: role, Status: status,
			Message: "Associate login is not supported in this version",
		}
	default:
		return FrontendRoleNone, &LoginRefusedError{
			Role: role, Status: status,
			Message: fmt.Sprintf("invalid role %q", role),
		}
	}
}

// DashboardPath returns the dashboard route for a frontend role; empty for none.
func DashboardPath(fr FrontendRole) string {
	switch fr {
	case FrontendRoleAdmin:
		return "/admindashboard"
	case FrontendRoleTA:
		return "/tadashboard"
	case FrontendRoleNTA:
		return "/nonverifiedtadashboard"
	default:
		return ""
	}
}
