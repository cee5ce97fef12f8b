package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Account is the central entity: a registered user of the advisory platform.
type Account struct {
	ID            string
	Username      string
	Email         string
	Name          string
	PhoneNumber   string
	AadhaarNumber string // 12-digit national ID
	Role          Role
	Status        Status
	PasswordHash  string
	// NsimDocumentKey is the object key of the uploaded NSIM certificate; nil until
	// uploaded at registration or linked from another account by an admin.
	NsimDocumentKey *string
	// NsimNumber is the certificate number; set together with NsimDocumentKey.
	NsimNumber *string
	// IsOtpSentToUser is true once a registration OTP has been dispatched.
	IsOtpSentToUser bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleTrustedAssociate Role = "TRUSTED_ASSOCIATE"
	// RoleAssociate exists in stored data but is not supported for login in this version.
	RoleAssociate Role = "ASSOCIATE"
)

// Status is the workflow state of an account. Transitions are governed by the
// table in workflow.go; setting Status outside a transition is a bug.
type Status string

const (
	StatusInitiated               Status = "INITIATED"
	StatusWaitingForOTP           Status = "WAITING_FOR_OTP_FROM_TA"
	StatusPendingVerification     Status = "PENDING_VERIFICATION_FROM_ADMIN"
	StatusApprovedByAdmin         Status = "APPROVED_BY_ADMIN"
	StatusRejectedByAdmin         Status = "REJECTED_BY_ADMIN"
	StatusPendingTAAgreement      Status = "PENDING_TA_AGREEMENT"
	StatusTAAgreementInitiated    Status = "TA_AGREEMENT_INITIATED"
	StatusTAAgreementSigned       Status = "TA_AGREEMENT_SIGNED"
	StatusTAAgreementRejected     Status = "TA_AGREEMENT_REJECTED"
	StatusAdminSignatureInitiated Status = "ADMIN_AGREEMENT_SIGNATURE_INITIATED"
	StatusAdminSignatureSigned    Status = "ADMIN_AGREEMENT_SIGNATURE_SIGNED"
	StatusActive                  Status = "ACTIVE"
	StatusInactive                Status = "INACTIVE"
	StatusSuspended               Status = "SUSPENDED"
	StatusLocked                  Status = "LOCKED"
)

// AllStatuses is the closed set of workflow states, used for validation.
var AllStatuses = []Status{
	StatusInitiated, StatusWaitingForOTP, StatusPendingVerification,
	StatusApprovedByAdmin, StatusRejectedByAdmin, StatusPendingTAAgreement,
	StatusTAAgreementInitiated, StatusTAAgreementSigned, StatusTAAgreementRejected,
	StatusAdminSignatureInitiated, StatusAdminSignatureSigned,
	StatusActive, StatusInactive, StatusSuspended, StatusLocked,
}

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

var (
	aadhaarRe = regexp.MustCompile(`^[0-9]{12}$`)
	phoneRe   = regexp.MustCompile(`^[0-9]{10,15}$`)
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.Username == "" {
		return errors.New("username is required")
	}
	if a.Email == "" {
		return errors.New("email is required")
	}
	if !emailRe.MatchString(a.Email) {
		return errors.New("invalid email format")
	}
	if a.Role != RoleAdmin && a.Role != RoleTrustedAssociate && a.Role != RoleAssociate {
		return fmt.Errorf("invalid role %q", a.Role)
	}
	if a.Role == RoleTrustedAssociate {
		if !phoneRe.MatchString(a.PhoneNumber) {
			return errors.New("phone number must be 10-15 digits")
		}
		if !aadhaarRe.MatchString(a.AadhaarNumber) {
			return errors.New("aadhaar number must be 12 digits")
		}
	}
	if !ValidStatus(a.Status) {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	return nil
}

// HasNsimDocument reports whether an NSIM certificate is attached to the account.
func (a *Account) HasNsimDocument() bool {
	return a.NsimDocumentKey != nil && *a.NsimDocumentKey != ""
}
