package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/devotp"
	"trading-advisory/backend/internal/otp"
	otpdomain "trading-advisory/backend/internal/otp/domain"
	"trading-advisory/backend/internal/security"
	"trading-advisory/backend/internal/telemetry"
	telemetrydomain "trading-advisory/backend/internal/telemetry/domain"
)

// Sentinel errors for the registration service; handlers map them to HTTP statuses.
var (
	ErrUsernameTaken   = errors.New("username already registered")
	ErrEmailTaken      = errors.New("email already registered")
	ErrAccountNotFound = errors.New("account not found")
	ErrOTPNotPending   = errors.New("account is not waiting for an OTP")
	ErrOTPExpired      = errors.New("OTP has expired; request a new one")
	ErrOTPInvalid      = errors.New("incorrect OTP")
	// ErrInvalidInput wraps registration payload validation failures.
	ErrInvalidInput = errors.New("invalid registration input")
)

// AccountRepo is the minimal account repository needed by the registration service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) error
	MarkOTPSent(ctx context.Context, id string) error
}

// OTPRepo is the minimal OTP challenge repository needed by the registration service.
type OTPRepo interface {
	Create(ctx context.Context, c *otpdomain.Challenge) error
	GetLatestByAccount(ctx context.Context, accountID string) (*otpdomain.Challenge, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

// SMSSender delivers the registration OTP; nil when dev OTP mode is on.
type SMSSender interface {
	SendOTP(phone, otp string) error
}

// RegisterInput is the payload for a Trusted Associate registration.
type RegisterInput struct {
	Username      string
	Email         string
	Name          string
	PhoneNumber   string
	AadhaarNumber string
	Password      string
	// NsimDocumentKey and NsimNumber are set when a certificate was uploaded with
	// the registration form; both empty otherwise.
	NsimDocumentKey string
	NsimNumber      string
}

// RegistrationService implements TA self-registration and phone verification.
// Every registration lands in PENDING_VERIFICATION_FROM_ADMIN at best; only an
// admin can take it further.
type RegistrationService struct {
	accounts  AccountRepo
	otps      OTPRepo
	sms       SMSSender
	devOTP    devotp.Store // non-nil only in dev OTP mode
	hasher    *security.Hasher
	emitter   telemetry.EventEmitter
	otpWindow time.Duration
}

// NewRegistrationService returns a RegistrationService with the given dependencies.
// devStore may be nil; when set, OTPs are stored for dev retrieval instead of sent by SMS.
func NewRegistrationService(
	accounts AccountRepo,
	otps OTPRepo,
	sms SMSSender,
	devStore devotp.Store,
	hasher *security.Hasher,
	emitter telemetry.EventEmitter,
	otpWindow time.Duration,
) *RegistrationService {
	return &RegistrationService{
		accounts:  accounts,
		otps:      otps,
		sms:       sms,
		devOTP:    devStore,
		hasher:    hasher,
		emitter:   emitter,
		otpWindow: otpWindow,
	}
}

// Register creates a TRUSTED_ASSOCIATE account and dispatches the verification
// OTP. On success the account is in WAITING_FOR_OTP_FROM_TA. When OTP dispatch
// fails the account stays in INITIATED and the TA can retry via ResendOTP.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	username := strings.TrimSpace(strings.ToLower(in.Username))
	email := strings.TrimSpace(strings.ToLower(in.Email))

	if existing, err := s.accounts.GetByLogin(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}
	if existing, err := s.accounts.GetByLogin(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &domain.Account{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		PhoneNumber:   strings.TrimSpace(in.PhoneNumber),
		AadhaarNumber: strings.TrimSpace(in.AadhaarNumber),
		Role:          domain.RoleTrustedAssociate,
		Status:        domain.StatusInitiated,
		PasswordHash:  hashed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.NsimDocumentKey != "" {
		key, num := in.NsimDocumentKey, in.NsimNumber
		a.NsimDocumentKey = &key
		a.NsimNumber = &num
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		AccountID: a.ID,
		EventType: telemetrydomain.EventRegistrationStarted,
		Source:    "registration",
		CreatedAt: now,
	})

	if err := s.dispatchOTP(ctx, a); err != nil {
		// Account exists; the TA retries dispatch through ResendOTP.
		return a, fmt.Errorf("registration created but OTP dispatch failed: %w", err)
	}
	a.Status = domain.StatusWaitingForOTP
	a.IsOtpSentToUser = true
	return a, nil
}

// VerifyOTP checks the submitted code against the account's live challenge and
// moves the account to PENDING_VERIFICATION_FROM_ADMIN.
func (s *RegistrationService) VerifyOTP(ctx context.Context, accountID, code string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	if a.Status != domain.StatusWaitingForOTP {
		return nil, ErrOTPNotPending
	}
	ch, err := s.otps.GetLatestByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrOTPExpired
	}
	if ch.Expired(time.Now().UTC()) {
		return nil, ErrOTPExpired
	}
	if !otp.CodeEqual(code, ch.CodeHash) {
		return nil, ErrOTPInvalid
	}

	next, err := domain.Next(a.Status, domain.ActionVerifyOTP)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateStatus(ctx, a.ID, a.Status, next); err != nil {
		return nil, err
	}
	if err := s.otps.DeleteByAccount(ctx, accountID); err != nil {
		return nil, err
	}
	a.Status = next
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		AccountID: a.ID,
		EventType: telemetrydomain.EventOTPVerified,
		Source:    "registration",
		Metadata:  map[string]string{"status": string(next)},
		CreatedAt: time.Now().UTC(),
	})
	return a, nil
}

// ResendOTP replaces the account's challenge with a fresh code and restarts the
// entry window. Also recovers registrations stuck in INITIATED after a failed dispatch.
func (s *RegistrationService) ResendOTP(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	if a.Status != domain.StatusWaitingForOTP && a.Status != domain.StatusInitiated {
		return nil, ErrOTPNotPending
	}
	if err := s.otps.DeleteByAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.dispatchOTP(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// dispatchOTP generates, stores, and delivers a code, then moves INITIATED
// accounts to WAITING_FOR_OTP_FROM_TA.
func (s *RegistrationService) dispatchOTP(ctx context.Context, a *domain.Account) error {
	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.otpWindow)
	ch := &otpdomain.Challenge{
		ID:        uuid.New().String(),
		AccountID: a.ID,
		Phone:     a.PhoneNumber,
		CodeHash:  otp.HashCode(code),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.otps.Create(ctx, ch); err != nil {
		return err
	}

	if s.devOTP != nil {
		s.devOTP.Put(ctx, a.ID, code, expiresAt)
	} else if s.sms != nil {
		if err := s.sms.SendOTP(a.PhoneNumber, code); err != nil {
			return err
		}
	} else {
		return errors.New("no OTP delivery channel configured")
	}

	if a.Status == domain.StatusInitiated {
		next, err := domain.Next(a.Status, domain.ActionDispatchOTP)
		if err != nil {
			return err
		}
		if err := s.accounts.UpdateStatus(ctx, a.ID, a.Status, next); err != nil {
			return err
		}
		a.Status = next
	}
	if err := s.accounts.MarkOTPSent(ctx, a.ID); err != nil {
		return err
	}
	a.IsOtpSentToUser = true
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		AccountID: a.ID,
		EventType: telemetrydomain.EventOTPDispatched,
		Source:    "registration",
		CreatedAt: now,
	})
	return nil
}
