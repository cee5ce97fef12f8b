package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/agreement/domain"
	"trading-advisory/backend/internal/agreement/esign"
	"trading-advisory/backend/internal/telemetry"
	telemetrydomain "trading-advisory/backend/internal/telemetry/domain"
)

// Sentinel errors for the agreement service.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrUnknownCallback   = errors.New("unknown e-sign callback token")
	ErrCallbackCompleted = errors.New("e-sign callback already processed")
	// ErrStaleCallback is returned when a signature completes after the account
	// was moved out of the signing state (e.g. suspended mid-flow). The signature
	// is recorded but the status does not change.
	ErrStaleCallback = errors.New("account left the signing state before the callback arrived")
)

// AccountRepo is the account repository surface needed by the agreement service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	UpdateStatus(ctx context.Context, id string, from, to accountdomain.Status) error
}

// AgreementRepo is the agreement repository surface needed by the service.
type AgreementRepo interface {
	Create(ctx context.Context, a *domain.Agreement) error
	GetByCallbackToken(ctx context.Context, token string) (*domain.Agreement, error)
	GetOpenByAccountAndPhase(ctx context.Context, accountID string, phase domain.Phase) (*domain.Agreement, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Agreement, error)
	MarkCompleted(ctx context.Context, id string) error
}

// Service drives both rounds of the TA agreement: the TA's own signature and
// the admin counter-signature, each confirmed by the provider callback.
type Service struct {
	accounts    AccountRepo
	agreements  AgreementRepo
	provider    esign.Provider
	callbackURL string
	emitter     telemetry.EventEmitter
}

// NewService returns an agreement Service. callbackURL is the public URL of the
// e-sign callback endpoint; the callback token is appended as a query parameter.
func NewService(accounts AccountRepo, agreements AgreementRepo, provider esign.Provider, callbackURL string, emitter telemetry.EventEmitter) *Service {
	return &Service{
		accounts:    accounts,
		agreements:  agreements,
		provider:    provider,
		callbackURL: callbackURL,
		emitter:     emitter,
	}
}

// InitiateTASign starts (or resumes) the TA's signing round. Moves
// PENDING_TA_AGREEMENT to TA_AGREEMENT_INITIATED; calling again while already
// initiated returns the open round's sign URL instead of a new one.
func (s *Service) InitiateTASign(ctx context.Context, accountID string) (*domain.Agreement, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	next, err := accountdomain.Next(a.Status, accountdomain.ActionAcceptAgreement)
	if err != nil {
		return nil, err
	}

	if open, err := s.agreements.GetOpenByAccountAndPhase(ctx, accountID, domain.PhaseTA); err != nil {
		return nil, err
	} else if open != nil {
		return open, nil
	}

	round, err := s.createRound(ctx, a, domain.PhaseTA)
	if err != nil {
		return nil, err
	}
	if a.Status != next {
		if err := s.accounts.UpdateStatus(ctx, a.ID, a.Status, next); err != nil {
			return nil, err
		}
	}
	s.emitAgreement(ctx, a.ID, "ta_sign_initiated")
	return round, nil
}

// InitiateAdminCounterSign starts the admin counter-signature round for a
// TA-signed agreement. Moves TA_AGREEMENT_SIGNED to ADMIN_AGREEMENT_SIGNATURE_INITIATED.
func (s *Service) InitiateAdminCounterSign(ctx context.Context, actorID, accountID string) (*domain.Agreement, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	next, err := accountdomain.Next(a.Status, accountdomain.ActionCounterSign)
	if err != nil {
		return nil, err
	}
	round, err := s.createRound(ctx, a, domain.PhaseAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateStatus(ctx, a.ID, a.Status, next); err != nil {
		return nil, err
	}
	s.emitAgreement(ctx, a.ID, "admin_countersign_initiated")
	return round, nil
}

// HandleCallback processes the provider's completion redirect. The phase of the
// round selects the confirmation action; the status move is conditional on the
// account still being in the matching signing state.
func (s *Service) HandleCallback(ctx context.Context, token string) (*accountdomain.Account, error) {
	round, err := s.agreements.GetByCallbackToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrUnknownCallback
	}
	if round.Completed() {
		return nil, ErrCallbackCompleted
	}

	a, err := s.accounts.GetByID(ctx, round.AccountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}

	action := accountdomain.ActionConfirmTASignature
	if round.Phase == domain.PhaseAdmin {
		action = accountdomain.ActionConfirmAdminSignature
	}
	next, err := accountdomain.Next(a.Status, action)
	if err != nil {
		// Record the signature; the status stays wherever an admin moved it.
		if markErr := s.agreements.MarkCompleted(ctx, round.ID); markErr != nil {
			return nil, markErr
		}
		return nil, fmt.Errorf("%w: %v", ErrStaleCallback, err)
	}
	if err := s.accounts.UpdateStatus(ctx, a.ID, a.Status, next); err != nil {
		return nil, err
	}
	if err := s.agreements.MarkCompleted(ctx, round.ID); err != nil {
		return nil, err
	}
	a.Status = next
	s.emitAgreement(ctx, a.ID, "signature_confirmed_"+string(round.Phase))
	return a, nil
}

// History returns the account's signing rounds, newest first.
func (s *Service) History(ctx context.Context, accountID string) ([]*domain.Agreement, error) {
	return s.agreements.ListByAccount(ctx, accountID)
}

func (s *Service) createRound(ctx context.Context, a *accountdomain.Account, phase domain.Phase) (*domain.Agreement, error) {
	token := uuid.New().String()
	redirect := s.callbackURL
	if u, err := url.Parse(s.callbackURL); err == nil {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		redirect = u.String()
	}
	resp, err := s.provider.CreateSignRequest(ctx, esign.SignRequest{
		SignerName:  a.Name,
		SignerEmail: a.Email,
		DocumentRef: "ta-agreement/" + a.ID,
		RedirectURL: redirect,
	})
	if err != nil {
		return nil, err
	}
	round := &domain.Agreement{
		ID:            uuid.New().String(),
		AccountID:     a.ID,
		Phase:         phase,
		CallbackToken: token,
		SignURL:       resp.SignURL,
		ClientID:      resp.ClientID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.agreements.Create(ctx, round); err != nil {
		return nil, err
	}
	return round, nil
}

func (s *Service) emitAgreement(ctx context.Context, accountID, what string) {
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		AccountID: accountID,
		EventType: telemetrydomain.EventAgreementEvent,
		Source:    "agreement",
		Metadata:  map[string]string{"event": what},
		CreatedAt: time.Now().UTC(),
	})
}
