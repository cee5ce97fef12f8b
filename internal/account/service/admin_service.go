package service

import (
	"context"
	"errors"
	"time"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/account/repository"
	"trading-advisory/backend/internal/telemetry"
	telemetrydomain "trading-advisory/backend/internal/telemetry/domain"
)

// Sentinel errors for the admin service.
var (
	ErrNotTrustedAssociate = errors.New("account is not a trusted associate")
	ErrHolderHasNoNSIM     = errors.New("certificate holder account has no NSIM certificate")
)

// AdminAccountRepo is the account repository surface needed by the admin service.
type AdminAccountRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) error
	SetNsim(ctx context.Context, id, documentKey, nsimNumber string) error
	SetNsimAndStatus(ctx context.Context, id, documentKey, nsimNumber string, from, to domain.Status) error
	ListByRoleAndStatus(ctx context.Context, role domain.Role, status domain.Status) ([]*domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error)
}

// SessionRevoker revokes all live sessions of an account after a blocking transition.
type SessionRevoker interface {
	RevokeAllByAccount(ctx context.Context, accountID string) error
}

// AdminService implements admin review actions on TA registrations: approve,
// reject, suspend, recover, and NSIM certificate linking.
type AdminService struct {
	accounts AdminAccountRepo
	sessions SessionRevoker
	emitter  telemetry.EventEmitter
}

// NewAdminService returns an AdminService with the given dependencies.
func NewAdminService(accounts AdminAccountRepo, sessions SessionRevoker, emitter telemetry.EventEmitter) *AdminService {
	return &AdminService{accounts: accounts, sessions: sessions, emitter: emitter}
}

// Transition moves the account to the target status through the admin action
// that connects the two states. nsimHolderID, when set with an approval, links
// that account's NSIM certificate in the same conditional write as the status
// move, so a lost race leaves neither the link nor the approval.
//
// Concurrent admin actions on the same account serialize on the conditional
// update: the loser gets repository.ErrStatusConflict and must re-read.
func (s *AdminService) Transition(ctx context.Context, actorID, accountID string, target domain.Status, nsimHolderID string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	if a.Role != domain.RoleTrustedAssociate {
		return nil, ErrNotTrustedAssociate
	}

	action, err := domain.AdminActionForTarget(a.Status, target)
	if err != nil {
		return nil, err
	}

	linked := false
	var linkKey, linkNum string
	if nsimHolderID != "" && action == domain.ActionApprove {
		holder, err := s.resolveHolder(ctx, nsimHolderID)
		if err != nil {
			return nil, err
		}
		linkKey = *holder.NsimDocumentKey
		if holder.NsimNumber != nil {
			linkNum = *holder.NsimNumber
		}
		a.NsimDocumentKey = &linkKey
		if linkNum != "" {
			n := linkNum
			a.NsimNumber = &n
		}
		linked = true
	}

	from := a.Status
	if err := domain.Apply(a, action); err != nil {
		return nil, err
	}
	if linked {
		err = s.accounts.SetNsimAndStatus(ctx, a.ID, linkKey, linkNum, from, a.Status)
	} else {
		err = s.accounts.UpdateStatus(ctx, a.ID, from, a.Status)
	}
	if err != nil {
		a.Status = from
		return nil, err
	}

	// Blocking transitions kick the TA out of any open session immediately.
	if action == domain.ActionSuspend || action == domain.ActionReject {
		if err := s.sessions.RevokeAllByAccount(ctx, a.ID); err != nil {
			return nil, err
		}
	}

	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		AccountID: a.ID,
		ActorID:   actorID,
		EventType: telemetrydomain.EventStatusChanged,
		Source:    "admin",
		Metadata: map[string]string{
			"action": string(action),
			"from":   string(from),
			"to":     string(a.Status),
		},
		CreatedAt: time.Now().UTC(),
	})
	return a, nil
}

// AttachNSIM records an uploaded certificate document against the account.
func (s *AdminService) AttachNSIM(ctx context.Context, accountID, objectKey, nsimNumber string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	if err := s.accounts.SetNsim(ctx, accountID, objectKey, nsimNumber); err != nil {
		return nil, err
	}
	a.NsimDocumentKey = &objectKey
	a.NsimNumber = &nsimNumber
	return a, nil
}

// LinkNSIM copies the certificate reference of holderID onto the account,
// without changing status.
func (s *AdminService) LinkNSIM(ctx context.Context, accountID, holderID string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	if err := s.linkNSIMFromHolder(ctx, a, holderID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AdminService) resolveHolder(ctx context.Context, holderID string) (*domain.Account, error) {
	holder, err := s.accounts.GetByID(ctx, holderID)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, ErrAccountNotFound
	}
	if !holder.HasNsimDocument() {
		return nil, ErrHolderHasNoNSIM
	}
	return holder, nil
}

func (s *AdminService) linkNSIMFromHolder(ctx context.Context, a *domain.Account, holderID string) error {
	holder, err := s.resolveHolder(ctx, holderID)
	if err != nil {
		return err
	}
	num := ""
	if holder.NsimNumber != nil {
		num = *holder.NsimNumber
	}
	if err := s.accounts.SetNsim(ctx, a.ID, *holder.NsimDocumentKey, num); err != nil {
		return err
	}
	key := *holder.NsimDocumentKey
	a.NsimDocumentKey = &key
	if num != "" {
		n := num
		a.NsimNumber = &n
	}
	return nil
}

// Get returns the account for admin review.
func (s *AdminService) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// List returns accounts by role, optionally filtered by status. An empty role
// defaults to TRUSTED_ASSOCIATE, the only role admins review.
func (s *AdminService) List(ctx context.Context, role domain.Role, status domain.Status) ([]*domain.Account, error) {
	if role == "" {
		role = domain.RoleTrustedAssociate
	}
	if role != domain.RoleAdmin && role != domain.RoleTrustedAssociate && role != domain.RoleAssociate {
		return nil, errors.New("unknown role filter")
	}
	if status == "" {
		return s.accounts.ListByRole(ctx, role)
	}
	if !domain.ValidStatus(status) {
		return nil, errors.New("unknown status filter")
	}
	return s.accounts.ListByRoleAndStatus(ctx, role, status)
}

// IsStatusConflict reports whether err is the optimistic concurrency failure
// from a lost admin race.
func IsStatusConflict(err error) bool {
	return errors.Is(err, repository.ErrStatusConflict)
}
