package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/account/repository"
	"trading-advisory/backend/internal/agreement/domain"
	"trading-advisory/backend/internal/agreement/esign"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*accountdomain.Account
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a2 := *a
		return &a2, nil
	}
	return nil, nil
}

func (r *memAccounts) UpdateStatus(ctx context.Context, id string, from, to accountdomain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return repository.ErrStatusConflict
	}
	a.Status = to
	return nil
}

type memAgreements struct {
	mu sync.Mutex
	m  map[string]*domain.Agreement
}

func (r *memAgreements) Create(ctx context.Context, a *domain.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a2 := *a
	r.m[a.ID] = &a2
	return nil
}

func (r *memAgreements) GetByCallbackToken(ctx context.Context, token string) (*domain.Agreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if a.CallbackToken == token {
			a2 := *a
			return &a2, nil
		}
	}
	return nil, nil
}

func (r *memAgreements) GetOpenByAccountAndPhase(ctx context.Context, accountID string, phase domain.Phase) (*domain.Agreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if a.AccountID == accountID && a.Phase == phase && a.CompletedAt == nil {
			a2 := *a
			return &a2, nil
		}
	}
	return nil, nil
}

func (r *memAgreements) ListByAccount(ctx context.Context, accountID string) ([]*domain.Agreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Agreement
	for _, a := range r.m {
		if a.AccountID == accountID {
			a2 := *a
			out = append(out, &a2)
		}
	}
	return out, nil
}

func (r *memAgreements) MarkCompleted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.m[id]; ok && a.CompletedAt == nil {
		t := a.CreatedAt
		a.CompletedAt = &t
	}
	return nil
}

func newFixture(status accountdomain.Status) (*Service, *memAccounts, *memAgreements) {
	accounts := &memAccounts{byID: map[string]*accountdomain.Account{
		"ta-1": {
			ID: "ta-1", Username: "ravi", Email: "ravi@example.com", Name: "Ravi",
			Role: accountdomain.RoleTrustedAssociate, Status: status,
		},
	}}
	agreements := &memAgreements{m: map[string]*domain.Agreement{}}
	svc := NewService(accounts, agreements, esign.DevProvider{}, "http://localhost:8080/esign/callback", nil)
	return svc, accounts, agreements
}

func TestInitiateTASign(t *testing.T) {
	svc, accounts, _ := newFixture(accountdomain.StatusPendingTAAgreement)

	round, err := svc.InitiateTASign(context.Background(), "ta-1")
	if err != nil {
		t.Fatalf("InitiateTASign: %v", err)
	}
	if round.Phase != domain.PhaseTA || round.SignURL == "" || round.CallbackToken == "" {
		t.Errorf("round = %+v", round)
	}
	a, _ := accounts.GetByID(context.Background(), "ta-1")
	if a.Status != accountdomain.StatusTAAgreementInitiated {
		t.Errorf("status = %s", a.Status)
	}

	// Re-entry returns the same open round, no duplicate provider call.
	again, err := svc.InitiateTASign(context.Background(), "ta-1")
	if err != nil {
		t.Fatalf("second InitiateTASign: %v", err)
	}
	if again.ID != round.ID {
		t.Errorf("new round %s created, want reuse of %s", again.ID, round.ID)
	}
}

func TestInitiateTASign_WrongStatus(t *testing.T) {
	svc, _, _ := newFixture(accountdomain.StatusApprovedByAdmin)
	if _, err := svc.InitiateTASign(context.Background(), "ta-1"); !errors.Is(err, accountdomain.ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
}

func TestCallback_TASignature(t *testing.T) {
	svc, accounts, agreements := newFixture(accountdomain.StatusPendingTAAgreement)
	round, err := svc.InitiateTASign(context.Background(), "ta-1")
	if err != nil {
		t.Fatalf("InitiateTASign: %v", err)
	}

	a, err := svc.HandleCallback(context.Background(), round.CallbackToken)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if a.Status != accountdomain.StatusTAAgreementSigned {
		t.Errorf("status = %s", a.Status)
	}
	stored, _ := agreements.GetByCallbackToken(context.Background(), round.CallbackToken)
	if !stored.Completed() {
		t.Error("round not marked completed")
	}
	_ = accounts

	// The token is single-use.
	if _, err := svc.HandleCallback(context.Background(), round.CallbackToken); !errors.Is(err, ErrCallbackCompleted) {
		t.Errorf("replayed callback: err = %v, want ErrCallbackCompleted", err)
	}
}

func TestCallback_AdminCounterSignature(t *testing.T) {
	svc, accounts, _ := newFixture(accountdomain.StatusTAAgreementSigned)

	round, err := svc.InitiateAdminCounterSign(context.Background(), "admin-1", "ta-1")
	if err != nil {
		t.Fatalf("InitiateAdminCounterSign: %v", err)
	}
	a, _ := accounts.GetByID(context.Background(), "ta-1")
	if a.Status != accountdomain.StatusAdminSignatureInitiated {
		t.Fatalf("status = %s", a.Status)
	}

	a, err = svc.HandleCallback(context.Background(), round.CallbackToken)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if a.Status != accountdomain.StatusAdminSignatureSigned {
		t.Errorf("status = %s", a.Status)
	}
}

func TestCallback_UnknownToken(t *testing.T) {
	svc, _, _ := newFixture(accountdomain.StatusPendingTAAgreement)
	if _, err := svc.HandleCallback(context.Background(), "nope"); !errors.Is(err, ErrUnknownCallback) {
		t.Fatalf("err = %v, want ErrUnknownCallback", err)
	}
}

func TestCallback_AfterSuspension(t *testing.T) {
	svc, accounts, agreements := newFixture(accountdomain.StatusPendingTAAgreement)
	round, err := svc.InitiateTASign(context.Background(), "ta-1")
	if err != nil {
		t.Fatalf("InitiateTASign: %v", err)
	}

	// An admin suspends the account while the signature is in flight.
	accounts.mu.Lock()
	accounts.byID["ta-1"].Status = accountdomain.StatusSuspended
	accounts.mu.Unlock()

	_, err = svc.HandleCallback(context.Background(), round.CallbackToken)
	if !errors.Is(err, ErrStaleCallback) {
		t.Fatalf("err = %v, want ErrStaleCallback", err)
	}
	a, _ := accounts.GetByID(context.Background(), "ta-1")
	if a.Status != accountdomain.StatusSuspended {
		t.Errorf("stale callback changed status to %s", a.Status)
	}
	stored, _ := agreements.GetByCallbackToken(context.Background(), round.CallbackToken)
	if !stored.Completed() {
		t.Error("signature not recorded for stale callback")
	}
}
