package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/study/domain"
)

type memAccounts struct {
	byID map[string]*accountdomain.Account
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	if a, ok := r.byID[id]; ok {
		a2 := *a
		return &a2, nil
	}
	return nil, nil
}

type memStudies struct {
	mu sync.Mutex
	m  map[string]*domain.Study
}

func (r *memStudies) Create(ctx context.Context, s *domain.Study) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memStudies) GetByID(ctx context.Context, id string) (*domain.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memStudies) ListByAccount(ctx context.Context, accountID string) ([]*domain.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Study
	for _, s := range r.m {
		if s.AccountID == accountID {
			s2 := *s
			out = append(out, &s2)
		}
	}
	return out, nil
}

func (r *memStudies) ListAll(ctx context.Context) ([]*domain.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Study
	for _, s := range r.m {
		s2 := *s
		out = append(out, &s2)
	}
	return out, nil
}

func newFixture(status accountdomain.Status) (*Service, *memStudies) {
	accounts := &memAccounts{byID: map[string]*accountdomain.Account{
		"ta-1": {ID: "ta-1", Role: accountdomain.RoleTrustedAssociate, Status: status},
	}}
	studies := &memStudies{m: map[string]*domain.Study{}}
	return NewService(accounts, studies), studies
}

func validInput() PublishInput {
	return PublishInput{
		StockExchange: "NSE",
		StockName:     "RELIANCE",
		CurrentPrice:  2850.50,
		ExpectedPrice: 3100,
		Action:        domain.TradeActionBuy,
		Analysis:      "Strong refining margins this quarter.",
	}
}

func TestPublish_VerifiedTA(t *testing.T) {
	svc, studies := newFixture(accountdomain.StatusAdminSignatureSigned)

	s, err := svc.Publish(context.Background(), "ta-1", validInput())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if s.AccountID != "ta-1" || s.Action != domain.TradeActionBuy {
		t.Errorf("study = %+v", s)
	}
	got, _ := studies.GetByID(context.Background(), s.ID)
	if got == nil {
		t.Error("study not persisted")
	}
}

func TestPublish_NonVerifiedRefused(t *testing.T) {
	for _, status := range []accountdomain.Status{
		accountdomain.StatusApprovedByAdmin,
		accountdomain.StatusPendingTAAgreement,
		accountdomain.StatusSuspended,
	} {
		svc, _ := newFixture(status)
		if _, err := svc.Publish(context.Background(), "ta-1", validInput()); !errors.Is(err, ErrNotVerifiedTA) {
			t.Errorf("status %s: err = %v, want ErrNotVerifiedTA", status, err)
		}
	}
}

func TestPublish_UnknownAuthor(t *testing.T) {
	svc, _ := newFixture(accountdomain.StatusAdminSignatureSigned)
	if _, err := svc.Publish(context.Background(), "nobody", validInput()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestPublish_InvalidInput(t *testing.T) {
	svc, _ := newFixture(accountdomain.StatusAdminSignatureSigned)

	in := validInput()
	in.CurrentPrice = 0
	if _, err := svc.Publish(context.Background(), "ta-1", in); err == nil {
		t.Error("zero price accepted")
	}

	in = validInput()
	in.Action = domain.TradeAction("SHORT")
	if _, err := svc.Publish(context.Background(), "ta-1", in); err == nil {
		t.Error("unknown action accepted")
	}
}

func TestGetAndList(t *testing.T) {
	svc, _ := newFixture(accountdomain.StatusAdminSignatureSigned)
	ctx := context.Background()

	s1, err := svc.Publish(ctx, "ta-1", validInput())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := svc.Get(ctx, s1.ID)
	if err != nil || got.ID != s1.ID {
		t.Errorf("Get = (%v, %v)", got, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrStudyNotFound) {
		t.Errorf("missing study: err = %v", err)
	}

	byTA, err := svc.ListByTA(ctx, "ta-1")
	if err != nil || len(byTA) != 1 {
		t.Errorf("ListByTA = (%v, %v)", byTA, err)
	}
	all, err := svc.ListAll(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListAll = (%v, %v)", all, err)
	}
}
