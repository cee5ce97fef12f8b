package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/account/repository"
	otpdomain "trading-advisory/backend/internal/otp/domain"
	sessiondomain "trading-advisory/backend/internal/session/domain"
)

type memAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byID: map[string]*domain.Account{}}
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a2 := *a
		return &a2, nil
	}
	return nil, nil
}

func (r *memAccountRepo) GetByLogin(ctx context.Context, login string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Username == login || a.Email == login {
			a2 := *a
			return &a2, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a2 := *a
	r.byID[a.ID] = &a2
	return nil
}

func (r *memAccountRepo) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return repository.ErrStatusConflict
	}
	a.Status = to
	return nil
}

func (r *memAccountRepo) SetNsim(ctx context.Context, id, documentKey, nsimNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.NsimDocumentKey = &documentKey
		a.NsimNumber = &nsimNumber
	}
	return nil
}

func (r *memAccountRepo) SetNsimAndStatus(ctx context.Context, id, documentKey, nsimNumber string, from, to domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return repository.ErrStatusConflict
	}
	a.NsimDocumentKey = &documentKey
	a.NsimNumber = &nsimNumber
	a.Status = to
	return nil
}

func (r *memAccountRepo) MarkOTPSent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.IsOtpSentToUser = true
	}
	return nil
}

func (r *memAccountRepo) ListByRoleAndStatus(ctx context.Context, role domain.Role, status domain.Status) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.byID {
		if a.Role == role && a.Status == status {
			a2 := *a
			out = append(out, &a2)
		}
	}
	return out, nil
}

func (r *memAccountRepo) ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.byID {
		if a.Role == role {
			a2 := *a
			out = append(out, &a2)
		}
	}
	return out, nil
}

type memOTPRepo struct {
	mu sync.Mutex
	m  map[string][]*otpdomain.Challenge // by account id, newest last
}

func newMemOTPRepo() *memOTPRepo {
	return &memOTPRepo{m: map[string][]*otpdomain.Challenge{}}
}

func (r *memOTPRepo) Create(ctx context.Context, c *otpdomain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c2 := *c
	r.m[c.AccountID] = append(r.m[c.AccountID], &c2)
	return nil
}

func (r *memOTPRepo) GetLatestByAccount(ctx context.Context, accountID string) (*otpdomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs := r.m[accountID]
	if len(cs) == 0 {
		return nil, nil
	}
	c2 := *cs[len(cs)-1]
	return &c2, nil
}

func (r *memOTPRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, accountID)
	return nil
}

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: map[string]*sessiondomain.Session{}}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		t := time.Now().UTC()
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionRepo) RevokeAllByAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := time.Now().UTC()
	for _, s := range r.m {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *memSessionRepo) liveCount(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.m {
		if s.AccountID == accountID && s.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeSMS struct {
	mu    sync.Mutex
	sent  []string // phone numbers
	codes []string
	fail  bool
}

func (f *fakeSMS) SendOTP(phone, otp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sms gateway down")
	}
	f.sent = append(f.sent, phone)
	f.codes = append(f.codes, otp)
	return nil
}

func (f *fakeSMS) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		return ""
	}
	return f.codes[len(f.codes)-1]
}
