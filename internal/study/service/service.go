package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/study/domain"
)

// Sentinel errors for the study service.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNotVerifiedTA   = errors.New("only fully verified trusted associates publish studies")
	ErrStudyNotFound   = errors.New("study not found")
	// ErrInvalidStudy wraps study payload validation failures.
	ErrInvalidStudy = errors.New("invalid study")
)

// AccountGetter looks up the author to re-check verification at publish time.
type AccountGetter interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
}

// StudyRepo is the study repository surface needed by the service.
type StudyRepo interface {
	Create(ctx context.Context, s *domain.Study) error
	GetByID(ctx context.Context, id string) (*domain.Study, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Study, error)
	ListAll(ctx context.Context) ([]*domain.Study, error)
}

// PublishInput is the payload for a new study.
type PublishInput struct {
	StockExchange string
	StockName     string
	StockIndex    string
	CurrentPrice  float64
	ExpectedPrice float64
	Action        domain.TradeAction
	Analysis      string
}

// Service publishes and lists TA stock studies.
type Service struct {
	accounts AccountGetter
	studies  StudyRepo
}

// NewService returns a study Service with the given dependencies.
func NewService(accounts AccountGetter, studies StudyRepo) *Service {
	return &Service{accounts: accounts, studies: studies}
}

// Publish creates a study authored by authorID. Verification is re-derived from
// the stored account, not the token, so a TA suspended mid-session cannot publish.
func (s *Service) Publish(ctx context.Context, authorID string, in PublishInput) (*domain.Study, error) {
	a, err := s.accounts.GetByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	fr, err := accountdomain.DeriveFrontendRole(a.Role, a.Status)
	if err != nil || fr != accountdomain.FrontendRoleTA {
		return nil, ErrNotVerifiedTA
	}

	study := &domain.Study{
		ID:            uuid.New().String(),
		AccountID:     authorID,
		StockExchange: in.StockExchange,
		StockName:     in.StockName,
		StockIndex:    in.StockIndex,
		CurrentPrice:  in.CurrentPrice,
		ExpectedPrice: in.ExpectedPrice,
		Action:        in.Action,
		Analysis:      in.Analysis,
		CreatedAt:     time.Now().UTC(),
	}
	if err := study.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStudy, err)
	}
	if err := s.studies.Create(ctx, study); err != nil {
		return nil, err
	}
	return study, nil
}

// Get returns a single study.
func (s *Service) Get(ctx context.Context, id string) (*domain.Study, error) {
	study, err := s.studies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if study == nil {
		return nil, ErrStudyNotFound
	}
	return study, nil
}

// ListByTA returns the studies authored by the given TA, newest first.
func (s *Service) ListByTA(ctx context.Context, taID string) ([]*domain.Study, error) {
	return s.studies.ListByAccount(ctx, taID)
}

// ListAll returns every study, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Study, error) {
	return s.studies.ListAll(ctx)
}
