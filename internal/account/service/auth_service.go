package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/security"
	sessiondomain "trading-advisory/backend/internal/session/domain"
	"trading-advisory/backend/internal/telemetry"
	telemetrydomain "trading-advisory/backend/internal/telemetry/domain"
)

// ErrInvalidCredentials is returned for unknown logins and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
}

// LoginResult holds the outcome of a successful login: the bearer token plus
// the derived frontend role and its dashboard route.
type LoginResult struct {
	AccessToken  string
	ExpiresAt    time.Time
	AccountID    string
	Username     string
	FrontendRole domain.FrontendRole
	Dashboard    string
	Status       domain.Status
}

// AuthService implements login and logout. The frontend role is derived from
// (role, status) on every login; it is never stored.
type AuthService struct {
	accounts  AccountRepo
	sessions  SessionRepo
	hasher    *security.Hasher
	tokens    *security.TokenProvider
	emitter   telemetry.EventEmitter
	accessTTL time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	emitter telemetry.EventEmitter,
	accessTTL time.Duration,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		sessions:  sessions,
		hasher:    hasher,
		tokens:    tokens,
		emitter:   emitter,
		accessTTL: accessTTL,
	}
}

// Login authenticates by username or email and password, derives the frontend
// role, creates a session, and issues the access token.
//
// Refusals surface as *domain.LoginRefusedError so the handler can return the
// status-specific message; credential failures are always ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password, ipAddress string) (*LoginResult, error) {
	login := strings.TrimSpace(strings.ToLower(usernameOrEmail))
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	a, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	fr, err := domain.DeriveFrontendRole(a.Role, a.Status)
	if err != nil {
		telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
			AccountID: a.ID,
			EventType: telemetrydomain.EventLoginRefused,
			Source:    "auth",
			Metadata:  map[string]string{"role": string(a.Role), "status": string(a.Status)},
			CreatedAt: time.Now().UTC(),
		})
		return nil, err
	}

	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		AccountID: a.ID,
		ExpiresAt: now.Add(s.accessTTL),
		IPAddress: ipAddress,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	token, _, expiresAt, err := s.tokens.IssueAccess(sess.ID, a.ID)
	if err != nil {
		return nil, err
	}

	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		AccountID: a.ID,
		EventType: telemetrydomain.EventLoginSucceeded,
		Source:    "auth",
		Metadata:  map[string]string{"frontend_role": string(fr)},
		CreatedAt: now,
	})
	return &LoginResult{
		AccessToken:  token,
		ExpiresAt:    expiresAt,
		AccountID:    a.ID,
		Username:     a.Username,
		FrontendRole: fr,
		Dashboard:    domain.DashboardPath(fr),
		Status:       a.Status,
	}, nil
}

// Logout revokes the session. Revoking an already revoked or unknown session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID)
}
