package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/security"
	"trading-advisory/backend/internal/server/respond"
	sessiondomain "trading-advisory/backend/internal/session/domain"
)

// AccountLookup loads the caller's account so role and status are always current.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
}

// SessionLookup checks that the token's session is still live.
type SessionLookup interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// Authenticator resolves a bearer token to a caller identity: token claims,
// then session liveness, then the stored account. The frontend role is
// re-derived on every request so a status change takes effect immediately.
type Authenticator struct {
	tokens   *security.TokenProvider
	sessions SessionLookup
	accounts AccountLookup
}

func NewAuthenticator(tokens *security.TokenProvider, sessions SessionLookup, accounts AccountLookup) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, accounts: accounts}
}

var (
	errNoToken     = errors.New("missing bearer token")
	errBadToken    = errors.New("invalid or expired token")
	errDeadSession = errors.New("session revoked or expired")
	errNoAccount   = errors.New("account no longer exists")

	// errStoreUnavailable marks a session or account lookup failure. It is an
	// infrastructure fault, not an auth failure, and its cause never reaches
	// the client.
	errStoreUnavailable = errors.New("identity store unavailable")
)

func (a *Authenticator) identify(c *gin.Context) (*Identity, error) {
	raw := bearerToken(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, errNoToken
	}
	sessionID, accountID, err := a.tokens.ValidateAccess(raw)
	if err != nil {
		return nil, errBadToken
	}
	sess, err := a.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStoreUnavailable, err)
	}
	if sess == nil || sess.AccountID != accountID || !sess.Live(time.Now().UTC()) {
		return nil, errDeadSession
	}
	acct, err := a.accounts.GetByID(c.Request.Context(), accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStoreUnavailable, err)
	}
	if acct == nil {
		return nil, errNoAccount
	}
	fr, err := accountdomain.DeriveFrontendRole(acct.Role, acct.Status)
	if err != nil {
		return nil, err
	}
	return &Identity{
		AccountID:    acct.ID,
		SessionID:    sess.ID,
		Username:     acct.Username,
		Role:         acct.Role,
		Status:       acct.Status,
		FrontendRole: fr,
	}, nil
}

// RequireAuth guards API routes. Auth failures are 401 envelopes; a status
// that no longer permits login carries the status-specific refusal message,
// exactly as a fresh login attempt would. A store failure is a generic 500.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.identify(c)
		if err != nil {
			if errors.Is(err, errStoreUnavailable) {
				respond.Error(c, http.StatusInternalServerError, "internal", "internal error")
				return
			}
			var refused *accountdomain.LoginRefusedError
			if errors.As(err, &refused) {
				respond.Error(c, http.StatusUnauthorized, "access_revoked", refused.Message)
				return
			}
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// RequirePageAuth guards the dashboard (browser) surface. An unauthenticated or
// roleless caller is sent to the login page with the original location preserved
// for the post-login redirect.
func (a *Authenticator) RequirePageAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.identify(c)
		if err != nil {
			if errors.Is(err, errStoreUnavailable) {
				respond.Error(c, http.StatusInternalServerError, "internal", "internal error")
				return
			}
			c.Redirect(http.StatusSeeOther, "/login?from="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
