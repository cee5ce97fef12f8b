// Package middleware holds the gin middleware chain: tracing, bearer auth,
// the route guard, and audit logging.
package middleware

import (
	"github.com/gin-gonic/gin"

	accountdomain "trading-advisory/backend/internal/account/domain"
)

// identityKey is the gin context key the auth middleware stores the caller under.
const identityKey = "advisory.identity"

// Identity is the authenticated caller, re-derived from storage on every
// request. FrontendRole reflects the account's current status, not the status
// at login time.
type Identity struct {
	AccountID    string
	SessionID    string
	Username     string
	Role         accountdomain.Role
	Status       accountdomain.Status
	FrontendRole accountdomain.FrontendRole
}

// IdentityFrom returns the caller identity set by RequireAuth, or nil.
func IdentityFrom(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, ok := v.(*Identity)
	if !ok {
		return nil
	}
	return id
}

func setIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
}
