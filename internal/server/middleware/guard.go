package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trading-advisory/backend/internal/authz"
	"trading-advisory/backend/internal/server/respond"
)

// RouteGuard enforces the route policy for authenticated callers. A signed-in
// caller hitting another role's surface is redirected to their own dashboard;
// denial without a redirect target is a plain 403. Runs after RequireAuth.
func RouteGuard(evaluator *authz.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		decision, err := evaluator.Evaluate(c.Request.Context(), string(id.FrontendRole), c.Request.Method, path)
		if err != nil {
			// Fail closed.
			respond.Error(c, http.StatusForbidden, "forbidden", "route policy unavailable")
			return
		}
		if decision.Allow {
			c.Next()
			return
		}
		if decision.Redirect != "" {
			c.Redirect(http.StatusSeeOther, decision.Redirect)
			c.Abort()
			return
		}
		respond.Error(c, http.StatusForbidden, "forbidden", "access denied")
	}
}
