package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"trading-advisory/backend/internal/audit"
)

// Audit records one audit entry per completed request. Reads are skipped; the
// interesting trail is who changed what. Runs outermost so it sees the final
// status and any identity set by auth.
func Audit(logger audit.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if logger == nil || c.Request.Method == "GET" {
			return
		}
		route := c.FullPath()
		if route == "" {
			// Unmatched routes are noise, not actions.
			return
		}
		ar := audit.ParseRoute(c.Request.Method, route)

		actorID := ""
		if id := IdentityFrom(c); id != nil {
			actorID = id.AccountID
		}
		// The target account is the :userId path param when present, else the
		// actor. On /approve the segment names the acting admin, so the entry
		// records the actor; the body-level target lands in the telemetry event.
		accountID := c.Param("userId")
		if accountID == "" {
			accountID = actorID
		}
		metadata := fmt.Sprintf(`{"status":%d}`, c.Writer.Status())
		logger.LogEvent(c.Request.Context(), actorID, accountID, ar.Action, ar.Resource, c.ClientIP(), metadata)
	}
}
