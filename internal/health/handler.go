// Package health serves the liveness and readiness probe.
package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"trading-advisory/backend/internal/authz"
	"trading-advisory/backend/internal/server/respond"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler reports whether the database and the route policy engine are usable.
type Handler struct {
	db    Pinger
	authz *authz.Evaluator
}

func NewHandler(db Pinger, evaluator *authz.Evaluator) *Handler {
	return &Handler{db: db, authz: evaluator}
}

// Check handles GET /health.
func (h *Handler) Check(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "down"
			healthy = false
		} else {
			checks["database"] = "up"
		}
	}
	if h.authz != nil {
		if err := h.authz.HealthCheck(c.Request.Context()); err != nil {
			checks["route_policy"] = "down"
			healthy = false
		} else {
			checks["route_policy"] = "up"
		}
	}

	if !healthy {
		respond.Error(c, http.StatusServiceUnavailable, "unhealthy", "one or more dependencies are down")
		return
	}
	respond.Success(c, http.StatusOK, checks)
}
