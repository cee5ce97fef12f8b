// Package handler exposes the dev-only OTP retrieval endpoint. It is mounted
// only when dev OTP mode is enabled and must never ship in production config.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trading-advisory/backend/internal/devotp"
	"trading-advisory/backend/internal/server/respond"
)

// Handler serves GET /dev/otp/:userId.
type Handler struct {
	store devotp.Store
}

func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Get returns the live OTP for an account, or 404 when none is pending.
func (h *Handler) Get(c *gin.Context) {
	code, ok := h.store.Get(c.Request.Context(), c.Param("userId"))
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "no pending OTP for this account")
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"otp": code})
}
