package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/account/service"
	"trading-advisory/backend/internal/server/middleware"
	"trading-advisory/backend/internal/server/respond"
)

// AccountGetter loads the signed-in account so login can return the full profile.
type AccountGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}

// AuthHandler serves login and logout.
type AuthHandler struct {
	svc      *service.AuthService
	accounts AccountGetter
}

func NewAuthHandler(svc *service.AuthService, accounts AccountGetter) *AuthHandler {
	return &AuthHandler{svc: svc, accounts: accounts}
}

// Login handles POST /users/login. The response carries the account profile
// along with the bearer token and the dashboard the client should land on.
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
		Password        string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "usernameOrEmail and password are required")
		return
	}
	res, err := h.svc.Login(c.Request.Context(), body.UsernameOrEmail, body.Password, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	a, err := h.accounts.GetByID(c.Request.Context(), res.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}
	if a == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "account not found")
		return
	}
	v := accountView(a)
	respond.Success(c, http.StatusOK, gin.H{
		"id":              v.ID,
		"username":        v.Username,
		"name":            v.Name,
		"email":           v.Email,
		"role":            v.Role,
		"status":          v.Status,
		"phoneNumber":     v.PhoneNumber,
		"aadhaarNumber":   v.AadhaarNumber,
		"isOtpSentToUser": v.IsOtpSentToUser,
		"nsimDocumentKey": v.NsimDocumentKey,
		"accessToken":     res.AccessToken,
		"expiresAt":       res.ExpiresAt.UTC().Format(time.RFC3339),
		"frontendRole":    string(res.FrontendRole),
		"dashboard":       res.Dashboard,
	})
}

// Logout handles POST /users/logout. Revoking an already-revoked session is a no-op.
func (h *AuthHandler) Logout(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return
	}
	if err := h.svc.Logout(c.Request.Context(), id.SessionID); err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}
