// Package handler exposes the agreement endpoints: the TA signing flow, the
// admin counter-signature, and the e-sign provider callback.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/agreement/domain"
	"trading-advisory/backend/internal/agreement/service"
	"trading-advisory/backend/internal/server/middleware"
	"trading-advisory/backend/internal/server/respond"
)

// AgreementView is the wire shape of a signing round. The callback token is
// never exposed; the signer only needs the provider's sign URL.
type AgreementView struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Phase       string     `json:"phase"`
	SignURL     string     `json:"signUrl,omitempty"`
	ClientID    string     `json:"clientId,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func agreementView(a *domain.Agreement) AgreementView {
	return AgreementView{
		ID:          a.ID,
		AccountID:   a.AccountID,
		Phase:       string(a.Phase),
		SignURL:     a.SignURL,
		ClientID:    a.ClientID,
		CompletedAt: a.CompletedAt,
		CreatedAt:   a.CreatedAt,
	}
}

// Handler serves the agreement endpoints.
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// SignAgreement handles POST /users/:userId/sign-agreement. Only the account
// itself may start its signing round; re-entry while a round is open returns
// the same sign URL.
func (h *Handler) SignAgreement(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return
	}
	if c.Param("userId") != id.AccountID {
		respond.Error(c, http.StatusForbidden, "forbidden", "userId does not match the signed-in account")
		return
	}
	ag, err := h.svc.InitiateTASign(c.Request.Context(), id.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{
		"userId": ag.AccountID,
		"status": string(accountdomain.StatusTAAgreementInitiated),
		"url":    ag.SignURL,
	})
}

// AdminCounterSign handles POST /admin/users/:userId/esign-agreement-by-admin.
func (h *Handler) AdminCounterSign(c *gin.Context) {
	actorID := ""
	if id := middleware.IdentityFrom(c); id != nil {
		actorID = id.AccountID
	}
	ag, err := h.svc.InitiateAdminCounterSign(c.Request.Context(), actorID, c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{
		"userId":   ag.AccountID,
		"status":   string(accountdomain.StatusAdminSignatureInitiated),
		"eSignUrl": ag.SignURL,
		"clientId": ag.ClientID,
	})
}

// Callback handles GET /esign/callback?token=... from the e-sign provider.
// Unauthenticated; the single-use token is the credential.
func (h *Handler) Callback(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "token is required")
		return
	}
	a, err := h.svc.HandleCallback(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{
		"accountId": a.ID,
		"status":    string(a.Status),
	})
}

// History handles GET /agreements for the calling account.
func (h *Handler) History(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return
	}
	rounds, err := h.svc.History(c.Request.Context(), id.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]AgreementView, 0, len(rounds))
	for _, r := range rounds {
		views = append(views, agreementView(r))
	}
	respond.Success(c, http.StatusOK, gin.H{"agreements": views})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "account not found")
	case errors.Is(err, service.ErrUnknownCallback):
		respond.Error(c, http.StatusNotFound, "unknown_callback", err.Error())
	case errors.Is(err, service.ErrCallbackCompleted):
		respond.Error(c, http.StatusConflict, "callback_completed", err.Error())
	case errors.Is(err, service.ErrStaleCallback):
		// The signature was recorded; the account just is not in the signing
		// state anymore.
		respond.Error(c, http.StatusConflict, "stale_callback", err.Error())
	case errors.Is(err, accountdomain.ErrIllegalTransition):
		respond.Error(c, http.StatusConflict, "illegal_transition", err.Error())
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
