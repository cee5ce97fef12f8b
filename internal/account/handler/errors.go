package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/account/service"
	"trading-advisory/backend/internal/server/respond"
)

// writeError maps service and domain errors onto the response envelope.
func writeError(c *gin.Context, err error) {
	var refused *domain.LoginRefusedError
	switch {
	case errors.As(err, &refused):
		respond.Error(c, http.StatusUnauthorized, "login_refused", refused.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "incorrect username or password")
	case errors.Is(err, service.ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "account not found")
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "already_registered", err.Error())
	case errors.Is(err, service.ErrOTPNotPending):
		respond.Error(c, http.StatusConflict, "otp_not_pending", err.Error())
	case errors.Is(err, service.ErrOTPExpired):
		respond.Error(c, http.StatusBadRequest, "otp_expired", err.Error())
	case errors.Is(err, service.ErrOTPInvalid):
		respond.Error(c, http.StatusBadRequest, "otp_invalid", err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, service.ErrNotTrustedAssociate):
		respond.Error(c, http.StatusConflict, "not_trusted_associate", err.Error())
	case errors.Is(err, service.ErrHolderHasNoNSIM):
		respond.Error(c, http.StatusConflict, "holder_has_no_nsim", err.Error())
	case errors.Is(err, domain.ErrNSIMRequired):
		respond.Error(c, http.StatusConflict, "nsim_required", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		respond.Error(c, http.StatusConflict, "illegal_transition", err.Error())
	case service.IsStatusConflict(err):
		respond.Error(c, http.StatusConflict, "status_conflict", "account status changed concurrently; reload and retry")
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
