package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/account/service"
	"trading-advisory/backend/internal/server/respond"
	"trading-advisory/backend/internal/storage"
)

// nsimFileField is the multipart field carrying the NSIM certificate document.
const nsimFileField = "nsimCertificate"

// RegistrationHandler serves TA self-registration and OTP verification.
type RegistrationHandler struct {
	svc   *service.RegistrationService
	certs storage.CertificateStore
}

func NewRegistrationHandler(svc *service.RegistrationService, certs storage.CertificateStore) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, certs: certs}
}

// Register handles POST /users/register. The body is multipart form data so
// the NSIM certificate can ride along with the profile fields; the certificate
// is optional and can also be attached later by an admin.
func (h *RegistrationHandler) Register(c *gin.Context) {
	if role := strings.TrimSpace(c.PostForm("role")); role != "" && role != string(domain.RoleTrustedAssociate) {
		respond.Error(c, http.StatusBadRequest, "invalid_input",
			fmt.Sprintf("self-registration is only open to %s accounts", domain.RoleTrustedAssociate))
		return
	}
	password := c.PostForm("password")
	if confirm := c.PostForm("confirmPassword"); confirm != password {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "password and confirmPassword do not match")
		return
	}

	in := service.RegisterInput{
		Name:          c.PostForm("name"),
		Username:      c.PostForm("username"),
		Email:         c.PostForm("email"),
		PhoneNumber:   c.PostForm("phoneNumber"),
		AadhaarNumber: c.PostForm("aadhaarNumber"),
		Password:      password,
		NsimNumber:    strings.TrimSpace(c.PostForm("nsimNumber")),
	}

	if file, err := c.FormFile(nsimFileField); err == nil {
		if h.certs == nil {
			respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "certificate storage is not configured")
			return
		}
		src, err := file.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "bad_upload", "could not read certificate upload")
			return
		}
		defer src.Close()

		key := fmt.Sprintf("nsim/%s%s", uuid.NewString(), filepath.Ext(file.Filename))
		contentType := file.Header.Get("Content-Type")
		if err := h.certs.Upload(c.Request.Context(), key, src, file.Size, contentType); err != nil {
			respond.Error(c, http.StatusBadGateway, "upload_failed", "certificate upload failed")
			return
		}
		in.NsimDocumentKey = key
	}

	a, err := h.svc.Register(c.Request.Context(), in)
	if err != nil && a == nil {
		writeError(c, err)
		return
	}

	// a != nil with err != nil means the account was created but OTP dispatch
	// failed; the TA retries via resend-otp.
	respond.Success(c, http.StatusCreated, registrationData(a))
}

// SubmitOTP handles POST /users/submit-otp.
func (h *RegistrationHandler) SubmitOTP(c *gin.Context) {
	var body struct {
		UserID string `json:"userId" binding:"required"`
		OTP    string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "userId and otp are required")
		return
	}
	a, err := h.svc.VerifyOTP(c.Request.Context(), body.UserID, body.OTP)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{
		"userId":     a.ID,
		"username":   a.Username,
		"status":     string(a.Status),
		"verifiedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// ResendOTP handles POST /users/resend-otp.
func (h *RegistrationHandler) ResendOTP(c *gin.Context) {
	var body struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "userId is required")
		return
	}
	a, err := h.svc.ResendOTP(c.Request.Context(), body.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, registrationData(a))
}

// registrationData is the wire shape shared by register and resend-otp.
func registrationData(a *domain.Account) gin.H {
	return gin.H{
		"id":              a.ID,
		"username":        a.Username,
		"status":          string(a.Status),
		"isOtpSentToUser": a.IsOtpSentToUser,
	}
}
