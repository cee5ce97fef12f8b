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
	"trading-advisory/backend/internal/server/middleware"
	"trading-advisory/backend/internal/server/respond"
	"trading-advisory/backend/internal/storage"
)

// certificateURLTTL bounds how long an admin's certificate review link stays valid.
const certificateURLTTL = 15 * time.Minute

// AdminHandler serves the admin review surface: listing registrations,
// inspecting one, driving status transitions, and NSIM certificate management.
type AdminHandler struct {
	svc   *service.AdminService
	certs storage.CertificateStore
}

func NewAdminHandler(svc *service.AdminService, certs storage.CertificateStore) *AdminHandler {
	return &AdminHandler{svc: svc, certs: certs}
}

// List handles GET /users/by-role-and-status with optional ?role= and ?status=
// filters. Role defaults to TRUSTED_ASSOCIATE.
func (h *AdminHandler) List(c *gin.Context) {
	role := domain.Role(strings.TrimSpace(c.Query("role")))
	status := domain.Status(strings.TrimSpace(c.Query("status")))
	if status != "" && !domain.ValidStatus(status) {
		respond.Error(c, http.StatusBadRequest, "invalid_input", fmt.Sprintf("unknown status %q", status))
		return
	}
	switch role {
	case "", domain.RoleAdmin, domain.RoleTrustedAssociate, domain.RoleAssociate:
	default:
		respond.Error(c, http.StatusBadRequest, "invalid_input", fmt.Sprintf("unknown role %q", role))
		return
	}
	accounts, err := h.svc.List(c.Request.Context(), role, status)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, accountViews(accounts))
}

// Get handles GET /admin/users/:userId. When the account carries an NSIM
// document a short-lived download URL is included for review.
func (h *AdminHandler) Get(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	data := gin.H{"account": accountView(a)}
	if a.HasNsimDocument() && h.certs != nil {
		if url, err := h.certs.PresignedURL(c.Request.Context(), *a.NsimDocumentKey, certificateURLTTL); err == nil {
			data["nsimDocumentUrl"] = url
		}
	}
	respond.Success(c, http.StatusOK, data)
}

// Approve handles POST /admin/users/{adminId}/approve. The path segment names
// the acting admin and must match the signed-in identity; the body names the
// target account and status, and the workflow table decides whether an admin
// action reaches it. An optional nsimCertificateHolderId links another
// account's certificate in the same request, so approval of a TA whose
// certificate lives on a sibling account is a single atomic step.
func (h *AdminHandler) Approve(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return
	}
	if c.Param("userId") != id.AccountID {
		respond.Error(c, http.StatusForbidden, "forbidden", "adminId does not match the signed-in admin")
		return
	}
	var body struct {
		UserID                  string `json:"userId" binding:"required"`
		Status                  string `json:"status" binding:"required"`
		NsimCertificateHolderID string `json:"nsimCertificateHolderId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "userId and status are required")
		return
	}
	target := domain.Status(body.Status)
	if !domain.ValidStatus(target) {
		respond.Error(c, http.StatusBadRequest, "invalid_input", fmt.Sprintf("unknown status %q", body.Status))
		return
	}
	a, err := h.svc.Transition(c.Request.Context(), id.AccountID, body.UserID, target, body.NsimCertificateHolderID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"account": accountView(a)})
}

// UploadNSIM handles POST /admin/users/:userId/nsim: multipart upload of a
// certificate document on behalf of a TA.
func (h *AdminHandler) UploadNSIM(c *gin.Context) {
	file, err := c.FormFile(nsimFileField)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "nsimCertificate file is required")
		return
	}
	nsimNumber := strings.TrimSpace(c.PostForm("nsimNumber"))
	if nsimNumber == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "nsimNumber is required")
		return
	}
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
	if err := h.certs.Upload(c.Request.Context(), key, src, file.Size, file.Header.Get("Content-Type")); err != nil {
		respond.Error(c, http.StatusBadGateway, "upload_failed", "certificate upload failed")
		return
	}
	a, err := h.svc.AttachNSIM(c.Request.Context(), c.Param("userId"), key, nsimNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"account": accountView(a)})
}

// LinkNSIM handles POST /admin/users/:userId/link-nsim: copies the certificate
// reference from another account that holds one.
func (h *AdminHandler) LinkNSIM(c *gin.Context) {
	var body struct {
		NsimCertificateHolderID string `json:"nsimCertificateHolderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "nsimCertificateHolderId is required")
		return
	}
	a, err := h.svc.LinkNSIM(c.Request.Context(), c.Param("userId"), body.NsimCertificateHolderID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"account": accountView(a)})
}
