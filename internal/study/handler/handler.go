// Package handler exposes the study endpoints.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	accountdomain "trading-advisory/backend/internal/account/domain"
	"trading-advisory/backend/internal/server/middleware"
	"trading-advisory/backend/internal/server/respond"
	"trading-advisory/backend/internal/study/domain"
	"trading-advisory/backend/internal/study/service"
)

// StudyView is the wire shape of a published study.
type StudyView struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	StockExchange string    `json:"stockExchange"`
	StockName     string    `json:"stockName"`
	StockIndex    string    `json:"stockIndex,omitempty"`
	CurrentPrice  float64   `json:"currentPrice"`
	ExpectedPrice float64   `json:"expectedPrice"`
	Action        string    `json:"action"`
	Analysis      string    `json:"analysis,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func studyView(s *domain.Study) StudyView {
	return StudyView{
		ID:            s.ID,
		UserID:        s.AccountID,
		StockExchange: s.StockExchange,
		StockName:     s.StockName,
		StockIndex:    s.StockIndex,
		CurrentPrice:  s.CurrentPrice,
		ExpectedPrice: s.ExpectedPrice,
		Action:        string(s.Action),
		Analysis:      s.Analysis,
		CreatedAt:     s.CreatedAt,
	}
}

func studyViews(studies []*domain.Study) []StudyView {
	views := make([]StudyView, 0, len(studies))
	for _, s := range studies {
		views = append(views, studyView(s))
	}
	return views
}

// Handler serves study publication and listing.
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Publish handles POST /studies. The author is always the signed-in caller;
// a userId in the body is ignored.
func (h *Handler) Publish(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return
	}
	var body struct {
		UserID        string  `json:"userId"`
		StockExchange string  `json:"stockExchange" binding:"required"`
		StockName     string  `json:"stockName" binding:"required"`
		StockIndex    string  `json:"stockIndex"`
		CurrentPrice  float64 `json:"currentPrice" binding:"required"`
		ExpectedPrice float64 `json:"expectedPrice" binding:"required"`
		Action        string  `json:"action" binding:"required"`
		Analysis      string  `json:"analysis"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "stockExchange, stockName, currentPrice, expectedPrice and action are required")
		return
	}
	s, err := h.svc.Publish(c.Request.Context(), id.AccountID, service.PublishInput{
		StockExchange: body.StockExchange,
		StockName:     body.StockName,
		StockIndex:    body.StockIndex,
		CurrentPrice:  body.CurrentPrice,
		ExpectedPrice: body.ExpectedPrice,
		Action:        domain.TradeAction(body.Action),
		Analysis:      body.Analysis,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusCreated, studyView(s))
}

// ListByTA handles GET /studies/by-ta/:taId.
func (h *Handler) ListByTA(c *gin.Context) {
	studies, err := h.svc.ListByTA(c.Request.Context(), c.Param("taId"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, studyViews(studies))
}

// List handles GET /studies. An admin sees every study; a TA sees their own.
func (h *Handler) List(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return
	}
	var (
		studies []*domain.Study
		err     error
	)
	if id.Role == accountdomain.RoleAdmin {
		studies, err = h.svc.ListAll(c.Request.Context())
	} else {
		studies, err = h.svc.ListByTA(c.Request.Context(), id.AccountID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Success(c, http.StatusOK, studyViews(studies))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "account not found")
	case errors.Is(err, service.ErrStudyNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "study not found")
	case errors.Is(err, service.ErrNotVerifiedTA):
		respond.Error(c, http.StatusForbidden, "not_verified", err.Error())
	case errors.Is(err, service.ErrInvalidStudy):
		respond.Error(c, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
