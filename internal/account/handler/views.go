// Package handler exposes the account endpoints: registration, login, and the
// admin review surface.
package handler

import (
	"time"

	"trading-advisory/backend/internal/account/domain"
)

// AccountView is the wire shape of an account. The password hash never leaves
// the service; the NSIM document key is exposed so clients can tell whether a
// certificate is on file.
type AccountView struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	Status          string    `json:"status"`
	PhoneNumber     string    `json:"phoneNumber,omitempty"`
	AadhaarNumber   string    `json:"aadhaarNumber,omitempty"`
	IsOtpSentToUser bool      `json:"isOtpSentToUser"`
	NsimDocumentKey string    `json:"nsimDocumentKey,omitempty"`
	NsimNumber      string    `json:"nsimNumber,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func accountView(a *domain.Account) AccountView {
	v := AccountView{
		ID:              a.ID,
		Username:        a.Username,
		Name:            a.Name,
		Email:           a.Email,
		Role:            string(a.Role),
		Status:          string(a.Status),
		PhoneNumber:     a.PhoneNumber,
		AadhaarNumber:   a.AadhaarNumber,
		IsOtpSentToUser: a.IsOtpSentToUser,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.NsimDocumentKey != nil {
		v.NsimDocumentKey = *a.NsimDocumentKey
	}
	if a.NsimNumber != nil {
		v.NsimNumber = *a.NsimNumber
	}
	return v
}

func accountViews(accounts []*domain.Account) []AccountView {
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	return views
}
