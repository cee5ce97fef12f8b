// Package esign talks to the external e-signature provider that collects the
// TA agreement signatures.
package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 20 * time.Second

// SignRequest describes one signing round to create with the provider.
type SignRequest struct {
	SignerName  string `json:"signer_name"`
	SignerEmail string `json:"signer_email"`
	DocumentRef string `json:"document_ref"`
	// RedirectURL is where the provider sends the signer after completion; it
	// carries the callback token.
	RedirectURL string `json:"redirect_url"`
}

// SignResponse is the provider's answer: where to send the signer, and the
// provider-side id of the request.
type SignResponse struct {
	SignURL  string `json:"sign_url"`
	ClientID string `json:"client_id"`
}

// Provider creates sign requests. HTTPProvider talks to the real service;
// DevProvider fabricates local URLs for development.
type Provider interface {
	CreateSignRequest(ctx context.Context, req SignRequest) (*SignResponse, error)
}

// HTTPProvider is a JSON-over-HTTP e-sign provider client.
type HTTPProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPProvider returns a provider client for the given base URL and API key.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// CreateSignRequest registers the signing round with the provider and returns
// the hosted sign URL.
func (p *HTTPProvider) CreateSignRequest(ctx context.Context, req SignRequest) (*SignResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/sign-requests", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("esign: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	var out SignResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.SignURL == "" {
		return nil, fmt.Errorf("esign: provider returned no sign URL")
	}
	return &out, nil
}

// DevProvider answers every request with the redirect URL itself, so clicking
// "sign" immediately completes the round against the local callback endpoint.
type DevProvider struct{}

func (DevProvider) CreateSignRequest(ctx context.Context, req SignRequest) (*SignResponse, error) {
	if _, err := url.Parse(req.RedirectURL); err != nil {
		return nil, err
	}
	return &SignResponse{SignURL: req.RedirectURL}, nil
}
