// Package token talks to the push-delivery backend that issues and
// revokes delivery tokens for local subscriptions.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pushreg-backend/config"
	"pushreg-backend/internal/transport"
)

// HTTPSource implements transport.TokenSource against an HTTP delivery
// backend. Token exchange is a POST of the subscription payload; the
// backend is expected to answer idempotently for the same endpoint.
type HTTPSource struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// NewHTTPSource builds a delivery backend client from configuration.
func NewHTTPSource(cfg *config.DeliveryConfig) *HTTPSource {
	return &HTTPSource{
		baseURL: cfg.BaseURL,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type revokeResponse struct {
	Revoked bool `json:"revoked"`
}

// Token obtains a delivery token for the given subscription.
func (s *HTTPSource) Token(ctx context.Context, sub *transport.Subscription) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to encode subscription: %w", err)
	}

	var resp tokenResponse
	if err := s.post(ctx, "/tokens", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("delivery backend returned an empty token")
	}
	return resp.Token, nil
}

// Revoke invalidates a delivery token, reporting whether the backend
// actually forgot it.
func (s *HTTPSource) Revoke(ctx context.Context, token string) (bool, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return false, fmt.Errorf("failed to encode revocation: %w", err)
	}

	var resp revokeResponse
	if err := s.post(ctx, "/tokens/revoke", body, &resp); err != nil {
		return false, err
	}
	return resp.Revoked, nil
}

func (s *HTTPSource) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery backend request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery backend returned %d for %s: %s", resp.StatusCode, path, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
