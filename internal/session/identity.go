package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// IdentityClient asks the auth supplier which user owns a session. Gates for
// sessions created after the sign-in event was already published (a restart,
// a new instance) recover the identity here instead of waiting for an event
// that will never be redelivered.
type IdentityClient struct {
	baseURL string
	http    *http.Client
}

func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Lookup returns the user id bound to sessionID, or empty when nobody is
// signed in on that session.
func (c *IdentityClient) Lookup(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sessions/"+sessionID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build identity request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("auth supplier returned status %d", resp.StatusCode)
	}

	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	return payload.UserID, nil
}

// Identity adapts the client into the gate's IdentityFunc for one session.
func (c *IdentityClient) Identity(sessionID string) IdentityFunc {
	return func(ctx context.Context) (string, error) {
		return c.Lookup(ctx, sessionID)
	}
}

// AnonymousIdentity is the IdentityFunc used when no auth supplier is
// configured; every new session resolves anonymous until an auth event
// arrives.
func AnonymousIdentity(context.Context) (string, error) {
	return "", nil
}
