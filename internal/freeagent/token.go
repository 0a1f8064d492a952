package freeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	productionTokenEndpoint = "https://api.freeagent.com/v2/token_endpoint"
	sandboxTokenEndpoint    = "https://api.sandbox.freeagent.com/v2/token_endpoint"
)

// CredentialStore provides the current access token and exchanges the
// refresh token for a new one on demand. Implementations must be safe
// for concurrent use: multiple in-flight requests share one store.
type CredentialStore interface {
	// AccessToken returns the current access token.
	AccessToken() string

	// Refresh exchanges the refresh token for a new access token,
	// stores it, and returns it.
	Refresh(ctx context.Context) (string, error)
}

// OAuthConfig configures an OAuthCredentials store.
type OAuthConfig struct {
	// APIBase is the accounting API base URL. A "sandbox" marker in the
	// host selects the sandbox token endpoint.
	APIBase      string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string

	// TokenEndpoint overrides the endpoint derived from APIBase.
	TokenEndpoint string

	Timeout time.Duration
}

// OAuthCredentials holds the token pair for the accounting API and
// refreshes it in place. A mutex serializes refreshes so two requests
// that both hit a 401 cannot clobber each other's new token.
type OAuthCredentials struct {
	mu            sync.Mutex
	clientID      string
	clientSecret  string
	accessToken   string
	refreshToken  string
	tokenEndpoint string
	httpClient    *http.Client
}

// NewOAuthCredentials creates a credential store from cfg.
func NewOAuthCredentials(cfg OAuthConfig) *OAuthCredentials {
	endpoint := cfg.TokenEndpoint
	if endpoint == "" {
		endpoint = productionTokenEndpoint
		if strings.Contains(cfg.APIBase, "sandbox") {
			endpoint = sandboxTokenEndpoint
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OAuthCredentials{
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		accessToken:   cfg.AccessToken,
		refreshToken:  cfg.RefreshToken,
		tokenEndpoint: endpoint,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// AccessToken returns the current access token.
func (c *OAuthCredentials) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Refresh posts the refresh token to the token endpoint and stores the
// new access token (and the refresh token too, if the endpoint rotated
// it). It returns an AuthError on a non-success status or when the
// response carries no access token.
func (c *OAuthCredentials) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", c.refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.StatusCode, Body: truncateBody(body)}
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	if tokenResp.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: truncateBody(body)}
	}

	c.accessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		c.refreshToken = tokenResp.RefreshToken
	}
	slog.Info("Refreshed access token")

	return c.accessToken, nil
}
