package freeagent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestFactory builds an HTTP request carrying the given access token.
// The executor calls it again after a token refresh, so it must produce
// a fresh request (and a fresh body) on every call.
type RequestFactory func(token string) (*http.Request, error)

// Result is the outcome of an executed request with the body fully read.
type Result struct {
	StatusCode int
	Body       []byte
	Token      string
}

// OK reports whether the response status was a 2xx.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Executor sends requests with the current access token and retries
// exactly once after a credential refresh when the first attempt comes
// back 401. The second response is returned regardless of outcome, which
// bounds every logical call to one refresh cycle.
type Executor struct {
	creds      CredentialStore
	httpClient *http.Client
}

// NewExecutor creates an Executor around the given credential store.
func NewExecutor(creds CredentialStore, timeout time.Duration) *Executor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Do builds and sends the request with the current access token. On a
// 401 it refreshes the token once, rebuilds and resends, and returns the
// second result whatever its status.
func (e *Executor) Do(ctx context.Context, build RequestFactory) (*Result, error) {
	result, err := e.send(ctx, build, e.creds.AccessToken())
	if err != nil {
		return nil, err
	}
	if result.StatusCode != http.StatusUnauthorized {
		return result, nil
	}

	token, err := e.creds.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return e.send(ctx, build, token)
}

func (e *Executor) send(ctx context.Context, build RequestFactory, token string) (*Result, error) {
	req, err := build(token)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req = req.WithContext(ctx)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Result{StatusCode: resp.StatusCode, Body: body, Token: token}, nil
}
