// Package freeagent is a client for a FreeAgent-shaped accounting API:
// OAuth2 bearer authentication with refresh-token rotation, counterparty
// (contact) resolution, bill and expense creation, and receipt
// attachment binding across the several incompatible attachment
// mechanisms observed in the wild.
package freeagent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultUserAgent = "receipt-relay"

	// The fixed line-item category for relayed receipts. No category
	// classification happens in this system.
	defaultCategoryPath = "/v2/categories/285" // general purchases
)

// Config configures a Client.
type Config struct {
	// BaseURL is the accounting API base, e.g.
	// https://api.sandbox.freeagent.com.
	BaseURL     string
	UserAgent   string
	Credentials CredentialStore

	// CategoryPath overrides the default line-item category path.
	CategoryPath string

	Timeout time.Duration
}

// Client talks to the accounting API through an Executor so that every
// call gets the single 401-refresh-retry behaviour.
type Client struct {
	baseURL      string
	userAgent    string
	categoryPath string
	exec         *Executor
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	categoryPath := cfg.CategoryPath
	if categoryPath == "" {
		categoryPath = defaultCategoryPath
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:    userAgent,
		categoryPath: categoryPath,
		exec:         NewExecutor(cfg.Credentials, cfg.Timeout),
	}
}

// url joins a path onto the API base.
func (c *Client) url(path string) string {
	return c.baseURL + path
}

// categoryURL is the full URL of the fixed default category.
func (c *Client) categoryURL() string {
	return c.url(c.categoryPath)
}

// jsonRequest returns a RequestFactory for a JSON call. The payload is
// re-marshalled on every build so a post-refresh retry gets a fresh body.
func (c *Client) jsonRequest(method, url string, payload any) RequestFactory {
	return func(token string) (*http.Request, error) {
		var body *bytes.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshaling payload: %w", err)
			}
			body = bytes.NewReader(data)
		} else {
			body = bytes.NewReader(nil)
		}
		req, err := http.NewRequest(method, url, body)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}
}

// setHeaders applies the headers every accounting API call carries.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}
