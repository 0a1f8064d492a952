package freeagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

type contact struct {
	URL              string `json:"url"`
	OrganisationName string `json:"organisation_name"`
	FirstName        string `json:"first_name"`
}

// ResolveContact finds the contact whose organisation name matches the
// given merchant name (case-insensitive equality) and returns its URL,
// creating the contact when no match exists. The name doubles as the
// first name on creation because the contact schema requires a person
// name.
func (c *Client) ResolveContact(ctx context.Context, name string) (string, error) {
	result, err := c.exec.Do(ctx, c.jsonRequest("GET", c.url("/v2/contacts?view=active"), nil))
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", &UpstreamError{Operation: "contact search", Status: result.StatusCode, Body: truncateBody(result.Body)}
	}

	var listing struct {
		Contacts []contact `json:"contacts"`
	}
	if err := json.Unmarshal(result.Body, &listing); err != nil {
		return "", &UpstreamError{Operation: "contact search", Status: result.StatusCode, Body: truncateBody(result.Body)}
	}

	for _, existing := range listing.Contacts {
		if strings.EqualFold(strings.TrimSpace(existing.OrganisationName), strings.TrimSpace(name)) {
			slog.Info("Matched existing contact", "name", name, "url", existing.URL)
			return existing.URL, nil
		}
	}

	return c.createContact(ctx, name)
}

func (c *Client) createContact(ctx context.Context, name string) (string, error) {
	payload := map[string]any{
		"contact": map[string]any{
			"organisation_name": name,
			"first_name":        name,
		},
	}
	result, err := c.exec.Do(ctx, c.jsonRequest("POST", c.url("/v2/contacts"), payload))
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", &UpstreamError{Operation: "contact create", Status: result.StatusCode, Body: truncateBody(result.Body)}
	}

	var created struct {
		Contact contact `json:"contact"`
	}
	if err := json.Unmarshal(result.Body, &created); err != nil || created.Contact.URL == "" {
		return "", &MissingReferenceError{Operation: "contact create"}
	}

	slog.Info("Created contact", "name", name, "url", created.Contact.URL)
	return created.Contact.URL, nil
}

// CurrentUserURL looks up the authenticated user's own URL, which
// expense records reference in place of a counterparty.
func (c *Client) CurrentUserURL(ctx context.Context) (string, error) {
	result, err := c.exec.Do(ctx, c.jsonRequest("GET", c.url("/v2/users/me"), nil))
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", &UpstreamError{Operation: "user lookup", Status: result.StatusCode, Body: truncateBody(result.Body)}
	}

	var me struct {
		User struct {
			URL string `json:"url"`
		} `json:"user"`
	}
	if err := json.Unmarshal(result.Body, &me); err != nil || me.User.URL == "" {
		return "", &MissingReferenceError{Operation: "user lookup"}
	}
	return me.User.URL, nil
}
