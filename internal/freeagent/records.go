package freeagent

import (
	"context"
	"encoding/json"
)

// RecordKind selects which financial record variant a receipt becomes.
type RecordKind string

const (
	KindBill    RecordKind = "bill"
	KindExpense RecordKind = "expense"
)

// Fields are the normalized receipt values a record is built from.
// Amounts are two-decimal strings; TaxAmount may be empty.
type Fields struct {
	Merchant    string
	DatedOn     string
	GrossAmount string
	TaxAmount   string
}

// FileData is the receipt's binary content plus metadata.
type FileData struct {
	Bytes       []byte
	Name        string
	ContentType string
}

// RecordPayload is a record-creation request in wire form. The body is a
// plain map so the inline-attachment strategy can embed the attachment
// into a re-issued creation request without knowing the record variant.
type RecordPayload struct {
	Kind     RecordKind
	wrapper  string
	endpoint string
	body     map[string]any
}

// CreatedRecord references a record the accounting API has accepted.
type CreatedRecord struct {
	Kind RecordKind
	URL  string
	Body []byte
}

// BuildBill assembles a bill payload: the resolved counterparty, the
// normalized date as both dated-on and due-on, a reference defaulting to
// the merchant name, and a single line item with the fixed default
// category. The tax value is included only when present.
func (c *Client) BuildBill(fields Fields, contactURL string) *RecordPayload {
	reference := fields.Merchant
	if reference == "" {
		reference = "Receipt"
	}

	item := map[string]any{
		"category":    c.categoryURL(),
		"total_value": fields.GrossAmount,
	}
	if fields.TaxAmount != "" {
		item["sales_tax_value"] = fields.TaxAmount
	}

	return &RecordPayload{
		Kind:     KindBill,
		wrapper:  "bill",
		endpoint: "/v2/bills",
		body: map[string]any{
			"contact":    contactURL,
			"dated_on":   fields.DatedOn,
			"due_on":     fields.DatedOn,
			"reference":  reference,
			"bill_items": []map[string]any{item},
		},
	}
}

// BuildExpense assembles an expense payload referencing the current user
// instead of a counterparty, with a description in place of a reference
// and no due date.
func (c *Client) BuildExpense(fields Fields, userURL string) *RecordPayload {
	description := fields.Merchant
	if description == "" {
		description = "Receipt"
	}

	body := map[string]any{
		"user":        userURL,
		"dated_on":    fields.DatedOn,
		"description": description,
		"category":    c.categoryURL(),
		"gross_value": fields.GrossAmount,
	}
	if fields.TaxAmount != "" {
		body["sales_tax_value"] = fields.TaxAmount
	}

	return &RecordPayload{
		Kind:     KindExpense,
		wrapper:  "expense",
		endpoint: "/v2/expenses",
		body:     body,
	}
}

// CreateRecord posts the payload and returns the created record's
// reference. A success response without a resolvable URL is a
// MissingReferenceError.
func (c *Client) CreateRecord(ctx context.Context, payload *RecordPayload) (*CreatedRecord, error) {
	wire := map[string]any{payload.wrapper: payload.body}
	result, err := c.exec.Do(ctx, c.jsonRequest("POST", c.url(payload.endpoint), wire))
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, &UpstreamError{Operation: payload.wrapper + " create", Status: result.StatusCode, Body: truncateBody(result.Body)}
	}

	url := extractRecordURL(result.Body, payload.wrapper)
	if url == "" {
		return nil, &MissingReferenceError{Operation: payload.wrapper + " create"}
	}

	return &CreatedRecord{Kind: payload.Kind, URL: url, Body: result.Body}, nil
}

// extractRecordURL digs the record URL out of a creation response,
// tolerating both wrapped ({"bill": {"url": ...}}) and bare
// ({"url": ...}) response shapes.
func extractRecordURL(body []byte, wrapper string) string {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return ""
	}

	var ref struct {
		URL string `json:"url"`
	}
	if inner, ok := wrapped[wrapper]; ok {
		if err := json.Unmarshal(inner, &ref); err == nil && ref.URL != "" {
			return ref.URL
		}
	}
	if err := json.Unmarshal(body, &ref); err == nil {
		return ref.URL
	}
	return ""
}
