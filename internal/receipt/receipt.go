package receipt

import "time"

// ProcessedReceipt records one receipt successfully relayed into the
// accounting system, for the processing-history API.
type ProcessedReceipt struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Merchant    string    `json:"merchant"`
	DatedOn     string    `json:"dated_on"`
	GrossAmount string    `json:"gross_amount"`
	TaxAmount   string    `json:"tax_amount,omitempty"`
	RecordURL   string    `json:"record_url"`
	AttachedVia string    `json:"attached_via"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
