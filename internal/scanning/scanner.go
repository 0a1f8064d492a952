package scanning

// ExtractedFields contains the raw field values pulled off a receipt.
// Everything is a string: OCR output is noisy and canonicalization
// happens downstream in the normalize package. VAT and RawText may be
// empty.
type ExtractedFields struct {
	Merchant string `json:"merchant"`
	Date     string `json:"date"`
	Total    string `json:"total"`
	VAT      string `json:"vat"`
	RawText  string `json:"raw_text"`
}

// Scanner defines the interface for receipt field extraction.
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts its fields
	ScanReceipt(imageData []byte, contentType string) (*ExtractedFields, error)
	// Close closes the scanner and releases resources
	Close() error
}

// receiptScanPrompt is the shared prompt used by all LLM providers for
// extracting receipt fields.
const receiptScanPrompt = `You are analyzing a receipt or invoice document. Carefully read all text in the image and extract the following information:

1. merchant: the business or vendor name, as printed
2. date: the transaction or invoice date, exactly as printed
3. total: the final total paid, including any currency symbol, as printed
4. vat: the VAT or sales tax amount if shown, as printed, otherwise an empty string
5. raw_text: all readable text from the document, line by line

Respond with ONLY a JSON object in this exact format, no other text:
{"merchant": "...", "date": "...", "total": "...", "vat": "...", "raw_text": "..."}

If a field cannot be read, use an empty string for it. Do not guess values that are not printed on the document.`
