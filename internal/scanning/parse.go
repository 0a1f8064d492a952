package scanning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// parseFieldsJSON parses the JSON response from a vision model. Models
// wrap the object in markdown fences or stray prose often enough that we
// cut the response down to its outermost braces first, and numeric
// fields come back as JSON numbers as often as strings.
func parseFieldsJSON(text string) (*ExtractedFields, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields := &ExtractedFields{
		Merchant: strings.TrimSpace(fieldString(raw, "merchant", "vendor", "title")),
		Date:     strings.TrimSpace(fieldString(raw, "date", "invoice_date")),
		Total:    strings.TrimSpace(fieldString(raw, "total", "amount")),
		VAT:      strings.TrimSpace(fieldString(raw, "vat", "vat_amount", "tax")),
		RawText:  fieldString(raw, "raw_text", "text"),
	}

	return fields, nil
}

// fieldString pulls the first present key out of a decoded JSON object,
// stringifying numbers. Models do not reliably honour the field names in
// the prompt, so a couple of aliases are accepted per field.
func fieldString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			// not a plausible field value, skip
		}
	}
	return ""
}
