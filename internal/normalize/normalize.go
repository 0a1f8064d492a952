// Package normalize turns noisy OCR output into canonical field values:
// two-decimal amounts, ISO-8601 dates and filesystem-safe filenames.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	amountChars = regexp.MustCompile(`[^0-9.\-]`)
	filenameRe  = regexp.MustCompile(`[^A-Za-z0-9_\- ]`)
	spacesRe    = regexp.MustCompile(`\s+`)

	// Day-first numeric, e.g. 09/11/2025, 9.11.25, 09-11-2025
	dmyRe = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)
	// Textual month, e.g. 9 Nov 2025, 09 November 25
	textualRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?,?\s+(\d{2,4})\b`)
	// Year-first numeric, e.g. 2025-11-09, 2025/11/09
	ymdRe = regexp.MustCompile(`\b(\d{4})[/.\-](\d{1,2})[/.\-](\d{1,2})\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Amount strips everything except digits, dots and minus signs from a
// currency-ish string and returns the absolute value with two decimal
// places. It returns the empty string when no number survives, never an
// error: receipts in this system always represent money owed, so a sign
// on the OCR output is discarded.
func Amount(raw string) string {
	cleaned := amountChars.ReplaceAllString(raw, "")
	if cleaned == "" {
		return ""
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%.2f", math.Abs(value))
}

// Date turns a loosely formatted date string into YYYY-MM-DD. It tries a
// direct ISO parse first, then day-first numeric (UK convention), then a
// textual month form, then year-first numeric. Empty string means no
// pattern produced a valid calendar date.
//
// The day-first priority is a deliberate tie-break: an ambiguous string
// like 03/04/2025 reads as 3 April, never 4 March.
func Date(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d.Format("2006-01-02")
	}

	if m := dmyRe.FindStringSubmatch(raw); m != nil && m[0] == raw {
		if iso := isoFromDMY(m[1], m[2], m[3]); iso != "" {
			return iso
		}
	}
	if m := textualRe.FindStringSubmatch(raw); m != nil {
		if iso := isoFromTextual(m[1], m[2], m[3]); iso != "" {
			return iso
		}
	}
	if m := ymdRe.FindStringSubmatch(raw); m != nil && m[0] == raw {
		if iso := isoFromYMD(m[1], m[2], m[3]); iso != "" {
			return iso
		}
	}
	return ""
}

// DateFromText scans a free-text blob (typically the concatenated raw OCR
// output) for the first substring that normalizes to a date, using the
// same three patterns and the same priority order as Date. It is the
// fallback for receipts where no labelled date field was extracted.
func DateFromText(text string) string {
	for _, m := range dmyRe.FindAllStringSubmatch(text, -1) {
		if iso := isoFromDMY(m[1], m[2], m[3]); iso != "" {
			return iso
		}
	}
	for _, m := range textualRe.FindAllStringSubmatch(text, -1) {
		if iso := isoFromTextual(m[1], m[2], m[3]); iso != "" {
			return iso
		}
	}
	for _, m := range ymdRe.FindAllStringSubmatch(text, -1) {
		if iso := isoFromYMD(m[1], m[2], m[3]); iso != "" {
			return iso
		}
	}
	return ""
}

// Merchant trims and length-caps a merchant name for use in record
// payloads.
func Merchant(raw string) string {
	name := strings.TrimSpace(spacesRe.ReplaceAllString(raw, " "))
	if len(name) > 100 {
		name = strings.TrimSpace(name[:100])
	}
	return name
}

// Filename composes a readable archive filename from the normalized
// fields, substituting empty segments gracefully. The merchant segment is
// capped at 50 characters and all segments are reduced to
// [A-Za-z0-9_- ] so phone-generated names cannot smuggle in path
// separators.
func Filename(merchant, date, total string) string {
	clean := func(s string) string {
		s = filenameRe.ReplaceAllString(s, "")
		return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
	}

	base := clean(merchant)
	if len(base) > 50 {
		base = strings.TrimSpace(base[:50])
	}
	if base == "" {
		base = "receipt"
	}
	if d := clean(date); d != "" {
		base = d + "_" + base
	}
	if t := clean(total); t != "" {
		base = base + "_" + t
	}
	return base + ".jpg"
}

func isoFromDMY(dayStr, monthStr, yearStr string) string {
	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	year, _ := strconv.Atoi(yearStr)
	return isoDate(year, time.Month(month), day)
}

func isoFromYMD(yearStr, monthStr, dayStr string) string {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	return isoDate(year, time.Month(month), day)
}

func isoFromTextual(dayStr, monthName, yearStr string) string {
	day, _ := strconv.Atoi(dayStr)
	year, _ := strconv.Atoi(yearStr)
	month, ok := monthsByPrefix[strings.ToLower(monthName)[:3]]
	if !ok {
		return ""
	}
	return isoDate(year, month, day)
}

// isoDate validates and formats a candidate calendar date. Two-digit
// years are taken as 2000-2099.
func isoDate(year int, month time.Month, day int) string {
	if year < 100 {
		year += 2000
	}
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return ""
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return "" // e.g. 31/02 rolled over
	}
	return d.Format("2006-01-02")
}
