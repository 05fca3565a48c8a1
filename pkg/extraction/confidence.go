package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The LLM does not report confidence, so scores are heuristic: presence,
// format checks, and whether the value actually appears in the OCR text.
var (
	invoiceNumberStrict = regexp.MustCompile(`(?i)^[A-Z0-9\-/]{3,20}$`)
	invoiceNumberLoose  = regexp.MustCompile(`(?i)^[A-Z0-9]{2,30}$`)
	currencyCode        = regexp.MustCompile(`^[A-Z]{3}$`)
	isoDateShape        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// FieldConfidence scores a single extracted field in [0.0, 0.99].
func FieldConfidence(fieldName string, fieldValue any, ocrText string) float64 {
	if fieldValue == nil {
		return 0.0
	}
	valueStr := strings.TrimSpace(fmt.Sprintf("%v", fieldValue))
	if valueStr == "" || valueStr == "UNKNOWN" {
		return 0.0
	}

	base := 0.5
	switch fieldName {
	case "invoice_number":
		if invoiceNumberStrict.MatchString(valueStr) {
			base = 0.85
		} else if invoiceNumberLoose.MatchString(valueStr) {
			base = 0.75
		}
		if appearsIn(ocrText, valueStr) {
			base = min(0.95, base+0.1)
		}

	case "vendor_name":
		if n := len(valueStr); n >= 2 && n <= 50 && !isDigits(valueStr) {
			base = 0.80
		}
		if appearsIn(ocrText, valueStr) {
			base = min(0.90, base+0.1)
		}

	case "total_amount":
		amount, err := ParseAmount(fieldValue)
		switch {
		case err != nil:
			base = 0.40
		case amount > 0:
			base = 0.90
		case amount == 0:
			base = 0.70
		default:
			// Negative totals are suspicious.
			base = 0.30
		}

	case "currency":
		if currencyCode.MatchString(valueStr) {
			base = 0.95
		} else if len(valueStr) == 3 {
			base = 0.80
		}

	case "invoice_date":
		if _, err := ParseISODate(valueStr); err != nil {
			base = 0.40
		} else if isoDateShape.MatchString(valueStr) {
			base = 0.90
		} else {
			base = 0.75
		}

	case "tax_amount":
		amount, err := ParseAmount(fieldValue)
		switch {
		case err != nil:
			base = 0.50
		case amount >= 0:
			base = 0.80
		default:
			base = 0.30
		}

	case "line_items":
		if items, ok := fieldValue.([]any); ok && len(items) > 0 {
			base = 0.75
		} else if items, ok := fieldValue.([]map[string]any); ok && len(items) > 0 {
			base = 0.75
		} else {
			base = 0.50
		}
	}

	return min(0.99, max(0.0, base))
}

// AllConfidence scores every extracted field.
func AllConfidence(fields map[string]any, ocrText string) map[string]float64 {
	out := make(map[string]float64, len(fields))
	for name, value := range fields {
		out[name] = FieldConfidence(name, value, ocrText)
	}
	return out
}

// ParseAmount parses a monetary value, stripping separators and common
// currency symbols first.
func ParseAmount(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	for _, sym := range []string{",", "$", "€", "£"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	return strconv.ParseFloat(s, 64)
}

// ParseISODate parses ISO-8601 values, date-only or with a time component.
func ParseISODate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date: %q", s)
}

func appearsIn(ocrText, value string) bool {
	return ocrText != "" && strings.Contains(strings.ToLower(ocrText), strings.ToLower(value))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
