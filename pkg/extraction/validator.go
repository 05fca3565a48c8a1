package extraction

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/docproc/pkg/config"
)

// Validator runs schema checks and the confidence gate over extracted
// invoice fields.
type Validator struct {
	cfg        *config.ValidationConfig
	currencies map[string]struct{}
}

// NewValidator builds a validator from the validation configuration.
func NewValidator(cfg *config.ValidationConfig) *Validator {
	currencies := make(map[string]struct{}, len(cfg.SupportedCurrencies))
	for _, c := range cfg.SupportedCurrencies {
		currencies[c] = struct{}{}
	}
	return &Validator{cfg: cfg, currencies: currencies}
}

// Validate returns the list of validation errors for fields given their
// confidence scores. An empty list means the document needs no review.
func (v *Validator) Validate(fields map[string]any, confidence map[string]float64) []string {
	var errs []string

	for _, name := range v.cfg.RequiredFields {
		if missing(fields, name) {
			errs = append(errs, "missing_required:"+name)
		}
	}

	if total, ok := fields["total_amount"]; ok && !emptyValue(total) {
		amount, err := ParseAmount(total)
		switch {
		case err != nil:
			errs = append(errs, "invalid_total_amount")
		case amount < 0:
			errs = append(errs, "total_non_negative")
		}
	}

	if cur, ok := fields["currency"]; ok && !emptyValue(cur) {
		if _, supported := v.currencies[fmt.Sprintf("%v", cur)]; !supported {
			errs = append(errs, "currency_unsupported")
		}
	}

	if date, ok := fields["invoice_date"]; ok && !emptyValue(date) {
		if _, err := ParseISODate(fmt.Sprintf("%v", date)); err != nil {
			errs = append(errs, "invalid_invoice_date")
		}
	}

	for _, name := range v.cfg.RequiredFields {
		if missing(fields, name) {
			continue
		}
		threshold := v.cfg.Threshold(name)
		if conf := confidence[name]; conf < threshold {
			errs = append(errs, fmt.Sprintf("low_confidence:%s:%.2f<%.2f", name, conf, threshold))
		}
	}

	return errs
}

// IsConfidenceError reports whether a validation error string came from the
// confidence gate rather than a schema check.
func IsConfidenceError(err string) bool {
	return strings.HasPrefix(err, "low_confidence:")
}

// ClassifyReviewReason maps a validation error list to the machine-readable
// review reason tag.
func ClassifyReviewReason(errs []string) string {
	var confidence, other int
	for _, e := range errs {
		if IsConfidenceError(e) {
			confidence++
		} else {
			other++
		}
	}
	switch {
	case other > 0 && confidence > 0:
		return "validation_failed_and_low_confidence"
	case other > 0:
		return "validation_failed"
	default:
		return "low_confidence"
	}
}

func missing(fields map[string]any, name string) bool {
	v, ok := fields[name]
	return !ok || emptyValue(v)
}

func emptyValue(v any) bool {
	if v == nil {
		return true
	}
	s := fmt.Sprintf("%v", v)
	return s == "" || s == "UNKNOWN"
}
