package utils

import (
	"fmt"
	"regexp"
)

// gstinPattern matches the 15-character Indian GSTIN layout:
// 2-digit state code, 10-character PAN, entity number, 'Z', checksum.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// ValidateGSTIN validates an Indian GST identification number
func ValidateGSTIN(gstin string) error {
	if len(gstin) != 15 {
		return fmt.Errorf("GSTIN must be 15 characters: %s", gstin)
	}

	if !gstinPattern.MatchString(gstin) {
		return fmt.Errorf("invalid GSTIN format: %s", gstin)
	}

	return nil
}

// ValidateAmount validates a monetary amount extracted from an invoice
func ValidateAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must not be negative: %.2f", amount)
	}

	return nil
}

// SanitizeString removes control characters from extracted text
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
