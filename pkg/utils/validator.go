package utils

import (
	"fmt"
	"regexp"
)

// ValidateQuantity validates a requested item quantity
func ValidateQuantity(quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %.3f", quantity)
	}
	return nil
}

// ValidateQuoteAmount validates a vendor quote amount
func ValidateQuoteAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("quote must not be negative: %.2f", amount)
	}
	return nil
}

// SanitizeString removes control characters from free-text input
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
