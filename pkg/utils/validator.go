package utils

import (
	"fmt"
	"regexp"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateCurrency checks that the currency is a three-letter ISO 4217 code.
func ValidateCurrency(currency string) error {
	if !currencyPattern.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %s", currency)
	}
	return nil
}

// ValidateEmployeeID checks that an employee identifier is plausible.
func ValidateEmployeeID(id string) error {
	if id == "" {
		return fmt.Errorf("employee id is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("employee id too long: %d characters", len(id))
	}
	return nil
}
