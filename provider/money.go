package provider

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places between major and minor units.
// Every supported provider expects amounts multiplied by 100.
const minorUnitExponent = 2

// ToMinorUnits converts a major-unit amount into the integer minor-unit value providers expect
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	minor := amount.Shift(minorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, minorUnitExponent)
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts a provider minor-unit amount back to major units
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}

// ParseMinorUnits parses a provider minor-unit amount field
func ParseMinorUnits(raw string) (decimal.Decimal, error) {
	minor, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if minor < 0 {
		return decimal.Zero, fmt.Errorf("invalid amount %q: negative", raw)
	}
	return FromMinorUnits(minor), nil
}

// FormatMinorUnits converts amount to minor units and renders it as a decimal string
func FormatMinorUnits(amount decimal.Decimal) (string, error) {
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(minor, 10), nil
}
