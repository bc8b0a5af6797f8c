package editor

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errEmptyValue    = errors.New("empty value")
	errNegativeValue = errors.New("negative value")
	hundred          = decimal.NewFromInt(100)
)

// parseAmount reads a non-negative decimal from an edit buffer.
func parseAmount(buffer string) (decimal.Decimal, error) {
	text := strings.TrimSpace(buffer)
	if text == "" {
		return decimal.Zero, errEmptyValue
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, errNegativeValue
	}
	return value, nil
}

func parseDiscount(buffer string) (decimal.Decimal, error) {
	value, err := parseAmount(buffer)
	if err != nil {
		return decimal.Zero, err
	}
	if value.GreaterThan(hundred) {
		return decimal.Zero, errors.New("discount above 100")
	}
	return value, nil
}
