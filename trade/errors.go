package trade

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountTooSmall       = errors.New("amount per stock is below the minimum")
	ErrInvalidAmount        = errors.New("amount must be a positive whole number")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrCommandInFlight      = errors.New("a command is already in progress")
	ErrInvalidOrder         = errors.New("invalid order")
)

var inputCleaner = strings.NewReplacer(",", "", "_", "", " ", "", "원", "", "₩", "")

// parseNumber reads user input like "1,000,000" or "₩79,200".
func parseNumber(input string) (decimal.Decimal, error) {
	cleaned := inputCleaner.Replace(strings.TrimSpace(input))
	if cleaned == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// parseWhole parses a strictly positive integer.
func parseWhole(input string) (int64, error) {
	d, err := parseNumber(input)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() || !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return d.IntPart(), nil
}
