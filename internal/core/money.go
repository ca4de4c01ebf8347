// Package core provides the ledger data model, the period filter and the
// stats aggregator.
//
// This file contains amount parsing and display helpers.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses user input as a decimal number.
//
// Surrounding whitespace is ignored. Any decimal accepted by
// decimal.NewFromString is returned as is, including zero and negative
// values: range checks are the caller's business. On failure the error is
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("50")     -> 50, nil
//	ParseAmount(" 12.5 ") -> 12.5, nil
//	ParseAmount("-3")     -> -3, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

var currencySymbols = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatAmount renders an amount with two decimals followed by the currency
// symbol (or the tag itself when no symbol is known), e.g. "50.00₽".
func FormatAmount(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	sym, ok := currencySymbols[currency]
	if !ok {
		return d.StringFixed(2) + " " + currency
	}
	return d.StringFixed(2) + sym
}
