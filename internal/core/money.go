// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and converting between cents and decimal representations.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// maxAmount caps a single record at one trillion major units, far below the
// range where summed balances could overflow int64 cents.
var maxAmount = decimal.New(1, 12)

const centDigits = 2

// ParseAmount converts a decimal string to a positive Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to whole cents. Signs, zero and amounts that round to zero are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,34")  -> 1234 cents
//	ParseAmount("12.345") -> 1235 cents
//	ParseAmount("0.004")  -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.LessThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: d.Shift(2).IntPart()}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Decimal returns the value in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the value with two fixed decimals and no currency, e.g. "-12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the value with the symbol and separators of the currency.
// Cents are rescaled to the currency's own minor unit first, so a currency
// without two decimals still shows the right magnitude.
func (m Money) Format(currency string) string {
	amount := m.Cents
	if c := money.GetCurrency(currency); c != nil && c.Fraction != centDigits {
		amount = m.Decimal().Shift(int32(c.Fraction)).Round(0).IntPart()
	}
	return money.New(amount, currency).Display()
}

func (m Money) Add(n Money) Money { return Money{Cents: m.Cents + n.Cents} }
func (m Money) Sub(n Money) Money { return Money{Cents: m.Cents - n.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// CentCurrency reports whether code is a known currency whose minor unit is
// the cent, the unit every ledger amount is stored in.
func CentCurrency(code string) bool {
	c := money.GetCurrency(code)
	return c != nil && c.Fraction == centDigits
}

// KnownCurrency reports whether code is an ISO currency code go-money can format.
func KnownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}
