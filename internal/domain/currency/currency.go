// Package currency holds the currency table used for printing amounts:
// symbols, decimal places and the French unit names used by AmountInWords.
package currency

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCode is used for empty and unknown currency codes.
const DefaultCode = "TND"

// Currency describes a monetary unit.
type Currency struct {
	// Code is the ISO 4217 alphabetic code (e.g., "TND", "EUR")
	Code   string `json:"code"`
	Symbol string `json:"symbol"`

	// DecimalPlaces is the number of minor digits (3 for millimes)
	DecimalPlaces int32 `json:"decimalPlaces"`

	MajorSingular string `json:"majorSingular"`
	MajorPlural   string `json:"majorPlural"`
	MinorSingular string `json:"minorSingular"`
	MinorPlural   string `json:"minorPlural"`
}

var table = map[string]Currency{
	"TND": {
		Code: "TND", Symbol: "DT", DecimalPlaces: 3,
		MajorSingular: "dinar", MajorPlural: "dinars",
		MinorSingular: "millime", MinorPlural: "millimes",
	},
	"EUR": {
		Code: "EUR", Symbol: "€", DecimalPlaces: 2,
		MajorSingular: "euro", MajorPlural: "euros",
		MinorSingular: "centime", MinorPlural: "centimes",
	},
	"USD": {
		Code: "USD", Symbol: "$", DecimalPlaces: 2,
		MajorSingular: "dollar", MajorPlural: "dollars",
		MinorSingular: "cent", MinorPlural: "cents",
	},
}

var isoCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Lookup returns the currency for code. Unknown codes fall back to TND.
func Lookup(code string) Currency {
	if c, ok := table[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return c
	}
	return table[DefaultCode]
}

// Known reports whether code is in the currency table.
func Known(code string) bool {
	if !isoCode.MatchString(code) {
		return false
	}
	_, ok := table[code]
	return ok
}

// Codes lists the supported codes in alphabetical order.
func Codes() []string {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Round rounds amount to the currency's minor unit.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.DecimalPlaces)
}

// Format renders amount with French separators, e.g. "1 234,500 DT".
func (c Currency) Format(amount decimal.Decimal) string {
	fixed := c.Round(amount).Abs().StringFixed(c.DecimalPlaces)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if c.Round(amount).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(groupThousands(intPart))
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	b.WriteByte(' ')
	b.WriteString(c.Symbol)
	return b.String()
}

// FormatAmount formats amount in the currency identified by code.
func FormatAmount(amount decimal.Decimal, code string) string {
	return Lookup(code).Format(amount)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
