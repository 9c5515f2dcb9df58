// Package format renders numbers and phone numbers for display in pt-BR.
package format

import (
	"html/template"
	"math"
	"math/big"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	currencySymbol = "R$"
	nbsp           = "\u00a0"
)

var locale = language.BrazilianPortuguese

// Currency renders value as Brazilian Real text, e.g. 1234.5 -> "R$ 1.234,50".
// The symbol is separated from the amount by a non-breaking space.
func Currency(value float64) string {
	switch {
	case math.IsNaN(value):
		return currencySymbol + nbsp + "NaN"
	case math.IsInf(value, 1):
		return currencySymbol + nbsp + "∞"
	case math.IsInf(value, -1):
		return "-" + currencySymbol + nbsp + "∞"
	}

	// Negative zero keeps its sign, as in "-R$ 0,00".
	sign := ""
	if math.Signbit(value) {
		sign = "-"
		value = math.Abs(value)
	}

	p := message.NewPrinter(locale)
	return sign + currencySymbol + nbsp + p.Sprint(number.Decimal(roundCents(value), number.Scale(2)))
}

// roundCents rounds a non-negative value to cents, ties away from zero. The
// tie is decided on the exact binary value, so 0.125 rounds up while 1.005
// (stored just below) rounds down.
func roundCents(v float64) float64 {
	x := new(big.Float).SetPrec(256).SetFloat64(v)
	x.Mul(x, big.NewFloat(100))
	x.Add(x, big.NewFloat(0.5))
	cents, _ := x.Int(nil)
	c, _ := new(big.Float).SetInt(cents).Float64()
	if math.IsInf(c, 0) {
		return v
	}
	return c / 100
}

// Digits returns only the ASCII digits of raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Phone masks raw as a Brazilian phone number, progressively by length:
//
//	""            -> ""
//	"11"          -> "(11"
//	"119999"      -> "(11) 9999"
//	"11999998888" -> "(11) 99999-8888"
//
// Digits past the eleventh are dropped. Short tails are not padded.
func Phone(raw string) string {
	if raw == "" {
		return ""
	}
	d := Digits(raw)

	if len(d) <= 2 {
		return "(" + d
	}
	if len(d) <= 7 {
		return "(" + d[:2] + ") " + d[2:]
	}
	return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:min(len(d), 11)]
}

// FuncMap exposes the formatters to html/template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"currency": Currency,
		"phone":    Phone,
	}
}
