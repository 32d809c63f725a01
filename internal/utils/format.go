package utils

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const frThousandsSep = " "

// FormatFR formats x with French conventions: a comma as decimal separator
// and spaces between thousands groups. 1234.5 with 2 decimals gives "1 234,50".
// Undefined values give "N/A".
func FormatFR(x float64, decimals int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "N/A"
	}
	if decimals < 0 {
		decimals = 0
	}

	s := decimal.NewFromFloat(x).StringFixed(int32(decimals))

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	var b strings.Builder
	if negative && strings.Trim(intPart+fracPart, "0") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(frThousandsSep)
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatFRCurrency formats x like FormatFR followed by the currency code.
func FormatFRCurrency(x float64, decimals int, code string) string {
	s := FormatFR(x, decimals)
	if s == "N/A" || code == "" {
		return s
	}
	return s + " " + strings.ToUpper(code)
}

// FormatFRPercent formats a percentage value like "4,74 %".
func FormatFRPercent(x float64, decimals int) string {
	s := FormatFR(x, decimals)
	if s == "N/A" {
		return s
	}
	return s + " %"
}
