// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
	"JPY": "¥",
}

// Symbol returns the display prefix for an ISO currency code. Unknown codes
// are shown as the code followed by a space.
func Symbol(currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	if code == "" {
		return ""
	}
	return code + " "
}

// FormatMoney formats an amount with thousands separators.
// e.g., 1234567.8 -> "£1,234,568", 12.345 -> "£12.35"
func FormatMoney(d decimal.Decimal, currency string) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	var body string
	if d.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		body = humanize.Comma(d.Round(0).IntPart())
	} else {
		body = d.StringFixed(2)
	}
	return sign + Symbol(currency) + body
}

// FormatDelta formats a signed change; zero renders without a sign.
func FormatDelta(d decimal.Decimal, currency string) string {
	if d.IsPositive() {
		return "+" + FormatMoney(d, currency)
	}
	return FormatMoney(d, currency)
}

// FormatPercent formats a 0-100 percentage, trimming trailing zeros.
// e.g., 60 -> "60%", 33.3333 -> "33.33%"
func FormatPercent(d decimal.Decimal) string {
	return d.Round(2).String() + "%"
}

// FormatChange formats a relative change with its sign.
func FormatChange(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + FormatPercent(d)
	}
	return FormatPercent(d)
}

// FormatCount adds comma separators to a count.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatFTE keeps one decimal place.
func FormatFTE(d decimal.Decimal) string {
	return d.StringFixed(1)
}

// FormatBytes renders a payload size, e.g. "4.2 kB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatAgo renders a timestamp relative to now, e.g. "3 hours ago".
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
