// Package percent parses, normalizes and stores two-decimal percentages.
package percent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Hundred is the whole that every distribution must total.
var Hundred = decimal.NewFromInt(100)

var draftPattern = regexp.MustCompile(`^\d*\.?\d{0,2}$`)

// Parsed is the tagged result of reading raw editor input. When Valid is
// false the input must be discarded and Reason explains why.
type Parsed struct {
	Valid  bool
	Value  decimal.Decimal
	Reason string
}

// Parse checks raw against the editor grammar (digits, at most one decimal
// point, at most two fractional digits) and previews its finalized value.
// The empty string is valid and previews as 0.
func Parse(raw string) Parsed {
	if !draftPattern.MatchString(raw) {
		return Parsed{Reason: fmt.Sprintf("%q is not a percentage with at most two decimals", raw)}
	}
	return Parsed{Valid: true, Value: Finalize(raw)}
}

// Finalize converts committed text into a stored percentage: empty or
// unparsable text becomes 0, then the value is clamped and rounded.
func Finalize(raw string) decimal.Decimal {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if raw == "" {
		return decimal.Zero
	}
	if strings.HasPrefix(raw, ".") {
		raw = "0" + raw
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return Normalize(d)
}

// Normalize clamps d to [0, 100] and rounds it to two places, half up.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return Clamp(d).Round(2)
}

// Clamp bounds d to [0, 100] without rounding.
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(Hundred) {
		return Hundred
	}
	return d
}

// Sum adds values at two-decimal precision.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Round(2)
}

// IsWhole reports whether values total exactly 100.
func IsWhole(values ...decimal.Decimal) bool {
	return Sum(values...).Equal(Hundred)
}

// Of returns pct percent of amount.
func Of(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Shift(-2)
}
