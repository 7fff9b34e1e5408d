package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
)

// NamedTotals pairs a grouping entity with its totals.
type NamedTotals struct {
	ID string
	Totals
}

// Amount pairs a key with a monetary amount.
type Amount[K ~string] struct {
	Key    K
	Amount decimal.Decimal
}

// SortedTotals orders grouping totals by cost, highest first. Ties fall
// back to ID so the output is stable.
func SortedTotals(in map[string]Totals) []NamedTotals {
	out := make([]NamedTotals, 0, len(in))
	for id, t := range in {
		out = append(out, NamedTotals{ID: id, Totals: t})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total().Cmp(out[j].Total()); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedAmounts orders amounts highest first, ties by key.
func SortedAmounts[K ~string](in map[K]decimal.Decimal) []Amount[K] {
	out := make([]Amount[K], 0, len(in))
	for k, v := range in {
		out = append(out, Amount[K]{Key: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// SumAmounts adds every value of a map.
func SumAmounts[K comparable](in map[K]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range in {
		total = total.Add(v)
	}
	return total
}

// Memo caches the last waterfall result by state fingerprint.
type Memo struct {
	calc   *Waterfall
	key    uint64
	cached bool
	result Result
}

// NewMemo wraps calc.
func NewMemo(calc *Waterfall) *Memo {
	return &Memo{calc: calc}
}

// Calculator returns the wrapped waterfall.
func (m *Memo) Calculator() *Waterfall { return m.calc }

// Compute returns the cached result when s is unchanged since the last call.
func (m *Memo) Compute(s *model.State) Result {
	key := s.Fingerprint()
	if m.cached && key == m.key {
		return m.result
	}
	m.result = m.calc.Compute(s)
	m.key = key
	m.cached = true
	return m.result
}

// Invalidate drops the cached result.
func (m *Memo) Invalidate() { m.cached = false }
