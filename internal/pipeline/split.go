package pipeline

import (
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
)

// Weight is one category's share in a split.
type Weight struct {
	Category model.ExpenseKey
	Weight   decimal.Decimal
}

// Weights is an ordered set of split weights. The last entry absorbs the
// rounding remainder.
type Weights []Weight

// DefaultNonStaffWeights is the non-staff expense breakdown.
var DefaultNonStaffWeights = Weights{
	{model.ExpenseElectricity, decimal.RequireFromString("0.40")},
	{model.ExpenseStationary, decimal.RequireFromString("0.20")},
	{model.ExpenseMaintenance, decimal.RequireFromString("0.25")},
	{model.ExpenseTravel, decimal.RequireFromString("0.15")},
}

// Split distributes amount over the weighted categories. Every category but
// the last receives round(amount * weight / sum(weights)); the last takes
// what is left, so the parts always add back to amount. No part is negative.
func Split(amount decimal.Decimal, weights Weights) map[model.ExpenseKey]decimal.Decimal {
	out := make(map[model.ExpenseKey]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return out
	}

	total := decimal.Zero
	for _, w := range weights {
		if w.Weight.IsPositive() {
			total = total.Add(w.Weight)
		}
	}
	if total.IsZero() {
		total = decimal.NewFromInt(1)
	}

	acc := decimal.Zero
	last := len(weights) - 1
	for i, w := range weights {
		if i == last {
			out[w.Category] = decimal.Max(decimal.Zero, amount.Sub(acc))
			break
		}
		part := decimal.Zero
		if w.Weight.IsPositive() {
			part = amount.Mul(w.Weight).Div(total).Round(0)
		}
		// Rounding up on early categories must not push past the amount.
		part = decimal.Max(decimal.Zero, decimal.Min(part, amount.Sub(acc)))
		out[w.Category] = part
		acc = acc.Add(part)
	}
	return out
}

// splitCache memoizes per-unit splits within one aggregation pass.
type splitCache struct {
	weights Weights
	byUnit  map[string]map[model.ExpenseKey]decimal.Decimal
}

func newSplitCache(weights Weights) *splitCache {
	return &splitCache{weights: weights, byUnit: make(map[string]map[model.ExpenseKey]decimal.Decimal)}
}

// base returns the amount of one expense column a unit contributes.
func (c *splitCache) base(u model.CostUnit, key model.ExpenseKey) decimal.Decimal {
	if key == model.ExpenseStaff {
		return u.Staff
	}
	parts, ok := c.byUnit[u.ID]
	if !ok {
		parts = Split(u.NonStaff, c.weights)
		c.byUnit[u.ID] = parts
	}
	return parts[key]
}
