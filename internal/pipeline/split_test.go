package pipeline

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/theirongolddev/costfall/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sumParts(parts map[model.ExpenseKey]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range parts {
		total = total.Add(v)
	}
	return total
}

func TestSplitDefaultWeights(t *testing.T) {
	parts := Split(d("1001"), DefaultNonStaffWeights)
	assert.True(t, parts[model.ExpenseElectricity].Equal(d("400")))
	assert.True(t, parts[model.ExpenseStationary].Equal(d("200")))
	assert.True(t, parts[model.ExpenseMaintenance].Equal(d("250")))
	assert.True(t, parts[model.ExpenseTravel].Equal(d("151")), "last category absorbs the remainder")
}

func TestSplitUnnormalizedWeights(t *testing.T) {
	w := Weights{
		{model.ExpenseElectricity, d("4")},
		{model.ExpenseStationary, d("2")},
		{model.ExpenseMaintenance, d("2.5")},
		{model.ExpenseTravel, d("1.5")},
	}
	want := Split(d("12345"), DefaultNonStaffWeights)
	got := Split(d("12345"), w)
	for _, k := range model.NonStaffExpenses {
		assert.True(t, want[k].Equal(got[k]), "%s: %s != %s", k, got[k], want[k])
	}
}

func TestSplitZeroWeights(t *testing.T) {
	w := Weights{{model.ExpenseElectricity, decimal.Zero}, {model.ExpenseTravel, decimal.Zero}}
	parts := Split(d("500"), w)
	assert.True(t, parts[model.ExpenseElectricity].IsZero())
	assert.True(t, parts[model.ExpenseTravel].Equal(d("500")))
}

func TestSplitNeverOvershoots(t *testing.T) {
	w := Weights{{model.ExpenseElectricity, d("1")}, {model.ExpenseStationary, d("1")}, {model.ExpenseTravel, decimal.Zero}}
	parts := Split(d("1"), w)
	assert.True(t, sumParts(parts).Equal(d("1")))
	for k, v := range parts {
		assert.False(t, v.IsNegative(), k)
	}
}

func TestSplitExactness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		amount := decimal.New(rng.Int63n(10_000_000), -int32(rng.Intn(3)))
		var w Weights
		for _, k := range model.NonStaffExpenses {
			w = append(w, Weight{k, decimal.New(rng.Int63n(1000), -2)})
		}
		parts := Split(amount, w)
		assert.True(t, sumParts(parts).Equal(amount), "amount %s weights %v", amount, w)
		for _, v := range parts {
			assert.False(t, v.IsNegative())
		}
	}
}

func TestSplitEmptyWeights(t *testing.T) {
	assert.Empty(t, Split(d("10"), nil))
}
