package cli

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     string
	}{
		{"0", "GBP", "£0.00"},
		{"12.345", "GBP", "£12.35"},
		{"999.994", "USD", "$999.99"},
		{"1234567.8", "GBP", "£1,234,568"},
		{"-2500", "EUR", "-€2,500"},
		{"10", "CHF", "CHF 10.00"},
		{"10", "", "10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.in), tt.currency))
		})
	}
}

func TestFormatDelta(t *testing.T) {
	assert.Equal(t, "+£6,000", FormatDelta(decimal.NewFromInt(6000), "GBP"))
	assert.Equal(t, "-£6,000", FormatDelta(decimal.NewFromInt(-6000), "GBP"))
	assert.Equal(t, "£0.00", FormatDelta(decimal.Zero, "GBP"))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "60%", FormatPercent(decimal.NewFromInt(60)))
	assert.Equal(t, "33.33%", FormatPercent(decimal.RequireFromString("33.3333")))
	assert.Equal(t, "+12.5%", FormatChange(decimal.RequireFromString("12.5")))
	assert.Equal(t, "-40%", FormatChange(decimal.NewFromInt(-40)))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}
