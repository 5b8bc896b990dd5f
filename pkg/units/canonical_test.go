package units

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"zero", "0", "USD", "$0"},
		{"whole", "25", "USD", "$25"},
		{"grouped", "1200", "USD", "$1,200"},
		{"fraction", "12.5", "USD", "$12.50"},
		{"rounded fraction", "0.0234", "USD", "$0.02"},
		{"default currency", "75", "", "$75"},
		{"euro", "9", "eur", "€9"},
		{"unknown code", "40", "CHF", "CHF 40"},
		{"negative", "-15", "USD", "-$15"},
		{"rounds up to whole", "0.999", "USD", "$1"},
		{"rounds to whole thousands", "1999.996", "USD", "$2,000"},
		{"negative rounding to zero", "-0.001", "USD", "$0"},
		{"negative fraction", "-1234.5", "USD", "-$1,234.50"},
		{"beyond int64", "123456789012345678901234", "USD", "$123,456,789,012,345,678,901,234"},
		{"beyond int64 with cents", "99999999999999999999.25", "EUR", "€99,999,999,999,999,999,999.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestToMonthly(t *testing.T) {
	assert.True(t, ToMonthly(decimal.NewFromInt(120), PeriodAnnual).Equal(decimal.NewFromInt(10)))
	assert.True(t, ToMonthly(decimal.RequireFromString("0.1"), PeriodHourly).Equal(decimal.NewFromInt(73)))
	assert.True(t, ToMonthly(decimal.NewFromInt(30), PeriodMonthly).Equal(decimal.NewFromInt(30)))
	assert.True(t, ToMonthly(decimal.NewFromInt(500), PeriodOneTime).Equal(decimal.NewFromInt(500)))
}

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, PeriodAnnual, ParsePeriod("Yearly"))
	assert.Equal(t, PeriodHourly, ParsePeriod("hr"))
	assert.Equal(t, PeriodOneTime, ParsePeriod("lifetime"))
	assert.Equal(t, PeriodMonthly, ParsePeriod(""))
	assert.Equal(t, PeriodMonthly, ParsePeriod("per seat"))
}
