// Package units provides canonical billing periods, normalisation and money formatting.
package units

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BillingPeriod is the interval a tier price is quoted for.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
	PeriodHourly  BillingPeriod = "hourly"
	PeriodOneTime BillingPeriod = "one_time"
)

// HoursPerMonth is the standard billing assumption.
const HoursPerMonth = 730

// DefaultCurrency is used when a catalog does not name one.
const DefaultCurrency = "USD"

var (
	monthsPerYear = decimal.NewFromInt(12)
	hoursPerMonth = decimal.NewFromInt(HoursPerMonth)
)

// ParsePeriod maps loose spellings onto a BillingPeriod. Unknown or empty
// values are treated as monthly, the catalog default.
func ParsePeriod(s string) BillingPeriod {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annual", "annually", "yearly", "year", "yr":
		return PeriodAnnual
	case "hourly", "hour", "hr", "hrs":
		return PeriodHourly
	case "one_time", "one-time", "once", "lifetime":
		return PeriodOneTime
	default:
		return PeriodMonthly
	}
}

// ToMonthly normalises a price quoted for period into a monthly amount.
// One-time prices are returned unchanged.
func ToMonthly(price decimal.Decimal, period BillingPeriod) decimal.Decimal {
	switch period {
	case PeriodAnnual:
		return price.Div(monthsPerYear)
	case PeriodHourly:
		return price.Mul(hoursPerMonth)
	default:
		return price
	}
}

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

var printer = message.NewPrinter(language.English)

// FormatMoney renders amount with a currency symbol and English digit
// grouping. The amount is rounded to cents first; whole results drop the
// fraction ("$1,200"), others keep two decimals ("$12.50").
func FormatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	prefix, ok := symbols[currency]
	if !ok {
		prefix = currency + " "
	}

	amount = amount.Round(2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	whole, frac, _ := strings.Cut(amount.StringFixed(2), ".")
	if frac == "00" {
		return sign + prefix + groupDigits(whole)
	}
	return sign + prefix + groupDigits(whole) + "." + frac
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// groupDigits inserts English thousands separators into a string of digits.
// The printer handles anything that fits an int64; larger values are grouped
// by hand.
func groupDigits(digits string) string {
	if n, err := decimal.NewFromString(digits); err == nil && n.LessThanOrEqual(maxInt64) {
		return printer.Sprintf("%d", n.IntPart())
	}
	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
