package lifecycle

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCommissionPercentage is the platform share of a job when none is configured
var DefaultCommissionPercentage = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

// Column limits of NUMERIC(12,2) money and NUMERIC(8,2) duration
var (
	MaxMoney    = decimal.RequireFromString("9999999999.99")
	MaxDuration = decimal.RequireFromString("999999.99")
)

// Settle splits finalAmount into the platform commission and the company payout.
// The commission is rounded half-up to 2 decimals and the payout takes the
// remainder, so commission + payout always equals finalAmount.
func Settle(finalAmount, percentage decimal.Decimal) (commission, payout decimal.Decimal) {
	commission = finalAmount.Mul(percentage).Div(hundred).Round(2)
	payout = finalAmount.Sub(commission)
	return commission, payout
}

// ValidatePercentage checks that pct is within [0, 100] with at most 2 decimals
func ValidatePercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("must be between 0 and 100, got %s", pct)
	}
	if !pct.Equal(pct.Round(2)) {
		return fmt.Errorf("must have at most 2 decimal places, got %s", pct)
	}
	return nil
}
