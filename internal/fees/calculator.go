// internal/fees/calculator.go
package fees

import (
	"rideflow-wallet/internal/util"

	"github.com/shopspring/decimal"
)

// Breakdown is the result of a fee computation for a deposit.
// TotalAmount is what the user is charged by the gateway; only BaseAmount is
// credited to the wallet once the deposit settles.
type Breakdown struct {
	BaseAmount   int64 `json:"base_amount"`
	PrimaryFee   int64 `json:"primary_fee"`
	SecondaryFee int64 `json:"secondary_fee"`
	TotalFees    int64 `json:"total_fees"`
	TotalAmount  int64 `json:"total_amount"`
}

// Calculator computes deposit fees from two configured percentage rates:
// the gateway's own fee and the mobile-money operator's fee. The two fees are
// additive, each computed on the base amount.
type Calculator struct {
	primaryRate   decimal.Decimal
	secondaryRate decimal.Decimal
}

// NewCalculator creates a Calculator with the given rates, expressed as
// fractions (0.02 for 2%).
func NewCalculator(primaryRate, secondaryRate decimal.Decimal) *Calculator {
	return &Calculator{
		primaryRate:   primaryRate,
		secondaryRate: secondaryRate,
	}
}

// Calculate computes the fee breakdown for a deposit of the given amount.
// Each fee component is rounded to the nearest whole currency unit
// independently; the totals are plain sums of already-rounded components, so
// results are reproducible regardless of rate precision.
// Pure function, no I/O.
func (c *Calculator) Calculate(amount int64) (*Breakdown, error) {
	if amount <= 0 {
		return nil, util.ErrInvalidInput
	}

	base := decimal.NewFromInt(amount)
	primaryFee := base.Mul(c.primaryRate).Round(0).IntPart()
	secondaryFee := base.Mul(c.secondaryRate).Round(0).IntPart()
	totalFees := primaryFee + secondaryFee

	return &Breakdown{
		BaseAmount:   amount,
		PrimaryFee:   primaryFee,
		SecondaryFee: secondaryFee,
		TotalFees:    totalFees,
		TotalAmount:  amount + totalFees,
	}, nil
}
