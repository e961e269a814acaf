package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Rates are a period's flows expressed as a percentage of waste generated.
type Rates struct {
	RecoveryRate  float64 `json:"recoveryRate"`
	RecyclingRate float64 `json:"recyclingRate"`
	DisposalRate  float64 `json:"disposalRate"`
}

// ComputeRates derives the rates for one aggregate. All rates are zero when
// nothing was generated.
func ComputeRates(agg *PeriodAggregate) Rates {
	if agg == nil {
		return Rates{}
	}
	return Rates{
		RecoveryRate:  Percentage(agg.TotalRecovered, agg.TotalGenerated),
		RecyclingRate: Percentage(agg.TotalRecycled, agg.TotalGenerated),
		DisposalRate:  Percentage(agg.TotalDisposed, agg.TotalGenerated),
	}
}

// Percentage returns part/whole*100 rounded to two decimals, half away from
// zero. It returns 0 for a non-positive whole or a negative part.
func Percentage(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() || part.IsNegative() {
		return 0
	}
	return part.Mul(hundred).Div(whole).Round(2).InexactFloat64()
}

// Round2 rounds v to two decimals, half away from zero. Non-finite input
// yields 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Float converts an accumulator for output, rounded to two decimals.
func Float(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
