// Package filter gates symbols before route computation. Naive
// min/max spread math on illiquid or stale pairs produces nonsensical
// "50000% arbitrage" readings, so liquidity and price-dispersion
// sanity checks run first.
package filter

import (
	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// Thresholds are the configurable data-quality limits. Volumes are
// quote-currency notionals; spreads are percentages.
type Thresholds struct {
	MinExchangeCount         int
	MinVolumePerExchange     decimal.Decimal
	MinTotalVolume           decimal.Decimal
	MaxVolumeRatio           decimal.Decimal
	MaxRealisticSpread       decimal.Decimal
	PriceValidationThreshold decimal.Decimal
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinExchangeCount:         2,
		MinVolumePerExchange:     decimal.NewFromInt(10_000),
		MinTotalVolume:           decimal.NewFromInt(50_000),
		MaxVolumeRatio:           decimal.NewFromInt(50),
		MaxRealisticSpread:       decimal.NewFromInt(50),
		PriceValidationThreshold: decimal.NewFromInt(100),
	}
}

// Verdict is the outcome of evaluating one symbol's samples.
type Verdict struct {
	Accepted bool
	Reason   string
	// SpreadPct is the naive (max-min)/min dispersion in percent,
	// computed whenever at least two samples are present.
	SpreadPct decimal.Decimal
	// Flagged marks dispersion above the validation threshold but
	// within the reject limit; observability only, never a rejection.
	Flagged bool
}

var hundred = decimal.NewFromInt(100)

// Evaluate decides whether a symbol's per-exchange samples are safe to
// feed into spread computation. Pure function of its inputs: identical
// samples and thresholds always yield the identical verdict. Any
// single failing check rejects the symbol for this cycle.
func Evaluate(samples []domain.TickerSample, t Thresholds) Verdict {
	if len(samples) < t.MinExchangeCount {
		return Verdict{Reason: "too few exchanges"}
	}

	total := decimal.Zero
	minVol := samples[0].Volume
	maxVol := samples[0].Volume
	for _, s := range samples {
		if s.Volume.IsZero() {
			return Verdict{Reason: "zero volume sample"}
		}
		if s.Volume.LessThan(t.MinVolumePerExchange) {
			return Verdict{Reason: "volume below per-exchange minimum"}
		}
		total = total.Add(s.Volume)
		if s.Volume.LessThan(minVol) {
			minVol = s.Volume
		}
		if s.Volume.GreaterThan(maxVol) {
			maxVol = s.Volume
		}
	}

	if total.LessThan(t.MinTotalVolume) {
		return Verdict{Reason: "total volume below minimum"}
	}

	// One illiquid venue dominating the spread is a data hazard even
	// when every venue clears the absolute minimum.
	if maxVol.Div(minVol).GreaterThan(t.MaxVolumeRatio) {
		return Verdict{Reason: "volume ratio too high"}
	}

	minPrice := samples[0].Price
	maxPrice := samples[0].Price
	for _, s := range samples[1:] {
		if s.Price.LessThan(minPrice) {
			minPrice = s.Price
		}
		if s.Price.GreaterThan(maxPrice) {
			maxPrice = s.Price
		}
	}
	if !minPrice.IsPositive() {
		return Verdict{Reason: "non-positive price"}
	}

	spreadPct := maxPrice.Sub(minPrice).Div(minPrice).Mul(hundred)
	if spreadPct.GreaterThan(t.MaxRealisticSpread) {
		// Treated as a data error (stale or delisted pair), not a real
		// opportunity.
		return Verdict{Reason: "unrealistic price spread", SpreadPct: spreadPct}
	}

	v := Verdict{Accepted: true, SpreadPct: spreadPct}
	if spreadPct.GreaterThan(t.PriceValidationThreshold) {
		v.Flagged = true
	}
	return v
}
