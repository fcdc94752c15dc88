// Package routes enumerates and ranks directed arbitrage routes for
// one symbol. The enumeration is an intentional O(n²) brute force over
// the exchange set; n is bounded by the number of configured venues.
package routes

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// Config parameterises route computation.
type Config struct {
	// FeeRate is the combined taker fee assumed for both legs,
	// applied to the buy price.
	FeeRate decimal.Decimal
	// TopK caps the retained routes per symbol, best first.
	TopK int
	// MinSpreadPct excludes noise-level opportunities: the gross
	// spread must exceed this percentage (default one basis point).
	MinSpreadPct decimal.Decimal
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FeeRate:      decimal.NewFromFloat(0.002),
		TopK:         5,
		MinSpreadPct: decimal.NewFromFloat(0.01),
	}
}

var (
	hundred      = decimal.NewFromInt(100)
	liquidityCap = decimal.NewFromInt(100_000)
	lowRiskVol   = decimal.NewFromInt(100_000)
	highRiskVol  = decimal.NewFromInt(50_000)
)

// Compute enumerates every directed (buy, sell) exchange pair for the
// snapshot, keeps the profitable ones, and returns them ranked by net
// profit percentage, truncated to TopK. The second return value is the
// number of profitable routes before truncation. Pure and
// deterministic: samples are walked in sorted exchange order, and the
// ranking sort is stable, so ties keep their enumeration order.
func Compute(snap domain.SymbolSnapshot, cfg Config) ([]domain.Route, int) {
	samples := snap.SortedSamples()
	if len(samples) < 2 {
		return nil, 0
	}

	kept := make([]domain.Route, 0, len(samples)*(len(samples)-1)/2)
	for i := range samples {
		for j := range samples {
			if i == j {
				continue
			}
			buy, sell := samples[i], samples[j]
			if !sell.Price.GreaterThan(buy.Price) {
				continue
			}

			gross := sell.Price.Sub(buy.Price)
			spreadPct := gross.Div(buy.Price).Mul(hundred)
			if !spreadPct.GreaterThan(cfg.MinSpreadPct) {
				continue
			}

			fees := buy.Price.Mul(cfg.FeeRate)
			net := gross.Sub(fees)
			if !net.IsPositive() {
				continue
			}

			maxVolume := decimal.Min(buy.Volume, sell.Volume)
			route := domain.Route{
				Symbol:        snap.Symbol,
				BuyExchange:   buy.Exchange,
				SellExchange:  sell.Exchange,
				BuyPrice:      buy.Price,
				SellPrice:     sell.Price,
				GrossProfit:   gross,
				EstimatedFees: fees,
				NetProfit:     net,
				NetProfitPct:  net.Div(buy.Price).Mul(hundred),
				MaxVolume:     maxVolume,
				Liquidity:     liquidityScore(maxVolume),
				Risk:          executionRisk(maxVolume),
			}
			if snap.MarketType == domain.MarketPerp {
				route.Funding = fundingImpact(snap, buy.Exchange, sell.Exchange)
			}
			kept = append(kept, route)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].NetProfitPct.GreaterThan(kept[b].NetProfitPct)
	})

	total := len(kept)
	if cfg.TopK > 0 && len(kept) > cfg.TopK {
		kept = kept[:cfg.TopK]
	}
	return kept, total
}

func liquidityScore(maxVolume decimal.Decimal) decimal.Decimal {
	score := maxVolume.Div(liquidityCap)
	if score.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return score
}

func executionRisk(maxVolume decimal.Decimal) domain.ExecutionRisk {
	switch {
	case maxVolume.GreaterThan(lowRiskVol):
		return domain.RiskLow
	case maxVolume.LessThan(highRiskVol):
		return domain.RiskHigh
	default:
		return domain.RiskMedium
	}
}

// fundingImpact attaches the funding differential when both legs have
// a funding sample. An absent sample means "no funding impact"; one is
// never synthesised.
func fundingImpact(snap domain.SymbolSnapshot, buyExchange, sellExchange string) *domain.FundingImpact {
	buyFunding, okBuy := snap.Funding[buyExchange]
	sellFunding, okSell := snap.Funding[sellExchange]
	if !okBuy || !okSell {
		return nil
	}
	return &domain.FundingImpact{
		BuyExchangeRate:  buyFunding.Rate,
		SellExchangeRate: sellFunding.Rate,
		NetImpact:        sellFunding.Rate.Sub(buyFunding.Rate).Abs().Mul(hundred),
	}
}
