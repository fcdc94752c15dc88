package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketType distinguishes spot pairs from perpetual contracts.
type MarketType string

const (
	MarketSpot MarketType = "spot"
	MarketPerp MarketType = "perp"
)

// DetectMarketType infers the market type from the symbol naming
// convention: a settlement-currency separator ("BTC/USDT:USDT") or an
// explicit PERP/SWAP marker means perpetual, anything else is spot.
func DetectMarketType(symbol string) MarketType {
	upper := strings.ToUpper(symbol)
	if strings.Contains(upper, ":") {
		return MarketPerp
	}
	if strings.Contains(upper, "PERP") || strings.Contains(upper, "-SWAP") {
		return MarketPerp
	}
	return MarketSpot
}

// BaseQuote splits a common-format symbol ("BTC/USDT" or
// "BTC/USDT:USDT") into base and quote currencies. The settlement
// suffix, when present, is discarded.
func BaseQuote(symbol string) (string, string) {
	pair := symbol
	if idx := strings.Index(pair, ":"); idx >= 0 {
		pair = pair[:idx]
	}
	base, quote, found := strings.Cut(pair, "/")
	if !found {
		return pair, ""
	}
	return base, quote
}

// TickerSample is one exchange's observation of one symbol at one
// instant. Ephemeral; produced per fetch and discarded after the
// aggregation cycle that consumed it.
type TickerSample struct {
	Symbol     string           `json:"symbol"`
	Exchange   string           `json:"exchange"`
	Price      decimal.Decimal  `json:"price"`
	Volume     decimal.Decimal  `json:"volume"`
	Bid        *decimal.Decimal `json:"bid,omitempty"`
	Ask        *decimal.Decimal `json:"ask,omitempty"`
	ObservedAt time.Time        `json:"observedAt"`
}

// FundingSample is one exchange's funding rate for a perpetual symbol.
// The rate is a signed fraction per funding interval.
type FundingSample struct {
	Symbol        string          `json:"symbol"`
	Exchange      string          `json:"exchange"`
	Rate          decimal.Decimal `json:"rate"`
	NextFundingAt *time.Time      `json:"nextFundingAt,omitempty"`
}

// SymbolSnapshot aggregates one symbol's samples across every exchange
// that reported it in the current cycle. Built fresh each cycle. A
// snapshot with fewer than two samples never reaches route computation.
type SymbolSnapshot struct {
	Symbol     string
	MarketType MarketType
	Samples    map[string]TickerSample
	Funding    map[string]FundingSample
}

// SampleCount reports how many exchanges contributed a ticker.
func (s SymbolSnapshot) SampleCount() int {
	return len(s.Samples)
}

// SortedSamples returns the snapshot's samples ordered by exchange
// name, giving route enumeration a stable input order.
func (s SymbolSnapshot) SortedSamples() []TickerSample {
	names := make([]string, 0, len(s.Samples))
	for name := range s.Samples {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]TickerSample, 0, len(names))
	for _, name := range names {
		out = append(out, s.Samples[name])
	}
	return out
}
