package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionRisk buckets a route by the executable volume behind it.
type ExecutionRisk string

const (
	RiskLow    ExecutionRisk = "low"
	RiskMedium ExecutionRisk = "medium"
	RiskHigh   ExecutionRisk = "high"
)

// FundingImpact carries the funding-rate differential attached to a
// perpetual route. NetImpact is |sellRate - buyRate| expressed in
// percent.
type FundingImpact struct {
	BuyExchangeRate  decimal.Decimal `json:"buyExchangeRate"`
	SellExchangeRate decimal.Decimal `json:"sellExchangeRate"`
	NetImpact        decimal.Decimal `json:"netFundingImpact"`
}

// Route is one directed buy-low/sell-high opportunity between two
// exchanges for one symbol. Retained routes always satisfy
// SellPrice > BuyPrice, NetProfit > 0, BuyExchange != SellExchange.
type Route struct {
	Symbol        string          `json:"symbol"`
	BuyExchange   string          `json:"buyExchange"`
	SellExchange  string          `json:"sellExchange"`
	BuyPrice      decimal.Decimal `json:"buyPrice"`
	SellPrice     decimal.Decimal `json:"sellPrice"`
	GrossProfit   decimal.Decimal `json:"grossProfit"`
	EstimatedFees decimal.Decimal `json:"estimatedFees"`
	NetProfit     decimal.Decimal `json:"netProfit"`
	NetProfitPct  decimal.Decimal `json:"netProfitPercentage"`
	MaxVolume     decimal.Decimal `json:"maxVolume"`
	Liquidity     decimal.Decimal `json:"liquidityScore"`
	Risk          ExecutionRisk   `json:"executionRisk"`
	Funding       *FundingImpact  `json:"fundingImpact,omitempty"`
}

// ExchangeQuote is the per-exchange price/volume summary embedded in a
// route set for the dashboard.
type ExchangeQuote struct {
	Price       decimal.Decimal  `json:"price"`
	Volume      decimal.Decimal  `json:"volume"`
	FundingRate *decimal.Decimal `json:"fundingRate,omitempty"`
}

// SymbolRouteSet is the per-symbol output of one aggregation cycle:
// the ranked, truncated route list plus the quotes it was derived
// from. Immutable after creation; replaced wholesale next cycle.
type SymbolRouteSet struct {
	Symbol         string                   `json:"symbol"`
	MarketType     MarketType               `json:"marketType"`
	Exchanges      map[string]ExchangeQuote `json:"exchanges"`
	Routes         []Route                  `json:"routes"`
	BestRoute      *Route                   `json:"bestRoute,omitempty"`
	RouteCount     int                      `json:"routeCount"`
	TotalAvailable int                      `json:"totalAvailableRoutes"`
	LastUpdated    time.Time                `json:"lastUpdated"`
}

// AggregationResult is the full output of one data refresh: ranked
// route sets plus the raw ticker and funding maps for passthrough
// endpoints, keyed exchange -> symbol.
type AggregationResult struct {
	RouteSets []SymbolRouteSet                    `json:"spreads"`
	Tickers   map[string]map[string]TickerSample  `json:"tickers"`
	Funding   map[string]map[string]FundingSample `json:"fundingRates"`
	Timestamp time.Time                           `json:"timestamp"`
	Success   bool                                `json:"success"`
	Error     string                              `json:"error,omitempty"`
}
