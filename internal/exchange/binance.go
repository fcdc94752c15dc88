package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

const (
	binanceTickerPath  = "/api/v3/ticker/24hr"
	binancePremiumPath = "/fapi/v1/premiumIndex"
)

// BinanceOptions parameterise the Binance client.
type BinanceOptions struct {
	BaseURL    string
	FuturesURL string
	Timeout    time.Duration
	UserAgent  string
}

// Binance fetches spot tickers and perpetual funding rates from the
// Binance public REST API.
type Binance struct {
	opts       BinanceOptions
	logger     zerolog.Logger
	client     *http.Client
	baseURL    string
	futuresURL string
}

// NewBinance constructs a Binance client.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	futuresURL := strings.TrimRight(opts.FuturesURL, "/")
	if futuresURL == "" {
		futuresURL = "https://fapi.binance.com"
	}

	return &Binance{
		opts:       opts,
		logger:     logger.With().Str("component", "binance_client").Logger(),
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		futuresURL: futuresURL,
	}
}

// Name identifies the venue.
func (b *Binance) Name() string { return "binance" }

type binanceTicker struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	QuoteVolume string `json:"quoteVolume"`
	BidPrice    string `json:"bidPrice"`
	AskPrice    string `json:"askPrice"`
}

// FetchAllTickers retrieves the full 24h ticker list in one call and
// keeps the requested symbols.
func (b *Binance) FetchAllTickers(ctx context.Context, symbols []string) (map[string]domain.TickerSample, error) {
	var tickers []binanceTicker
	if err := getJSON(ctx, b.client, b.baseURL+binanceTickerPath, b.opts.UserAgent, &tickers); err != nil {
		return nil, fmt.Errorf("binance tickers: %w", err)
	}

	idx := nativeIndex(symbols, binanceNative)
	now := time.Now().UTC()
	out := make(map[string]domain.TickerSample, len(symbols))
	for _, t := range tickers {
		symbol, wanted := idx[t.Symbol]
		if !wanted {
			continue
		}
		sample, err := b.normalize(symbol, t, now)
		if err != nil {
			b.logger.Debug().Str("symbol", symbol).Err(err).Msg("skipping unparsable ticker")
			continue
		}
		out[symbol] = sample
	}
	return out, nil
}

// FetchTicker retrieves a single symbol's ticker.
func (b *Binance) FetchTicker(ctx context.Context, symbol string) (domain.TickerSample, error) {
	endpoint := b.baseURL + binanceTickerPath + "?symbol=" + url.QueryEscape(binanceNative(symbol))
	var t binanceTicker
	if err := getJSON(ctx, b.client, endpoint, b.opts.UserAgent, &t); err != nil {
		return domain.TickerSample{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	return b.normalize(symbol, t, time.Now().UTC())
}

type binancePremium struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// FetchFundingRate retrieves the perpetual funding rate from the
// futures API.
func (b *Binance) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingSample, error) {
	endpoint := b.futuresURL + binancePremiumPath + "?symbol=" + url.QueryEscape(binanceNative(symbol))
	var p binancePremium
	if err := getJSON(ctx, b.client, endpoint, b.opts.UserAgent, &p); err != nil {
		return domain.FundingSample{}, fmt.Errorf("binance funding %s: %w", symbol, err)
	}

	rate, err := decimal.NewFromString(p.LastFundingRate)
	if err != nil {
		return domain.FundingSample{}, fmt.Errorf("parse funding rate: %w", err)
	}

	sample := domain.FundingSample{Symbol: symbol, Exchange: b.Name(), Rate: rate}
	if p.NextFundingTime > 0 {
		next := time.UnixMilli(p.NextFundingTime).UTC()
		sample.NextFundingAt = &next
	}
	return sample, nil
}

func (b *Binance) normalize(symbol string, t binanceTicker, observedAt time.Time) (domain.TickerSample, error) {
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse price: %w", err)
	}
	volume, err := decimal.NewFromString(t.QuoteVolume)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse volume: %w", err)
	}

	sample := domain.TickerSample{
		Symbol:     symbol,
		Exchange:   b.Name(),
		Price:      price,
		Volume:     volume,
		ObservedAt: observedAt,
	}
	if bid, err := decimal.NewFromString(t.BidPrice); err == nil && bid.IsPositive() {
		sample.Bid = &bid
	}
	if ask, err := decimal.NewFromString(t.AskPrice); err == nil && ask.IsPositive() {
		sample.Ask = &ask
	}
	return sample, nil
}

// binanceNative renders "BTC/USDT" (or "BTC/USDT:USDT") as "BTCUSDT".
func binanceNative(symbol string) string {
	base, quote := domain.BaseQuote(symbol)
	return strings.ToUpper(base + quote)
}

var _ Client = (*Binance)(nil)
