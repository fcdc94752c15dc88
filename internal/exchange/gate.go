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
	gateTickersPath = "/api/v4/spot/tickers"
	gateFundingPath = "/api/v4/futures/usdt/contracts"
)

// GateOptions parameterise the Gate.io client.
type GateOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Gate fetches spot tickers and perpetual funding rates from the
// Gate.io v4 public REST API.
type Gate struct {
	opts    GateOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGate constructs a Gate.io client.
func NewGate(opts GateOptions, logger zerolog.Logger) *Gate {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.gateio.ws"
	}

	return &Gate{
		opts:    opts,
		logger:  logger.With().Str("component", "gate_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the venue.
func (g *Gate) Name() string { return "gate" }

type gateTicker struct {
	CurrencyPair string `json:"currency_pair"`
	Last         string `json:"last"`
	QuoteVolume  string `json:"quote_volume"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
}

// FetchAllTickers retrieves the full spot ticker list in one call and
// keeps the requested symbols.
func (g *Gate) FetchAllTickers(ctx context.Context, symbols []string) (map[string]domain.TickerSample, error) {
	var tickers []gateTicker
	if err := getJSON(ctx, g.client, g.baseURL+gateTickersPath, g.opts.UserAgent, &tickers); err != nil {
		return nil, fmt.Errorf("gate tickers: %w", err)
	}

	idx := nativeIndex(symbols, gateNative)
	now := time.Now().UTC()
	out := make(map[string]domain.TickerSample, len(symbols))
	for _, t := range tickers {
		symbol, wanted := idx[t.CurrencyPair]
		if !wanted {
			continue
		}
		sample, err := g.normalize(symbol, t, now)
		if err != nil {
			g.logger.Debug().Str("symbol", symbol).Err(err).Msg("skipping unparsable ticker")
			continue
		}
		out[symbol] = sample
	}
	return out, nil
}

// FetchTicker retrieves a single symbol's ticker.
func (g *Gate) FetchTicker(ctx context.Context, symbol string) (domain.TickerSample, error) {
	endpoint := g.baseURL + gateTickersPath + "?currency_pair=" + url.QueryEscape(gateNative(symbol))
	var tickers []gateTicker
	if err := getJSON(ctx, g.client, endpoint, g.opts.UserAgent, &tickers); err != nil {
		return domain.TickerSample{}, fmt.Errorf("gate ticker %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return domain.TickerSample{}, fmt.Errorf("gate ticker %s: %w", symbol, ErrSymbolNotListed)
	}
	return g.normalize(symbol, tickers[0], time.Now().UTC())
}

type gateContract struct {
	Name            string `json:"name"`
	FundingRate     string `json:"funding_rate"`
	FundingNextTime int64  `json:"funding_next_apply"`
}

// FetchFundingRate retrieves a USDT-settled contract's funding rate.
func (g *Gate) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingSample, error) {
	endpoint := g.baseURL + gateFundingPath + "/" + url.PathEscape(gateNative(symbol))
	var c gateContract
	if err := getJSON(ctx, g.client, endpoint, g.opts.UserAgent, &c); err != nil {
		return domain.FundingSample{}, fmt.Errorf("gate funding %s: %w", symbol, err)
	}

	rate, err := decimal.NewFromString(c.FundingRate)
	if err != nil {
		return domain.FundingSample{}, fmt.Errorf("parse funding rate: %w", err)
	}

	sample := domain.FundingSample{Symbol: symbol, Exchange: g.Name(), Rate: rate}
	if c.FundingNextTime > 0 {
		next := time.Unix(c.FundingNextTime, 0).UTC()
		sample.NextFundingAt = &next
	}
	return sample, nil
}

func (g *Gate) normalize(symbol string, t gateTicker, observedAt time.Time) (domain.TickerSample, error) {
	price, err := decimal.NewFromString(t.Last)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse price: %w", err)
	}
	volume, err := decimal.NewFromString(t.QuoteVolume)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse volume: %w", err)
	}

	sample := domain.TickerSample{
		Symbol:     symbol,
		Exchange:   g.Name(),
		Price:      price,
		Volume:     volume,
		ObservedAt: observedAt,
	}
	if bid, err := decimal.NewFromString(t.HighestBid); err == nil && bid.IsPositive() {
		sample.Bid = &bid
	}
	if ask, err := decimal.NewFromString(t.LowestAsk); err == nil && ask.IsPositive() {
		sample.Ask = &ask
	}
	return sample, nil
}

// gateNative renders "BTC/USDT" (or "BTC/USDT:USDT") as "BTC_USDT".
func gateNative(symbol string) string {
	base, quote := domain.BaseQuote(symbol)
	return strings.ToUpper(base + "_" + quote)
}

var _ Client = (*Gate)(nil)
