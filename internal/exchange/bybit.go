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

const bybitTickersPath = "/v5/market/tickers"

// BybitOptions parameterise the Bybit client.
type BybitOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Bybit fetches tickers and funding rates from the Bybit v5 public
// REST API. Spot symbols use the spot category, perpetuals linear.
type Bybit struct {
	opts    BybitOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBybit constructs a Bybit client.
func NewBybit(opts BybitOptions, logger zerolog.Logger) *Bybit {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}

	return &Bybit{
		opts:    opts,
		logger:  logger.With().Str("component", "bybit_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the venue.
func (b *Bybit) Name() string { return "bybit" }

type bybitTicker struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	Turnover24h     string `json:"turnover24h"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type bybitResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string        `json:"category"`
		List     []bybitTicker `json:"list"`
	} `json:"result"`
}

// FetchAllTickers pulls the category ticker lists (spot, and linear
// when any requested symbol is perpetual) and keeps the requested
// symbols.
func (b *Bybit) FetchAllTickers(ctx context.Context, symbols []string) (map[string]domain.TickerSample, error) {
	spot := make([]string, 0, len(symbols))
	perp := make([]string, 0)
	for _, symbol := range symbols {
		if domain.DetectMarketType(symbol) == domain.MarketPerp {
			perp = append(perp, symbol)
		} else {
			spot = append(spot, symbol)
		}
	}

	out := make(map[string]domain.TickerSample, len(symbols))
	if len(spot) > 0 {
		if err := b.fetchCategory(ctx, "spot", spot, out); err != nil {
			return nil, err
		}
	}
	if len(perp) > 0 {
		if err := b.fetchCategory(ctx, "linear", perp, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *Bybit) fetchCategory(ctx context.Context, category string, symbols []string, out map[string]domain.TickerSample) error {
	endpoint := b.baseURL + bybitTickersPath + "?category=" + category
	var res bybitResponse
	if err := getJSON(ctx, b.client, endpoint, b.opts.UserAgent, &res); err != nil {
		return fmt.Errorf("bybit tickers %s: %w", category, err)
	}
	if res.RetCode != 0 {
		return fmt.Errorf("bybit tickers %s: retCode %d: %s", category, res.RetCode, res.RetMsg)
	}

	idx := nativeIndex(symbols, bybitNative)
	now := time.Now().UTC()
	for _, t := range res.Result.List {
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
	return nil
}

// FetchTicker retrieves a single symbol's ticker.
func (b *Bybit) FetchTicker(ctx context.Context, symbol string) (domain.TickerSample, error) {
	category := "spot"
	if domain.DetectMarketType(symbol) == domain.MarketPerp {
		category = "linear"
	}
	endpoint := b.baseURL + bybitTickersPath + "?category=" + category + "&symbol=" + url.QueryEscape(bybitNative(symbol))
	var res bybitResponse
	if err := getJSON(ctx, b.client, endpoint, b.opts.UserAgent, &res); err != nil {
		return domain.TickerSample{}, fmt.Errorf("bybit ticker %s: %w", symbol, err)
	}
	if res.RetCode != 0 || len(res.Result.List) == 0 {
		return domain.TickerSample{}, fmt.Errorf("bybit ticker %s: %w", symbol, ErrSymbolNotListed)
	}
	return b.normalize(symbol, res.Result.List[0], time.Now().UTC())
}

// FetchFundingRate reads the funding fields carried on the linear
// ticker payload.
func (b *Bybit) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingSample, error) {
	endpoint := b.baseURL + bybitTickersPath + "?category=linear&symbol=" + url.QueryEscape(bybitNative(symbol))
	var res bybitResponse
	if err := getJSON(ctx, b.client, endpoint, b.opts.UserAgent, &res); err != nil {
		return domain.FundingSample{}, fmt.Errorf("bybit funding %s: %w", symbol, err)
	}
	if res.RetCode != 0 || len(res.Result.List) == 0 {
		return domain.FundingSample{}, fmt.Errorf("bybit funding %s: %w", symbol, ErrSymbolNotListed)
	}

	t := res.Result.List[0]
	rate, err := decimal.NewFromString(t.FundingRate)
	if err != nil {
		return domain.FundingSample{}, fmt.Errorf("parse funding rate: %w", err)
	}

	sample := domain.FundingSample{Symbol: symbol, Exchange: b.Name(), Rate: rate}
	if ms, err := decimal.NewFromString(t.NextFundingTime); err == nil && ms.IsPositive() {
		next := time.UnixMilli(ms.IntPart()).UTC()
		sample.NextFundingAt = &next
	}
	return sample, nil
}

func (b *Bybit) normalize(symbol string, t bybitTicker, observedAt time.Time) (domain.TickerSample, error) {
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse price: %w", err)
	}
	volume, err := decimal.NewFromString(t.Turnover24h)
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
	if bid, err := decimal.NewFromString(t.Bid1Price); err == nil && bid.IsPositive() {
		sample.Bid = &bid
	}
	if ask, err := decimal.NewFromString(t.Ask1Price); err == nil && ask.IsPositive() {
		sample.Ask = &ask
	}
	return sample, nil
}

// bybitNative renders "BTC/USDT" (or "BTC/USDT:USDT") as "BTCUSDT".
func bybitNative(symbol string) string {
	base, quote := domain.BaseQuote(symbol)
	return strings.ToUpper(base + quote)
}

var _ Client = (*Bybit)(nil)
