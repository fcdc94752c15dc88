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
	okxTickersPath = "/api/v5/market/tickers"
	okxTickerPath  = "/api/v5/market/ticker"
	okxFundingPath = "/api/v5/public/funding-rate"
)

// OKXOptions parameterise the OKX client.
type OKXOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// OKX fetches tickers and funding rates from the OKX public REST API.
type OKX struct {
	opts    OKXOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewOKX constructs an OKX client.
func NewOKX(opts OKXOptions, logger zerolog.Logger) *OKX {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}

	return &OKX{
		opts:    opts,
		logger:  logger.With().Str("component", "okx_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the venue.
func (o *OKX) Name() string { return "okx" }

type okxTicker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	VolCcy24h string `json:"volCcy24h"`
	BidPx     string `json:"bidPx"`
	AskPx     string `json:"askPx"`
}

type okxTickersResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []okxTicker `json:"data"`
}

// FetchAllTickers pulls the instrument-type ticker lists (SPOT, and
// SWAP when any requested symbol is perpetual) and keeps the requested
// symbols.
func (o *OKX) FetchAllTickers(ctx context.Context, symbols []string) (map[string]domain.TickerSample, error) {
	instTypes := []string{"SPOT"}
	for _, symbol := range symbols {
		if domain.DetectMarketType(symbol) == domain.MarketPerp {
			instTypes = append(instTypes, "SWAP")
			break
		}
	}

	idx := nativeIndex(symbols, okxNative)
	now := time.Now().UTC()
	out := make(map[string]domain.TickerSample, len(symbols))
	for _, instType := range instTypes {
		endpoint := o.baseURL + okxTickersPath + "?instType=" + instType
		var res okxTickersResponse
		if err := getJSON(ctx, o.client, endpoint, o.opts.UserAgent, &res); err != nil {
			return nil, fmt.Errorf("okx tickers %s: %w", instType, err)
		}
		if res.Code != "0" {
			return nil, fmt.Errorf("okx tickers %s: code %s: %s", instType, res.Code, res.Msg)
		}
		for _, t := range res.Data {
			symbol, wanted := idx[t.InstID]
			if !wanted {
				continue
			}
			sample, err := o.normalize(symbol, t, now)
			if err != nil {
				o.logger.Debug().Str("symbol", symbol).Err(err).Msg("skipping unparsable ticker")
				continue
			}
			out[symbol] = sample
		}
	}
	return out, nil
}

// FetchTicker retrieves a single symbol's ticker.
func (o *OKX) FetchTicker(ctx context.Context, symbol string) (domain.TickerSample, error) {
	endpoint := o.baseURL + okxTickerPath + "?instId=" + url.QueryEscape(okxNative(symbol))
	var res okxTickersResponse
	if err := getJSON(ctx, o.client, endpoint, o.opts.UserAgent, &res); err != nil {
		return domain.TickerSample{}, fmt.Errorf("okx ticker %s: %w", symbol, err)
	}
	if res.Code != "0" || len(res.Data) == 0 {
		return domain.TickerSample{}, fmt.Errorf("okx ticker %s: %w", symbol, ErrSymbolNotListed)
	}
	return o.normalize(symbol, res.Data[0], time.Now().UTC())
}

type okxFundingResponse struct {
	Code string `json:"code"`
	Data []struct {
		FundingRate     string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	} `json:"data"`
}

// FetchFundingRate retrieves the current funding rate for a swap.
func (o *OKX) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingSample, error) {
	endpoint := o.baseURL + okxFundingPath + "?instId=" + url.QueryEscape(okxNative(symbol))
	var res okxFundingResponse
	if err := getJSON(ctx, o.client, endpoint, o.opts.UserAgent, &res); err != nil {
		return domain.FundingSample{}, fmt.Errorf("okx funding %s: %w", symbol, err)
	}
	if res.Code != "0" || len(res.Data) == 0 {
		return domain.FundingSample{}, fmt.Errorf("okx funding %s: %w", symbol, ErrSymbolNotListed)
	}

	rate, err := decimal.NewFromString(res.Data[0].FundingRate)
	if err != nil {
		return domain.FundingSample{}, fmt.Errorf("parse funding rate: %w", err)
	}

	sample := domain.FundingSample{Symbol: symbol, Exchange: o.Name(), Rate: rate}
	if ms, err := decimal.NewFromString(res.Data[0].NextFundingTime); err == nil && ms.IsPositive() {
		next := time.UnixMilli(ms.IntPart()).UTC()
		sample.NextFundingAt = &next
	}
	return sample, nil
}

func (o *OKX) normalize(symbol string, t okxTicker, observedAt time.Time) (domain.TickerSample, error) {
	price, err := decimal.NewFromString(t.Last)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse price: %w", err)
	}
	volume, err := decimal.NewFromString(t.VolCcy24h)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("parse volume: %w", err)
	}

	sample := domain.TickerSample{
		Symbol:     symbol,
		Exchange:   o.Name(),
		Price:      price,
		Volume:     volume,
		ObservedAt: observedAt,
	}
	if bid, err := decimal.NewFromString(t.BidPx); err == nil && bid.IsPositive() {
		sample.Bid = &bid
	}
	if ask, err := decimal.NewFromString(t.AskPx); err == nil && ask.IsPositive() {
		sample.Ask = &ask
	}
	return sample, nil
}

// okxNative renders "BTC/USDT" as "BTC-USDT" and "BTC/USDT:USDT" as
// "BTC-USDT-SWAP".
func okxNative(symbol string) string {
	base, quote := domain.BaseQuote(symbol)
	native := strings.ToUpper(base + "-" + quote)
	if domain.DetectMarketType(symbol) == domain.MarketPerp {
		native += "-SWAP"
	}
	return native
}

var _ Client = (*OKX)(nil)
