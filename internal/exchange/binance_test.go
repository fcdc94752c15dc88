package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestBinanceFetchAllTickersNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != binanceTickerPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"64250.10","quoteVolume":"1234567.89","bidPrice":"64249.90","askPrice":"64250.30"},
			{"symbol":"ETHUSDT","lastPrice":"3120.55","quoteVolume":"765432.10","bidPrice":"0","askPrice":"3120.70"},
			{"symbol":"SHIBUSDT","lastPrice":"0.00002","quoteVolume":"1000"}
		]`))
	}))
	defer srv.Close()

	client := NewBinance(BinanceOptions{BaseURL: srv.URL}, zerolog.Nop())
	out, err := client.FetchAllTickers(context.Background(), []string{"BTC/USDT", "ETH/USDT"})
	if err != nil {
		t.Fatalf("FetchAllTickers: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("expected 2 requested symbols, got %d (unrequested symbols must be dropped)", len(out))
	}

	btc := out["BTC/USDT"]
	if btc.Exchange != "binance" || btc.Symbol != "BTC/USDT" {
		t.Fatalf("sample identity wrong: %+v", btc)
	}
	if !btc.Price.Equal(decimal.RequireFromString("64250.10")) {
		t.Fatalf("price = %s", btc.Price)
	}
	if !btc.Volume.Equal(decimal.RequireFromString("1234567.89")) {
		t.Fatalf("volume = %s", btc.Volume)
	}
	if btc.Bid == nil || btc.Ask == nil {
		t.Fatal("bid/ask should be populated when positive")
	}

	// A zero bid is noise, not a quote.
	if eth := out["ETH/USDT"]; eth.Bid != nil {
		t.Fatalf("zero bid must be dropped, got %s", *eth.Bid)
	}
}

func TestBinanceFetchAllTickersSkipsUnparsable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"not-a-number","quoteVolume":"1"},
			{"symbol":"ETHUSDT","lastPrice":"3120.55","quoteVolume":"765432.10"}
		]`))
	}))
	defer srv.Close()

	client := NewBinance(BinanceOptions{BaseURL: srv.URL}, zerolog.Nop())
	out, err := client.FetchAllTickers(context.Background(), []string{"BTC/USDT", "ETH/USDT"})
	if err != nil {
		t.Fatalf("FetchAllTickers: %v", err)
	}
	if _, ok := out["BTC/USDT"]; ok {
		t.Fatal("unparsable ticker must be skipped, not returned")
	}
	if _, ok := out["ETH/USDT"]; !ok {
		t.Fatal("good ticker lost alongside the bad one")
	}
}

func TestBinanceFetchFundingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != binancePremiumPath {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("queried symbol = %q, want BTCUSDT", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastFundingRate":"0.00010000","nextFundingTime":1756684800000}`))
	}))
	defer srv.Close()

	client := NewBinance(BinanceOptions{FuturesURL: srv.URL}, zerolog.Nop())
	sample, err := client.FetchFundingRate(context.Background(), "BTC/USDT:USDT")
	if err != nil {
		t.Fatalf("FetchFundingRate: %v", err)
	}
	if !sample.Rate.Equal(decimal.RequireFromString("0.0001")) {
		t.Fatalf("rate = %s", sample.Rate)
	}
	if sample.NextFundingAt == nil {
		t.Fatal("next funding time missing")
	}
}

func TestBinanceFetchTickerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewBinance(BinanceOptions{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := client.FetchTicker(context.Background(), "NOPE/USDT"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestBinanceNativeSymbols(t *testing.T) {
	cases := map[string]string{
		"BTC/USDT":      "BTCUSDT",
		"BTC/USDT:USDT": "BTCUSDT",
		"eth/usdt":      "ETHUSDT",
	}
	for in, want := range cases {
		if got := binanceNative(in); got != want {
			t.Errorf("binanceNative(%q) = %q, want %q", in, got, want)
		}
	}
}
