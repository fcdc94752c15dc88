package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDetectMarketType(t *testing.T) {
	cases := []struct {
		symbol string
		want   MarketType
	}{
		{"BTC/USDT", MarketSpot},
		{"ETH/USDT", MarketSpot},
		{"BTC/USDT:USDT", MarketPerp},
		{"BTC-PERP", MarketPerp},
		{"btc/usdt:usdt", MarketPerp},
		{"ETH-USDT-SWAP", MarketPerp},
		{"SOLPERP", MarketPerp},
	}
	for _, tc := range cases {
		if got := DetectMarketType(tc.symbol); got != tc.want {
			t.Errorf("DetectMarketType(%q) = %s, want %s", tc.symbol, got, tc.want)
		}
	}
}

func TestBaseQuote(t *testing.T) {
	base, quote := BaseQuote("BTC/USDT")
	if base != "BTC" || quote != "USDT" {
		t.Fatalf("unexpected split: %s / %s", base, quote)
	}

	base, quote = BaseQuote("ETH/USDC:USDC")
	if base != "ETH" || quote != "USDC" {
		t.Fatalf("settlement suffix should be discarded: %s / %s", base, quote)
	}
}

func TestSortedSamplesStableOrder(t *testing.T) {
	snap := SymbolSnapshot{
		Symbol: "BTC/USDT",
		Samples: map[string]TickerSample{
			"okx":     {Exchange: "okx", Price: decimal.NewFromInt(101)},
			"binance": {Exchange: "binance", Price: decimal.NewFromInt(100)},
			"bybit":   {Exchange: "bybit", Price: decimal.NewFromInt(99)},
		},
	}

	for i := 0; i < 10; i++ {
		got := snap.SortedSamples()
		if len(got) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(got))
		}
		if got[0].Exchange != "binance" || got[1].Exchange != "bybit" || got[2].Exchange != "okx" {
			t.Fatalf("unexpected order: %s %s %s", got[0].Exchange, got[1].Exchange, got[2].Exchange)
		}
	}
}
