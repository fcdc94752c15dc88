package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/aggregator"
	"github.com/createMonster/arbradar-sub000/internal/cache"
	"github.com/createMonster/arbradar-sub000/internal/domain"
	"github.com/createMonster/arbradar-sub000/internal/filter"
	"github.com/createMonster/arbradar-sub000/internal/routes"
)

type countingGateway struct {
	calls   atomic.Int64
	tickers map[string]map[string]domain.TickerSample
}

func (g *countingGateway) FetchAll(ctx context.Context, symbols []string) map[string]map[string]domain.TickerSample {
	g.calls.Add(1)
	return g.tickers
}

func (g *countingGateway) FetchFunding(ctx context.Context, symbols []string) map[string]map[string]domain.FundingSample {
	return map[string]map[string]domain.FundingSample{}
}

func (g *countingGateway) Health() map[string]bool {
	return map[string]bool{"binance": true, "okx": true}
}

func sample(exchange, symbol string, price, volume float64) domain.TickerSample {
	return domain.TickerSample{
		Symbol:   symbol,
		Exchange: exchange,
		Price:    decimal.NewFromFloat(price),
		Volume:   decimal.NewFromFloat(volume),
	}
}

func twoVenueGateway() *countingGateway {
	return &countingGateway{tickers: map[string]map[string]domain.TickerSample{
		"binance": {
			"BTC/USDT": sample("binance", "BTC/USDT", 100, 80_000),
			"ETH/USDT": sample("binance", "ETH/USDT", 10, 200_000),
		},
		"okx": {
			"BTC/USDT": sample("okx", "BTC/USDT", 101, 90_000),
			"ETH/USDT": sample("okx", "ETH/USDT", 10.5, 150_000),
		},
	}}
}

func newTestService(t *testing.T, gw *countingGateway, ttls TTLs) *Service {
	t.Helper()
	coordinator := cache.New(time.Minute, zerolog.Nop())
	t.Cleanup(coordinator.Close)

	agg := aggregator.New(gw, filter.DefaultThresholds(), routes.DefaultConfig(), []string{"BTC/USDT", "ETH/USDT"}, zerolog.Nop())
	return New(coordinator, agg, gw, ttls, zerolog.Nop())
}

func TestGetRoutesCachesAcrossCalls(t *testing.T) {
	gw := twoVenueGateway()
	svc := newTestService(t, gw, TTLs{Processed: time.Minute})

	first, err := svc.GetRoutes(context.Background(), RouteFilters{}, false)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if first.Cached {
		t.Fatal("first call cannot be served from cache")
	}
	if first.Count != 2 {
		t.Fatalf("expected 2 route sets, got %d", first.Count)
	}

	second, err := svc.GetRoutes(context.Background(), RouteFilters{}, false)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if !second.Cached {
		t.Fatal("second call within the TTL must be cached")
	}
	if got := gw.calls.Load(); got != 1 {
		t.Fatalf("gateway hit %d times, want 1", got)
	}
}

func TestGetRoutesForceRefreshRecomputes(t *testing.T) {
	gw := twoVenueGateway()
	svc := newTestService(t, gw, TTLs{Processed: time.Hour})

	if _, err := svc.GetRoutes(context.Background(), RouteFilters{}, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Cached entry is nowhere near expiry; force must recompute anyway.
	forced, err := svc.GetRoutes(context.Background(), RouteFilters{}, true)
	if err != nil {
		t.Fatalf("forced GetRoutes: %v", err)
	}
	if forced.Cached {
		t.Fatal("forced refresh must not be reported as cached")
	}
	if got := gw.calls.Load(); got != 2 {
		t.Fatalf("gateway hit %d times, want 2", got)
	}
}

func TestGetRoutesAppliesFilters(t *testing.T) {
	svc := newTestService(t, twoVenueGateway(), TTLs{Processed: time.Minute})
	ctx := context.Background()

	// ETH's only route nets ~4.8%; BTC's nets ~1.8%.
	minSpread := decimal.NewFromInt(3)
	result, err := svc.GetRoutes(ctx, RouteFilters{MinSpread: &minSpread}, false)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if result.Count != 1 || result.Data[0].Symbol != "ETH/USDT" {
		t.Fatalf("min spread filter kept %v", result.Data)
	}
	if result.Stats.BestNetPct == nil || result.Stats.BestNetPct.LessThan(minSpread) {
		t.Fatalf("stats best = %v", result.Stats.BestNetPct)
	}

	search, err := svc.GetRoutes(ctx, RouteFilters{Search: "btc"}, false)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if search.Count != 1 || search.Data[0].Symbol != "BTC/USDT" {
		t.Fatalf("search filter kept %v", search.Data)
	}

	limited, err := svc.GetRoutes(ctx, RouteFilters{Limit: 1}, false)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if limited.Count != 1 || limited.Total != 2 {
		t.Fatalf("limit: count=%d total=%d", limited.Count, limited.Total)
	}
}

func TestGetTickersNarrowsToExchange(t *testing.T) {
	svc := newTestService(t, twoVenueGateway(), TTLs{Processed: time.Minute, Tickers: time.Minute})

	all, err := svc.GetTickers(context.Background(), "", false)
	if err != nil {
		t.Fatalf("GetTickers: %v", err)
	}
	if len(all.Data) != 2 {
		t.Fatalf("expected both exchanges, got %d", len(all.Data))
	}

	one, err := svc.GetTickers(context.Background(), "binance", false)
	if err != nil {
		t.Fatalf("GetTickers: %v", err)
	}
	if len(one.Data) != 1 || len(one.Data["binance"]) != 2 {
		t.Fatalf("narrowed view = %v", one.Data)
	}
	if !one.Cached {
		t.Fatal("second ticker call within the TTL must be cached")
	}

	none, err := svc.GetTickers(context.Background(), "kraken", false)
	if err != nil {
		t.Fatalf("GetTickers: %v", err)
	}
	if len(none.Data) != 0 {
		t.Fatalf("unknown exchange should yield an empty view, got %v", none.Data)
	}
}

func TestOnRefreshFiresOnlyOnFreshCycles(t *testing.T) {
	svc := newTestService(t, twoVenueGateway(), TTLs{Processed: time.Minute})

	var fired atomic.Int64
	svc.OnRefresh(func(domain.AggregationResult) { fired.Add(1) })

	ctx := context.Background()
	if _, err := svc.GetRoutes(ctx, RouteFilters{}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetRoutes(ctx, RouteFilters{}, false); err != nil {
		t.Fatal(err)
	}
	if got := fired.Load(); got != 1 {
		t.Fatalf("listener fired %d times, want 1 (cached reads must not notify)", got)
	}

	if _, err := svc.ForceUpdate(ctx); err != nil {
		t.Fatal(err)
	}
	if got := fired.Load(); got != 2 {
		t.Fatalf("listener fired %d times after forced update, want 2", got)
	}
}

func TestClearCacheForcesRecompute(t *testing.T) {
	gw := twoVenueGateway()
	svc := newTestService(t, gw, TTLs{Processed: time.Hour})
	ctx := context.Background()

	if _, err := svc.GetRoutes(ctx, RouteFilters{}, false); err != nil {
		t.Fatal(err)
	}
	svc.ClearCache()

	result, err := svc.GetRoutes(ctx, RouteFilters{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Cached {
		t.Fatal("read after clear must recompute")
	}
	if got := gw.calls.Load(); got != 2 {
		t.Fatalf("gateway hit %d times, want 2", got)
	}
}

func TestHealthReportsGatewayAndCache(t *testing.T) {
	svc := newTestService(t, twoVenueGateway(), TTLs{Processed: time.Minute})

	info := svc.Health()
	if !info.Exchanges["binance"] || !info.Exchanges["okx"] {
		t.Fatalf("exchanges = %v", info.Exchanges)
	}
	if info.UptimeSeconds < 0 {
		t.Fatalf("uptime = %f", info.UptimeSeconds)
	}
}
