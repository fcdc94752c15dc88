// Package service exposes the operations the API surface is built
// from: cached route sets, raw ticker/funding passthrough, health,
// forced refresh, and cache management.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/aggregator"
	"github.com/createMonster/arbradar-sub000/internal/cache"
	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// Cache coordinator keys. The processed result is the unit of
// caching; ticker and funding passthroughs are cached views with
// their own TTLs.
const (
	keyProcessed = "processed"
	keyTickers   = "tickers"
	keyFunding   = "funding"
)

// TTLs carries the independently tunable cache lifetimes.
type TTLs struct {
	Processed time.Duration
	Tickers   time.Duration
	Funding   time.Duration
}

// GatewayStatus is the health slice of the exchange gateway.
type GatewayStatus interface {
	Health() map[string]bool
}

// Service ties the cache coordinator to the spread aggregator.
type Service struct {
	cache   *cache.Coordinator
	agg     *aggregator.Aggregator
	gateway GatewayStatus
	ttls    TTLs
	logger  zerolog.Logger

	startedAt time.Time
	listeners []func(domain.AggregationResult)
}

// New constructs the service.
func New(c *cache.Coordinator, agg *aggregator.Aggregator, gateway GatewayStatus, ttls TTLs, logger zerolog.Logger) *Service {
	return &Service{
		cache:     c,
		agg:       agg,
		gateway:   gateway,
		ttls:      ttls,
		logger:    logger.With().Str("component", "service").Logger(),
		startedAt: time.Now(),
	}
}

// OnRefresh registers a callback invoked after every fresh (non-cached)
// aggregation. Register before serving traffic; registration is not
// synchronised.
func (s *Service) OnRefresh(fn func(domain.AggregationResult)) {
	s.listeners = append(s.listeners, fn)
}

// data returns the processed aggregation result, honouring the cache
// TTL unless force is set. Concurrent callers share one in-flight
// cycle either way.
func (s *Service) data(ctx context.Context, force bool) (domain.AggregationResult, bool, error) {
	v, cached, err := s.cache.GetOrCompute(ctx, keyProcessed, s.ttls.Processed, force, func(ctx context.Context) (any, error) {
		return s.agg.RunCycle(ctx), nil
	})
	if err != nil {
		return domain.AggregationResult{}, false, err
	}
	result, ok := v.(domain.AggregationResult)
	if !ok {
		return domain.AggregationResult{}, false, fmt.Errorf("unexpected cache payload %T", v)
	}
	if !cached {
		for _, fn := range s.listeners {
			fn(result)
		}
	}
	return result, cached, nil
}

// RouteFilters narrow the route-set response.
type RouteFilters struct {
	MinSpread *decimal.Decimal
	MinVolume *decimal.Decimal
	Exchanges []string
	Search    string
	Limit     int
}

// RouteStats summarise the filtered response.
type RouteStats struct {
	TotalSymbols int              `json:"totalSymbols"`
	TotalRoutes  int              `json:"totalRoutes"`
	BestNetPct   *decimal.Decimal `json:"bestNetProfitPercentage,omitempty"`
}

// RoutesResult is the payload behind the routes endpoint.
type RoutesResult struct {
	Data      []domain.SymbolRouteSet
	Total     int
	Count     int
	Cached    bool
	Stats     RouteStats
	Timestamp time.Time
}

// GetRoutes returns the ranked route sets after applying the filters.
// forceRefresh bypasses the cache TTL but still respects single-flight.
func (s *Service) GetRoutes(ctx context.Context, f RouteFilters, force bool) (RoutesResult, error) {
	result, cached, err := s.data(ctx, force)
	if err != nil {
		return RoutesResult{}, err
	}

	filtered := applyFilters(result.RouteSets, f)
	total := len(filtered)
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}

	stats := RouteStats{TotalSymbols: total}
	for _, set := range filtered {
		stats.TotalRoutes += set.RouteCount
	}
	if len(filtered) > 0 && filtered[0].BestRoute != nil {
		best := filtered[0].BestRoute.NetProfitPct
		stats.BestNetPct = &best
	}

	return RoutesResult{
		Data:      filtered,
		Total:     total,
		Count:     len(filtered),
		Cached:    cached,
		Stats:     stats,
		Timestamp: result.Timestamp,
	}, nil
}

// TickersResult is the payload behind the ticker passthrough endpoint.
type TickersResult struct {
	Data      map[string]map[string]domain.TickerSample
	Cached    bool
	Timestamp time.Time
}

// GetTickers returns the last cycle's raw ticker samples, optionally
// narrowed to one exchange. The ticker view carries its own TTL.
func (s *Service) GetTickers(ctx context.Context, exchangeName string, force bool) (TickersResult, error) {
	v, cached, err := s.cache.GetOrCompute(ctx, keyTickers, s.ttls.Tickers, force, func(ctx context.Context) (any, error) {
		result, _, err := s.data(ctx, force)
		if err != nil {
			return nil, err
		}
		return TickersResult{Data: result.Tickers, Timestamp: result.Timestamp}, nil
	})
	if err != nil {
		return TickersResult{}, err
	}
	result, ok := v.(TickersResult)
	if !ok {
		return TickersResult{}, fmt.Errorf("unexpected cache payload %T", v)
	}
	result.Cached = cached
	if exchangeName != "" {
		narrowed := make(map[string]map[string]domain.TickerSample, 1)
		if samples, ok := result.Data[exchangeName]; ok {
			narrowed[exchangeName] = samples
		}
		result.Data = narrowed
	}
	return result, nil
}

// FundingResult is the payload behind the funding passthrough endpoint.
type FundingResult struct {
	Data      map[string]map[string]domain.FundingSample
	Cached    bool
	Timestamp time.Time
}

// GetFundingRates returns the last cycle's raw funding samples,
// optionally narrowed to one exchange.
func (s *Service) GetFundingRates(ctx context.Context, exchangeName string, force bool) (FundingResult, error) {
	v, cached, err := s.cache.GetOrCompute(ctx, keyFunding, s.ttls.Funding, force, func(ctx context.Context) (any, error) {
		result, _, err := s.data(ctx, force)
		if err != nil {
			return nil, err
		}
		return FundingResult{Data: result.Funding, Timestamp: result.Timestamp}, nil
	})
	if err != nil {
		return FundingResult{}, err
	}
	result, ok := v.(FundingResult)
	if !ok {
		return FundingResult{}, fmt.Errorf("unexpected cache payload %T", v)
	}
	result.Cached = cached
	if exchangeName != "" {
		narrowed := make(map[string]map[string]domain.FundingSample, 1)
		if samples, ok := result.Data[exchangeName]; ok {
			narrowed[exchangeName] = samples
		}
		result.Data = narrowed
	}
	return result, nil
}

// HealthInfo is the health endpoint payload.
type HealthInfo struct {
	Exchanges     map[string]bool `json:"exchanges"`
	Cache         cache.Stats     `json:"cache"`
	UptimeSeconds float64         `json:"uptimeSeconds"`
}

// Health reports gateway initialisation, cache stats, and uptime.
func (s *Service) Health() HealthInfo {
	return HealthInfo{
		Exchanges:     s.gateway.Health(),
		Cache:         s.cache.Stats(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
}

// ForceUpdate triggers a fresh aggregation through the cache's
// single-flight path.
func (s *Service) ForceUpdate(ctx context.Context) (domain.AggregationResult, error) {
	result, _, err := s.data(ctx, true)
	return result, err
}

// Refresh is the background scheduler hook: one forced recompute.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.ForceUpdate(ctx)
	return err
}

// ClearCache evicts every cached entry.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.logger.Info().Msg("cache cleared")
}

func applyFilters(sets []domain.SymbolRouteSet, f RouteFilters) []domain.SymbolRouteSet {
	search := strings.ToUpper(strings.TrimSpace(f.Search))
	allowed := map[string]bool{}
	for _, name := range f.Exchanges {
		allowed[strings.ToLower(strings.TrimSpace(name))] = true
	}

	out := make([]domain.SymbolRouteSet, 0, len(sets))
	for _, set := range sets {
		if search != "" && !strings.Contains(strings.ToUpper(set.Symbol), search) {
			continue
		}

		routes := set.Routes
		if len(allowed) > 0 {
			routes = filterRoutesByExchange(routes, allowed)
		}
		if f.MinSpread != nil {
			routes = filterRoutes(routes, func(r domain.Route) bool {
				return r.NetProfitPct.GreaterThanOrEqual(*f.MinSpread)
			})
		}
		if f.MinVolume != nil {
			routes = filterRoutes(routes, func(r domain.Route) bool {
				return r.MaxVolume.GreaterThanOrEqual(*f.MinVolume)
			})
		}
		if len(routes) == 0 {
			continue
		}

		if len(routes) != len(set.Routes) {
			best := routes[0]
			set.Routes = routes
			set.BestRoute = &best
			set.RouteCount = len(routes)
		}
		out = append(out, set)
	}
	return out
}

func filterRoutesByExchange(routes []domain.Route, allowed map[string]bool) []domain.Route {
	return filterRoutes(routes, func(r domain.Route) bool {
		return allowed[strings.ToLower(r.BuyExchange)] && allowed[strings.ToLower(r.SellExchange)]
	})
}

func filterRoutes(routes []domain.Route, keep func(domain.Route) bool) []domain.Route {
	out := make([]domain.Route, 0, len(routes))
	for _, r := range routes {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
