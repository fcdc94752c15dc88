// Package aggregator orchestrates one data refresh: fan out to the
// exchange gateway, group samples by symbol, gate them through the
// quality filter, compute ranked routes, and assemble the full result
// set.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/createMonster/arbradar-sub000/internal/domain"
	"github.com/createMonster/arbradar-sub000/internal/filter"
	"github.com/createMonster/arbradar-sub000/internal/routes"
)

// Gateway is the slice of the exchange gateway the aggregator needs.
type Gateway interface {
	FetchAll(ctx context.Context, symbols []string) map[string]map[string]domain.TickerSample
	FetchFunding(ctx context.Context, symbols []string) map[string]map[string]domain.FundingSample
}

// Aggregator runs aggregation cycles and remembers the last good
// result so a failed refresh degrades to stale data instead of an
// empty dashboard.
type Aggregator struct {
	gateway    Gateway
	thresholds filter.Thresholds
	routeCfg   routes.Config
	symbols    []string
	logger     zerolog.Logger

	mu       sync.Mutex
	lastGood *domain.AggregationResult
}

// New constructs an Aggregator.
func New(gateway Gateway, thresholds filter.Thresholds, routeCfg routes.Config, symbols []string, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		gateway:    gateway,
		thresholds: thresholds,
		routeCfg:   routeCfg,
		symbols:    symbols,
		logger:     logger.With().Str("component", "aggregator").Logger(),
	}
}

// RunCycle performs one full refresh. It never returns an error: an
// unexpected failure mid-cycle falls back to the previous good result
// when one exists, else to an explicit failure result with empty
// collections.
func (a *Aggregator) RunCycle(ctx context.Context) domain.AggregationResult {
	result, err := a.runCycle(ctx)
	if err == nil {
		a.mu.Lock()
		a.lastGood = &result
		a.mu.Unlock()
		return result
	}

	a.logger.Error().Err(err).Msg("aggregation cycle failed")

	a.mu.Lock()
	last := a.lastGood
	a.mu.Unlock()
	if last != nil {
		a.logger.Warn().Time("stale_since", last.Timestamp).Msg("serving previous cycle's result")
		return *last
	}
	return domain.AggregationResult{
		RouteSets: []domain.SymbolRouteSet{},
		Tickers:   map[string]map[string]domain.TickerSample{},
		Funding:   map[string]map[string]domain.FundingSample{},
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     err.Error(),
	}
}

func (a *Aggregator) runCycle(ctx context.Context) (result domain.AggregationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation panic: %v", r)
		}
	}()

	started := time.Now()

	var tickers map[string]map[string]domain.TickerSample
	var funding map[string]map[string]domain.FundingSample

	// The gateway absorbs per-venue failures itself; the two fetches
	// only run concurrently here.
	eg, fetchCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		tickers = a.gateway.FetchAll(fetchCtx, a.symbols)
		return nil
	})
	eg.Go(func() error {
		funding = a.gateway.FetchFunding(fetchCtx, a.symbols)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return domain.AggregationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.AggregationResult{}, err
	}

	snapshots := groupBySymbol(tickers, funding)

	now := time.Now().UTC()
	sets := make([]domain.SymbolRouteSet, 0, len(snapshots))
	for _, snap := range snapshots {
		// Below two samples there is nothing to spread.
		if snap.SampleCount() < 2 {
			continue
		}

		verdict := filter.Evaluate(samplesOf(snap), a.thresholds)
		if !verdict.Accepted {
			a.logger.Debug().Str("symbol", snap.Symbol).Str("reason", verdict.Reason).Msg("symbol rejected by quality filter")
			continue
		}
		if verdict.Flagged {
			a.logger.Warn().Str("symbol", snap.Symbol).Str("spread_pct", verdict.SpreadPct.String()).Msg("price dispersion above validation threshold")
		}

		kept, total := routes.Compute(snap, a.routeCfg)
		if len(kept) == 0 {
			continue
		}

		sets = append(sets, buildRouteSet(snap, kept, total, now))
	}

	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].BestRoute.NetProfitPct.GreaterThan(sets[j].BestRoute.NetProfitPct)
	})

	a.logger.Info().
		Int("symbols", len(snapshots)).
		Int("route_sets", len(sets)).
		Dur("elapsed", time.Since(started)).
		Msg("aggregation cycle complete")

	return domain.AggregationResult{
		RouteSets: sets,
		Tickers:   tickers,
		Funding:   funding,
		Timestamp: now,
		Success:   true,
	}, nil
}

// LastGood returns the most recent successful result, if any.
func (a *Aggregator) LastGood() *domain.AggregationResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastGood
}

func groupBySymbol(tickers map[string]map[string]domain.TickerSample, funding map[string]map[string]domain.FundingSample) map[string]domain.SymbolSnapshot {
	snapshots := make(map[string]domain.SymbolSnapshot)
	for exchangeName, perSymbol := range tickers {
		for symbol, sample := range perSymbol {
			snap, ok := snapshots[symbol]
			if !ok {
				snap = domain.SymbolSnapshot{
					Symbol:     symbol,
					MarketType: domain.DetectMarketType(symbol),
					Samples:    make(map[string]domain.TickerSample),
					Funding:    make(map[string]domain.FundingSample),
				}
			}
			snap.Samples[exchangeName] = sample
			snapshots[symbol] = snap
		}
	}
	for exchangeName, perSymbol := range funding {
		for symbol, sample := range perSymbol {
			snap, ok := snapshots[symbol]
			if !ok {
				// Funding without a ticker gives nothing to route.
				continue
			}
			snap.Funding[exchangeName] = sample
			snapshots[symbol] = snap
		}
	}
	return snapshots
}

func samplesOf(snap domain.SymbolSnapshot) []domain.TickerSample {
	return snap.SortedSamples()
}

func buildRouteSet(snap domain.SymbolSnapshot, kept []domain.Route, total int, now time.Time) domain.SymbolRouteSet {
	quotes := make(map[string]domain.ExchangeQuote, len(snap.Samples))
	for exchangeName, sample := range snap.Samples {
		quote := domain.ExchangeQuote{Price: sample.Price, Volume: sample.Volume}
		if f, ok := snap.Funding[exchangeName]; ok {
			rate := f.Rate
			quote.FundingRate = &rate
		}
		quotes[exchangeName] = quote
	}

	best := kept[0]
	return domain.SymbolRouteSet{
		Symbol:         snap.Symbol,
		MarketType:     snap.MarketType,
		Exchanges:      quotes,
		Routes:         kept,
		BestRoute:      &best,
		RouteCount:     len(kept),
		TotalAvailable: total,
		LastUpdated:    now,
	}
}
