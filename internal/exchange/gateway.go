package exchange

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// Gateway fans requests out across every configured venue and merges
// the results. It enforces the best-effort contract: a degraded or
// unreachable exchange contributes an empty map and never blocks or
// fails the cycle. Retries, if any, belong to the venue clients.
type Gateway struct {
	clients []Client
	logger  zerolog.Logger
}

// NewGateway wires a gateway over the given venue clients.
func NewGateway(clients []Client, logger zerolog.Logger) *Gateway {
	return &Gateway{
		clients: clients,
		logger:  logger.With().Str("component", "gateway").Logger(),
	}
}

// Names lists the wrapped venues in construction order.
func (g *Gateway) Names() []string {
	names := make([]string, 0, len(g.clients))
	for _, c := range g.clients {
		names = append(names, c.Name())
	}
	return names
}

// Health reports per-venue initialisation ("client constructed"), not
// live reachability.
func (g *Gateway) Health() map[string]bool {
	health := make(map[string]bool, len(g.clients))
	for _, c := range g.clients {
		health[c.Name()] = c != nil
	}
	return health
}

// FetchAll gathers ticker samples for the symbols from every venue
// concurrently, keyed exchange -> symbol. Every venue appears in the
// result; a failed venue maps to an empty entry.
func (g *Gateway) FetchAll(ctx context.Context, symbols []string) map[string]map[string]domain.TickerSample {
	out := make(map[string]map[string]domain.TickerSample, len(g.clients))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range g.clients {
		eg.Go(func() error {
			samples, err := c.FetchAllTickers(ctx, symbols)
			if err != nil {
				g.logger.Warn().Str("exchange", c.Name()).Err(err).Msg("ticker fetch failed; continuing without venue")
				samples = map[string]domain.TickerSample{}
			}
			mu.Lock()
			out[c.Name()] = samples
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// FetchFunding gathers funding samples for the perpetual symbols from
// every venue concurrently. Per-symbol failures (symbol not listed on
// the venue, transient error) leave that symbol absent.
func (g *Gateway) FetchFunding(ctx context.Context, symbols []string) map[string]map[string]domain.FundingSample {
	perp := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if domain.DetectMarketType(symbol) == domain.MarketPerp {
			perp = append(perp, symbol)
		}
	}

	out := make(map[string]map[string]domain.FundingSample, len(g.clients))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range g.clients {
		eg.Go(func() error {
			rates := make(map[string]domain.FundingSample, len(perp))
			for _, symbol := range perp {
				sample, err := c.FetchFundingRate(ctx, symbol)
				if err != nil {
					g.logger.Debug().Str("exchange", c.Name()).Str("symbol", symbol).Err(err).Msg("funding fetch skipped")
					continue
				}
				rates[symbol] = sample
			}
			mu.Lock()
			out[c.Name()] = rates
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}
