package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/createMonster/arbradar-sub000/internal/aggregator"
	"github.com/createMonster/arbradar-sub000/internal/cache"
	"github.com/createMonster/arbradar-sub000/internal/config"
	"github.com/createMonster/arbradar-sub000/internal/exchange"
	"github.com/createMonster/arbradar-sub000/internal/filter"
	"github.com/createMonster/arbradar-sub000/internal/routes"
	"github.com/createMonster/arbradar-sub000/internal/scheduler"
	"github.com/createMonster/arbradar-sub000/internal/server"
	"github.com/createMonster/arbradar-sub000/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI
// commands. Everything is constructed explicitly here; there are no
// package-level singletons.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newGateway() *exchange.Gateway {
	ex := a.Config.Exchanges
	clients := make([]exchange.Client, 0, 5)

	if ex.Binance.Enabled {
		clients = append(clients, exchange.NewBinance(exchange.BinanceOptions{
			BaseURL:    ex.Binance.BaseURL,
			FuturesURL: ex.Binance.FuturesURL,
			Timeout:    ex.Binance.RequestTimeout,
			UserAgent:  ex.Binance.UserAgent,
		}, a.Logger))
	}
	if ex.OKX.Enabled {
		clients = append(clients, exchange.NewOKX(exchange.OKXOptions{
			BaseURL:   ex.OKX.BaseURL,
			Timeout:   ex.OKX.RequestTimeout,
			UserAgent: ex.OKX.UserAgent,
		}, a.Logger))
	}
	if ex.Bybit.Enabled {
		clients = append(clients, exchange.NewBybit(exchange.BybitOptions{
			BaseURL:   ex.Bybit.BaseURL,
			Timeout:   ex.Bybit.RequestTimeout,
			UserAgent: ex.Bybit.UserAgent,
		}, a.Logger))
	}
	if ex.Gate.Enabled {
		clients = append(clients, exchange.NewGate(exchange.GateOptions{
			BaseURL:   ex.Gate.BaseURL,
			Timeout:   ex.Gate.RequestTimeout,
			UserAgent: ex.Gate.UserAgent,
		}, a.Logger))
	}
	if ex.Uniswap.Enabled {
		clients = append(clients, exchange.NewUniswap(uniswapOptions(ex.Uniswap), a.Logger))
	}

	return exchange.NewGateway(clients, a.Logger)
}

func uniswapOptions(cfg config.UniswapConfig) exchange.UniswapOptions {
	pools := make(map[string]exchange.UniswapPool, len(cfg.Pools))
	for symbol, address := range cfg.Pools {
		pool := exchange.UniswapPool{Address: address, BaseDecimals: 18, QuoteDecimals: 6}
		if d, ok := cfg.BaseDecimals[symbol]; ok {
			pool.BaseDecimals = d
		}
		if d, ok := cfg.QuoteDecimals[symbol]; ok {
			pool.QuoteDecimals = d
		}
		pools[symbol] = pool
	}
	return exchange.UniswapOptions{
		RPCURL:   cfg.RPCURL,
		Timeout:  cfg.RequestTimeout,
		Pools:    pools,
		DepthUSD: decimal.NewFromFloat(cfg.DepthUSD),
	}
}

func (a *App) thresholds() filter.Thresholds {
	f := a.Config.Filter
	return filter.Thresholds{
		MinExchangeCount:         f.MinExchangeCount,
		MinVolumePerExchange:     decimal.NewFromFloat(f.MinVolumePerExchange),
		MinTotalVolume:           decimal.NewFromFloat(f.MinTotalVolume),
		MaxVolumeRatio:           decimal.NewFromFloat(f.MaxVolumeRatio),
		MaxRealisticSpread:       decimal.NewFromFloat(f.MaxRealisticSpread),
		PriceValidationThreshold: decimal.NewFromFloat(f.PriceValidationThreshold),
	}
}

func (a *App) routeConfig() routes.Config {
	r := a.Config.Routes
	return routes.Config{
		FeeRate:      decimal.NewFromFloat(r.FeeRate),
		TopK:         r.TopK,
		MinSpreadPct: decimal.NewFromFloat(r.MinSpreadPct),
	}
}

func (a *App) newService() (*service.Service, *cache.Coordinator) {
	gateway := a.newGateway()
	agg := aggregator.New(gateway, a.thresholds(), a.routeConfig(), a.Config.Symbols, a.Logger)
	coordinator := cache.New(a.Config.Cache.SweepInterval, a.Logger)
	svc := service.New(coordinator, agg, gateway, service.TTLs{
		Processed: a.Config.Cache.RoutesTTL,
		Tickers:   a.Config.Cache.TickersTTL,
		Funding:   a.Config.Cache.FundingTTL,
	}, a.Logger)
	return svc, coordinator
}

// Run executes the long-running API server with background refresh.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, coordinator := a.newService()
	defer coordinator.Close()

	srv := server.New(a.Config.Server, svc, a.Logger)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Run(ctx)
	})
	if a.Config.Refresh.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:       a.Config.Refresh.Interval,
			StartupDelay:   a.Config.Refresh.StartupDelay,
			RunImmediately: true,
		}, a.Logger)
		eg.Go(func() error {
			return sched.Run(ctx, svc.Refresh)
		})
	}

	a.Logger.Info().Strs("exchanges", a.Config.EnabledExchanges()).Msg("starting arbitrage radar")
	err := eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("arbitrage radar stopped")
	return nil
}
