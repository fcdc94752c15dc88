package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/createMonster/arbradar-sub000/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Routes    RoutesConfig    `mapstructure:"routes"`
	Exchanges ExchangesConfig `mapstructure:"exchanges"`
	Symbols   []string        `mapstructure:"symbols"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP API listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig tunes the cache coordinator. TTLs are independently
// configurable per payload; zero means "never actually cache".
type CacheConfig struct {
	RoutesTTL     time.Duration `mapstructure:"routes_ttl"`
	TickersTTL    time.Duration `mapstructure:"tickers_ttl"`
	FundingTTL    time.Duration `mapstructure:"funding_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RefreshConfig governs the background aggregation loop.
type RefreshConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// FilterConfig holds the data-quality thresholds applied before route
// computation. Volumes are quote-currency notionals.
type FilterConfig struct {
	MinExchangeCount         int     `mapstructure:"min_exchange_count"`
	MinVolumePerExchange     float64 `mapstructure:"min_volume_per_exchange"`
	MinTotalVolume           float64 `mapstructure:"min_total_volume"`
	MaxVolumeRatio           float64 `mapstructure:"max_volume_ratio"`
	MaxRealisticSpread       float64 `mapstructure:"max_realistic_spread"`
	PriceValidationThreshold float64 `mapstructure:"price_validation_threshold"`
}

// RoutesConfig parameterises the route engine.
type RoutesConfig struct {
	FeeRate      float64 `mapstructure:"fee_rate"`
	TopK         int     `mapstructure:"top_k"`
	MinSpreadPct float64 `mapstructure:"min_spread_pct"`
}

// ExchangesConfig carries one entry per supported venue.
type ExchangesConfig struct {
	Binance ExchangeConfig `mapstructure:"binance"`
	OKX     ExchangeConfig `mapstructure:"okx"`
	Bybit   ExchangeConfig `mapstructure:"bybit"`
	Gate    ExchangeConfig `mapstructure:"gate"`
	Uniswap UniswapConfig  `mapstructure:"uniswap"`
}

// ExchangeConfig describes one REST venue.
type ExchangeConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	FuturesURL     string        `mapstructure:"futures_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// UniswapConfig describes the on-chain venue.
type UniswapConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	RPCURL         string            `mapstructure:"rpc_url"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	Pools          map[string]string `mapstructure:"pools"`          // symbol -> pool address
	BaseDecimals   map[string]int    `mapstructure:"base_decimals"`  // symbol -> token0 decimals
	QuoteDecimals  map[string]int    `mapstructure:"quote_decimals"` // symbol -> token1 decimals
	DepthUSD       float64           `mapstructure:"depth_usd"`      // volume proxy reported per pool
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRoutes int `mapstructure:"max_routes"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbradar")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("cache.routes_ttl", "30s")
	v.SetDefault("cache.tickers_ttl", "10s")
	v.SetDefault("cache.funding_ttl", "60s")
	v.SetDefault("cache.sweep_interval", "60s")

	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("filter.min_exchange_count", 2)
	v.SetDefault("filter.min_volume_per_exchange", 10000.0)
	v.SetDefault("filter.min_total_volume", 50000.0)
	v.SetDefault("filter.max_volume_ratio", 50.0)
	v.SetDefault("filter.max_realistic_spread", 50.0)
	v.SetDefault("filter.price_validation_threshold", 100.0)

	v.SetDefault("routes.fee_rate", 0.002)
	v.SetDefault("routes.top_k", 5)
	v.SetDefault("routes.min_spread_pct", 0.01)

	v.SetDefault("exchanges.binance.enabled", true)
	v.SetDefault("exchanges.binance.base_url", "https://api.binance.com")
	v.SetDefault("exchanges.binance.futures_url", "https://fapi.binance.com")
	v.SetDefault("exchanges.binance.request_timeout", "10s")

	v.SetDefault("exchanges.okx.enabled", true)
	v.SetDefault("exchanges.okx.base_url", "https://www.okx.com")
	v.SetDefault("exchanges.okx.request_timeout", "10s")

	v.SetDefault("exchanges.bybit.enabled", true)
	v.SetDefault("exchanges.bybit.base_url", "https://api.bybit.com")
	v.SetDefault("exchanges.bybit.request_timeout", "10s")

	v.SetDefault("exchanges.gate.enabled", true)
	v.SetDefault("exchanges.gate.base_url", "https://api.gateio.ws")
	v.SetDefault("exchanges.gate.request_timeout", "10s")

	v.SetDefault("exchanges.uniswap.enabled", false)
	v.SetDefault("exchanges.uniswap.request_timeout", "10s")
	v.SetDefault("exchanges.uniswap.depth_usd", 100000.0)

	v.SetDefault("symbols", []string{
		"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT",
		"XRP/USDT", "DOGE/USDT", "ADA/USDT", "LTC/USDT",
	})

	v.SetDefault("export.max_routes", 50)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be greater than zero")
	}
	if c.Cache.RoutesTTL < 0 || c.Cache.TickersTTL < 0 || c.Cache.FundingTTL < 0 {
		return fmt.Errorf("cache TTLs cannot be negative")
	}
	if c.Filter.MinExchangeCount < 2 {
		return fmt.Errorf("filter.min_exchange_count must be at least 2")
	}
	if c.Filter.MaxVolumeRatio <= 0 {
		return fmt.Errorf("filter.max_volume_ratio must be greater than zero")
	}
	if c.Filter.MaxRealisticSpread <= 0 {
		return fmt.Errorf("filter.max_realistic_spread must be greater than zero")
	}
	if c.Routes.FeeRate < 0 {
		return fmt.Errorf("routes.fee_rate cannot be negative")
	}
	if c.Routes.TopK <= 0 {
		return fmt.Errorf("routes.top_k must be greater than zero")
	}
	if c.Exchanges.Uniswap.Enabled {
		if c.Exchanges.Uniswap.RPCURL == "" {
			return fmt.Errorf("exchanges.uniswap.rpc_url required when uniswap is enabled")
		}
		if len(c.Exchanges.Uniswap.Pools) == 0 {
			return fmt.Errorf("exchanges.uniswap.pools must list at least one pool")
		}
	}
	if c.Export.MaxRoutes <= 0 {
		return fmt.Errorf("export.max_routes must be greater than zero")
	}
	return nil
}

// EnabledExchanges reports the venue names switched on in configuration.
func (c *Config) EnabledExchanges() []string {
	names := make([]string, 0, 5)
	if c.Exchanges.Binance.Enabled {
		names = append(names, "binance")
	}
	if c.Exchanges.OKX.Enabled {
		names = append(names, "okx")
	}
	if c.Exchanges.Bybit.Enabled {
		names = append(names, "bybit")
	}
	if c.Exchanges.Gate.Enabled {
		names = append(names, "gate")
	}
	if c.Exchanges.Uniswap.Enabled {
		names = append(names, "uniswap")
	}
	return names
}
