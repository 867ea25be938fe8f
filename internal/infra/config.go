package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"mm_bot/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	FeedModeREST      = "rest"
	FeedModeWebsocket = "websocket"
)

// Config holds every setting of the bot.
// Compiled defaults come first, then the YAML file, then .env / environment.
type Config struct {
	App struct {
		Name      string `yaml:"name"`
		Version   string `yaml:"version"`
		PprofAddr string `yaml:"pprof_addr"` // empty disables pprof
	} `yaml:"app"`

	Market struct {
		BaseAsset       string                     `yaml:"base_asset"`
		CounterAsset    string                     `yaml:"counter_asset"`
		InitialBalances map[string]decimal.Decimal `yaml:"initial_balances"`
	} `yaml:"market"`

	Feed struct {
		Mode      string `yaml:"mode"` // "rest" or "websocket"
		RestURL   string `yaml:"rest_url"`
		WSURL     string `yaml:"ws_url"`
		Symbol    string `yaml:"symbol"`
		Precision string `yaml:"precision"`
		TimeoutMS int    `yaml:"timeout_ms"`
		Retries   int    `yaml:"retries"`
	} `yaml:"feed"`

	Quoting struct {
		RandomPercent       float64 `yaml:"random_percent"`
		NumOrders           int     `yaml:"num_orders"`
		MinimumAmount       float64 `yaml:"minimum_amount"`
		MaximumAmount       float64 `yaml:"maximum_amount"`
		ReplenishOrders     bool    `yaml:"replenish_orders"`
		CancelUnfilled      bool    `yaml:"cancel_unfilled"`
		OrderbookIntervalMS int     `yaml:"orderbook_interval_ms"`
		BalancesIntervalMS  int     `yaml:"balances_interval_ms"`
	} `yaml:"quoting"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "mm_bot"
	cfg.App.Version = "0.1.0"

	cfg.Market.BaseAsset = "ETH"
	cfg.Market.CounterAsset = "USD"
	cfg.Market.InitialBalances = defaultBalances()

	cfg.Feed.Mode = FeedModeREST
	cfg.Feed.RestURL = "https://api.deversifi.com/bfx/v2/book"
	cfg.Feed.WSURL = "wss://api-pub.bitfinex.com/ws/2"
	cfg.Feed.Symbol = "tETHUSD"
	cfg.Feed.Precision = "P0"
	cfg.Feed.TimeoutMS = 4000
	cfg.Feed.Retries = 1

	cfg.Quoting.RandomPercent = 5
	cfg.Quoting.NumOrders = domain.DefaultNumOrders
	cfg.Quoting.MinimumAmount = 0.1
	cfg.Quoting.MaximumAmount = 2.0
	cfg.Quoting.ReplenishOrders = true
	cfg.Quoting.CancelUnfilled = true
	cfg.Quoting.OrderbookIntervalMS = 5000
	cfg.Quoting.BalancesIntervalMS = 30000

	cfg.Storage.Path = "data/fills.db"

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

func defaultBalances() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"ETH": decimal.NewFromInt(10),
		"USD": decimal.NewFromInt(2000),
	}
}

// LoadConfig reads the YAML file at path on top of DefaultConfig.
// A missing file is not an error: defaults are used.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("Using default configuration",
			slog.Any("error", fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)))
	case err != nil:
		return nil, err
	default:
		// A map present in the file replaces the default map instead of merging into it.
		cfg.Market.InitialBalances = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		if cfg.Market.InitialBalances == nil {
			cfg.Market.InitialBalances = defaultBalances()
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &domain.ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
	}

	// Market
	if c.Market.BaseAsset == "" || c.Market.CounterAsset == "" {
		return invalid("market", "base and counter assets are required")
	}
	if c.Market.BaseAsset == c.Market.CounterAsset {
		return invalid("market", "base and counter assets must differ: %s", c.Market.BaseAsset)
	}
	for _, asset := range []string{c.Market.BaseAsset, c.Market.CounterAsset} {
		if _, ok := c.Market.InitialBalances[asset]; !ok {
			return invalid("market.initial_balances", "missing initial balance for %s", asset)
		}
	}

	// Feed
	switch c.Feed.Mode {
	case FeedModeREST:
		if !hasPrefix(c.Feed.RestURL, "http://") && !hasPrefix(c.Feed.RestURL, "https://") {
			return invalid("feed.rest_url", "invalid REST URL: %s", c.Feed.RestURL)
		}
	case FeedModeWebsocket:
		if !hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://") {
			return invalid("feed.ws_url", "invalid WS URL: %s", c.Feed.WSURL)
		}
	default:
		return invalid("feed.mode", "unknown feed mode %q", c.Feed.Mode)
	}
	if c.Feed.Symbol == "" {
		return invalid("feed.symbol", "symbol is required")
	}
	if c.Feed.TimeoutMS <= 0 {
		return invalid("feed.timeout_ms", "timeout must be positive")
	}
	if c.Feed.Retries < 0 {
		return invalid("feed.retries", "retries must not be negative")
	}

	// Quoting
	q := c.Quoting
	if q.RandomPercent < 0 || q.RandomPercent >= 100 {
		return invalid("quoting.random_percent", "must be in [0, 100), got %v", q.RandomPercent)
	}
	if q.NumOrders <= 0 {
		return invalid("quoting.num_orders", "must be positive, got %d", q.NumOrders)
	}
	if q.MinimumAmount <= 0 || q.MaximumAmount <= q.MinimumAmount {
		return invalid("quoting.minimum_amount", "need 0 < minimum < maximum, got [%v, %v)", q.MinimumAmount, q.MaximumAmount)
	}
	if q.OrderbookIntervalMS <= 0 || q.BalancesIntervalMS <= 0 {
		return invalid("quoting", "intervals must be positive")
	}

	// Storage
	if c.Storage.Enabled && c.Storage.Path == "" {
		return invalid("storage.path", "path is required when storage is enabled")
	}

	return nil
}

// OrderbookInterval is the minimum delay between two quoting cycles.
func (c *Config) OrderbookInterval() time.Duration {
	return time.Duration(c.Quoting.OrderbookIntervalMS) * time.Millisecond
}

// BalancesInterval is the balance display period.
func (c *Config) BalancesInterval() time.Duration {
	return time.Duration(c.Quoting.BalancesIntervalMS) * time.Millisecond
}

// FetchTimeout bounds one snapshot fetch, retries included.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutMS) * time.Millisecond
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if mode := os.Getenv("MM_FEED_MODE"); mode != "" {
		cfg.Feed.Mode = mode
	}
	if url := os.Getenv("MM_FEED_REST_URL"); url != "" {
		cfg.Feed.RestURL = url
	}
	if url := os.Getenv("MM_FEED_WS_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if level := os.Getenv("MM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if v, err := strconv.ParseBool(os.Getenv("MM_CANCEL_UNFILLED")); err == nil {
		cfg.Quoting.CancelUnfilled = v
	}
	if v, err := strconv.ParseBool(os.Getenv("MM_REPLENISH_ORDERS")); err == nil {
		cfg.Quoting.ReplenishOrders = v
	}
	if path := os.Getenv("MM_STORAGE_PATH"); path != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.Path = path
	}
}
