package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"coinsentry/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Market    MarketConfig    `mapstructure:"market"`
	Onchain   OnchainConfig   `mapstructure:"onchain"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StateConfig selects and locates the persistent state backend.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the postgres backend.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// FeedsConfig lists RSS sources and the title keyword filter.
type FeedsConfig struct {
	URLs           []string      `mapstructure:"urls"`
	Keywords       []string      `mapstructure:"keywords"`
	MaxPerFeed     int           `mapstructure:"max_per_feed"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MarketConfig captures the spot price API connectivity.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Assets         []string      `mapstructure:"assets"`
	VsCurrency     string        `mapstructure:"vs_currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// OnchainConfig covers the optional Chainlink aggregator price source.
type OnchainConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	RPCURL         string            `mapstructure:"rpc_url"`
	Aggregators    map[string]string `mapstructure:"aggregators"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// DetectorConfig defines the short and long window alert rules.
type DetectorConfig struct {
	ShortWindow       time.Duration `mapstructure:"short_window"`
	ShortThresholdPct float64       `mapstructure:"short_threshold_pct"`
	LongWindow        time.Duration `mapstructure:"long_window"`
	LongThresholdPct  float64       `mapstructure:"long_threshold_pct"`
}

// ScrapeConfig tunes article summary extraction.
type ScrapeConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxChars       int           `mapstructure:"max_chars"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TelegramConfig describes the notification channel.
type TelegramConfig struct {
	BotToken  string        `mapstructure:"bot_token"`
	ChatID    string        `mapstructure:"chat_id"`
	APIBase   string        `mapstructure:"api_base"`
	SendDelay time.Duration `mapstructure:"send_delay"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig governs the daemon-mode pass cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COINSENTRY")
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
	v.SetDefault("app.name", "coinsentry")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.dir", "data")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("feeds.max_per_feed", 40)
	v.SetDefault("feeds.request_timeout", "20s")
	v.SetDefault("feeds.user_agent", "coinsentry/1.0")
	v.SetDefault("feeds.keywords", []string{
		"Bitcoin", "BTC", "Ethereum", "ETH", "XRP", "SOL", "DOGE", "ADA",
		"ETF", "SEC",
	})

	v.SetDefault("market.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.vs_currency", "usd")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "coinsentry/1.0")

	v.SetDefault("onchain.enabled", false)
	v.SetDefault("onchain.request_timeout", "10s")

	v.SetDefault("detector.short_window", "4h")
	v.SetDefault("detector.short_threshold_pct", 5.0)
	v.SetDefault("detector.long_window", "24h")
	v.SetDefault("detector.long_threshold_pct", 10.0)

	v.SetDefault("scrape.enabled", true)
	v.SetDefault("scrape.max_chars", 420)
	v.SetDefault("scrape.request_timeout", "20s")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (coinsentry)")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.send_delay", "1s")
	v.SetDefault("telegram.timeout", "20s")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)
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
// Missing Telegram credentials fail here, before any network I/O happens.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	switch c.State.Backend {
	case "file":
		if c.State.Dir == "" {
			return fmt.Errorf("state.dir is required for the file backend")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("state.backend must be file or postgres, got %q", c.State.Backend)
	}
	if c.Detector.ShortWindow <= 0 || c.Detector.LongWindow <= 0 {
		return fmt.Errorf("detector windows must be greater than zero")
	}
	if c.Detector.ShortThresholdPct < 0 || c.Detector.LongThresholdPct < 0 {
		return fmt.Errorf("detector thresholds cannot be negative")
	}
	if c.Onchain.Enabled && c.Onchain.RPCURL == "" {
		return fmt.Errorf("onchain.rpc_url is required when onchain is enabled")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
