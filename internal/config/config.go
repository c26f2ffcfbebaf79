package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "America/New_York"
	configPathEnv   = "FILING_SCANNER_CONFIG"
	dotenvPathEnv   = "FILING_SCANNER_DOTENV"
	logLevelEnv     = "LOG_LEVEL"
	databaseDSNEnv  = "DATABASE_DSN"
	natsURLEnv      = "NATS_URL"
	secUserAgentEnv = "SEC_USER_AGENT"
	finnhubKeyEnv   = "FINNHUB_API_KEY"
	fmpKeyEnv       = "FMP_API_KEY"
	polygonKeyEnv   = "POLYGON_API_KEY"
	telegramToken   = "TELEGRAM_BOT_TOKEN"
	telegramChatID  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	SEC           SECConfig          `yaml:"sec"`
	Poller        PollerConfig       `yaml:"poller"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Entity        EntityConfig       `yaml:"entity"`
	MarketData    MarketDataConfig   `yaml:"marketData"`
	Gate          GateConfig         `yaml:"gate"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Rules         RulesConfig        `yaml:"rules"`
	Notifications NotificationConfig `yaml:"notifications"`
	Database      DatabaseConfig     `yaml:"database"`
	NATS          NATSConfig         `yaml:"nats"`
	Tracking      TrackingConfig     `yaml:"tracking"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SECConfig describes the registry endpoints and fair-access settings.
type SECConfig struct {
	UserAgent   string        `yaml:"userAgent"`
	MinInterval time.Duration `yaml:"minInterval"`
	DataURL     string        `yaml:"dataUrl"`
	Feeds       []FeedConfig  `yaml:"feeds"`
}

// FeedConfig describes a single feed with its scanner strategy.
type FeedConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// PollerConfig bounds per-cycle work.
type PollerConfig struct {
	Freshness   time.Duration `yaml:"freshness"`
	MaxPerCycle int           `yaml:"maxPerCycle"`
}

// RetryConfig parameterizes the retry-with-timeout combinator.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
	Delay          time.Duration `yaml:"delay"`
	Cooldown       time.Duration `yaml:"cooldown"`
}

// FetchConfig caps document retrieval.
type FetchConfig struct {
	MaxDocuments     int         `yaml:"maxDocuments"`
	MaxDocumentBytes int64       `yaml:"maxDocumentBytes"`
	MaxTextBytes     int         `yaml:"maxTextBytes"`
	Retry            RetryConfig `yaml:"retry"`
}

// EntityConfig tunes registrant lookups.
type EntityConfig struct {
	Retry RetryConfig `yaml:"retry"`
}

// ProviderConfig wires one market data vendor.
type ProviderConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// BreakerConfig controls per-provider circuit breakers.
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MinRequests  uint32        `yaml:"minRequests"`
	FailureRatio float64       `yaml:"failureRatio"`
	OpenTimeout  time.Duration `yaml:"openTimeout"`
}

// MarketDataConfig lists provider chains per snapshot field.
type MarketDataConfig struct {
	ProviderTimeout time.Duration       `yaml:"providerTimeout"`
	Chains          map[string][]string `yaml:"chains"`
	Finnhub         ProviderConfig      `yaml:"finnhub"`
	FMP             ProviderConfig      `yaml:"fmp"`
	Polygon         ProviderConfig      `yaml:"polygon"`
	Breaker         BreakerConfig       `yaml:"breaker"`
}

// GateConfig carries the eligibility thresholds.
type GateConfig struct {
	AllowedJurisdictions  []string           `yaml:"allowedJurisdictions"`
	HighRiskJurisdictions []string           `yaml:"highRiskJurisdictions"`
	FloatCeilings         map[string]float64 `yaml:"floatCeilings"`
	DefaultFloatCeiling   float64            `yaml:"defaultFloatCeiling"`
	VolumeFloor           float64            `yaml:"volumeFloor"`
	LoweredVolumeFloor    float64            `yaml:"loweredVolumeFloor"`
	VolumeBypassRatio     float64            `yaml:"volumeBypassRatio"`
	ExtremeRatioHigh      float64            `yaml:"extremeRatioHigh"`
	ExtremeRatioLow       float64            `yaml:"extremeRatioLow"`
	HighScore             float64            `yaml:"highScore"`
	StrongVolumeScore     float64            `yaml:"strongVolumeScore"`
	MinDistinctSignals    int                `yaml:"minDistinctSignals"`
}

// WindowConfig is an "HH:MM"-"HH:MM" clock window.
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// SchedulerConfig defines the adaptive polling intervals.
type SchedulerConfig struct {
	Timezone         string         `yaml:"timezone"`
	Peak             WindowConfig   `yaml:"peak"`
	Trading          WindowConfig   `yaml:"trading"`
	PeakInterval     time.Duration  `yaml:"peakInterval"`
	TradingInterval  time.Duration  `yaml:"tradingInterval"`
	OffHoursInterval time.Duration  `yaml:"offHoursInterval"`
	WeekendInterval  time.Duration  `yaml:"weekendInterval"`
	location         *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RulesConfig points at an optional override rules table.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// DatabaseConfig describes Postgres connection details; empty DSN disables the sink.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig describes the alert publication subject; empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// TrackingConfig points at the alert tracking CSV; empty path disables it.
type TrackingConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env and YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	dotenv := os.Getenv(dotenvPathEnv)
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load %s: %v", dotenv, err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()
	cfg.bindTimezone()

	return cfg
}

// parse decodes raw YAML over the defaults: absent keys keep their default,
// maps are merged key by key and lists are replaced.
func parse(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{logLevelEnv, &c.Logging.Level},
		{databaseDSNEnv, &c.Database.DSN},
		{natsURLEnv, &c.NATS.URL},
		{secUserAgentEnv, &c.SEC.UserAgent},
		{finnhubKeyEnv, &c.MarketData.Finnhub.APIKey},
		{fmpKeyEnv, &c.MarketData.FMP.APIKey},
		{polygonKeyEnv, &c.MarketData.Polygon.APIKey},
		{telegramToken, &c.Notifications.Telegram.BotToken},
		{telegramChatID, &c.Notifications.Telegram.ChatID},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// fillDefaults restores defaults for values an override file zeroed out.
func (c *Config) fillDefaults() {
	def := defaultConfig()

	if c.SEC.MinInterval <= 0 {
		c.SEC.MinInterval = def.SEC.MinInterval
	}
	if c.SEC.DataURL == "" {
		c.SEC.DataURL = def.SEC.DataURL
	}
	if len(c.SEC.Feeds) == 0 {
		c.SEC.Feeds = def.SEC.Feeds
	}
	if c.Poller.Freshness <= 0 {
		c.Poller.Freshness = def.Poller.Freshness
	}
	if c.Poller.MaxPerCycle <= 0 {
		c.Poller.MaxPerCycle = def.Poller.MaxPerCycle
	}
	if c.Fetch.MaxDocuments <= 0 {
		c.Fetch.MaxDocuments = def.Fetch.MaxDocuments
	}
	if c.Fetch.MaxDocumentBytes <= 0 {
		c.Fetch.MaxDocumentBytes = def.Fetch.MaxDocumentBytes
	}
	if c.Fetch.MaxTextBytes <= 0 {
		c.Fetch.MaxTextBytes = def.Fetch.MaxTextBytes
	}
	if c.MarketData.ProviderTimeout <= 0 {
		c.MarketData.ProviderTimeout = def.MarketData.ProviderTimeout
	}
	if c.Gate.MinDistinctSignals <= 0 {
		c.Gate.MinDistinctSignals = def.Gate.MinDistinctSignals
	}
	if c.Tracking.Path == "" {
		c.Tracking.Path = def.Tracking.Path
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = def.NATS.Subject
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		tz = defaultTimezone
		if loc, err = time.LoadLocation(tz); err != nil {
			loc = time.UTC
		}
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
}
