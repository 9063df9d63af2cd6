package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. QUAKEWATCH_TELEGRAM_BOT_TOKEN.
const EnvPrefix = "QUAKEWATCH"

// Config represents the complete application configuration
type Config struct {
	Feed       FeedConfig       `mapstructure:"feed"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Time       TimeConfig       `mapstructure:"time"`
	Render     RenderConfig     `mapstructure:"render"`
	Facebook   FacebookConfig   `mapstructure:"facebook"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Heartbeat  HeartbeatConfig  `mapstructure:"heartbeat"`
	Watchdog   WatchdogConfig   `mapstructure:"watchdog"`
	LogForward LogForwardConfig `mapstructure:"log_forward"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Errors     ErrorsConfig     `mapstructure:"errors"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// FeedConfig holds the upstream feed settings
type FeedConfig struct {
	URL                string        `mapstructure:"url"`
	Format             string        `mapstructure:"format"` // rss or geojson
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent"`
}

type BBoxConfig struct {
	MinLat float64 `mapstructure:"min_lat"`
	MaxLat float64 `mapstructure:"max_lat"`
	MinLon float64 `mapstructure:"min_lon"`
	MaxLon float64 `mapstructure:"max_lon"`
}

// ClassifierConfig holds the magnitude thresholds and the region of interest
type ClassifierConfig struct {
	MinReportMagnitude      float64    `mapstructure:"min_report_magnitude"`
	MinAlertMagnitudeGlobal float64    `mapstructure:"min_alert_magnitude_global"`
	RegionBBox              BBoxConfig `mapstructure:"region_bbox"`
	RegionKeywords          []string   `mapstructure:"region_keywords"`
}

// DispatchConfig holds alert fan-out settings
type DispatchConfig struct {
	MinMessagingMagnitude float64       `mapstructure:"min_messaging_magnitude"`
	AlertDelay            time.Duration `mapstructure:"alert_delay"`
	StepTimeout           time.Duration `mapstructure:"step_timeout"`
	Unit                  string        `mapstructure:"unit"`     // mi or km
	Numerals              string        `mapstructure:"numerals"` // latin or burmese
	LocationsFile         string        `mapstructure:"locations_file"`
	Promo                 string        `mapstructure:"promo"`
	KeepImages            bool          `mapstructure:"keep_images"`
}

// TimeConfig is the fixed local offset used for display and persistence
type TimeConfig struct {
	ZoneName  string        `mapstructure:"zone_name"`
	UTCOffset time.Duration `mapstructure:"utc_offset"`
}

type RenderConfig struct {
	StaticMapURL string        `mapstructure:"static_map_url"`
	APIKey       string        `mapstructure:"api_key"`
	Size         int           `mapstructure:"size"`
	Scale        int           `mapstructure:"scale"`
	MapType      string        `mapstructure:"map_type"`
	OutputDir    string        `mapstructure:"output_dir"`
	Footer       string        `mapstructure:"footer"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type FacebookConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	GraphURL   string        `mapstructure:"graph_url"`
	APIVersion string        `mapstructure:"api_version"`
	PageID     string        `mapstructure:"page_id"`
	PageToken  string        `mapstructure:"page_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	OpsChatID  string        `mapstructure:"ops_chat_id"`
	LinkText   string        `mapstructure:"link_text"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Commands   bool          `mapstructure:"commands"`
}

// StorageConfig selects the event store backend
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite, postgres, textlog
	DBPath     string `mapstructure:"db_path"`
	DSN        string `mapstructure:"dsn"`
	TextLogDir string `mapstructure:"textlog_dir"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type HeartbeatConfig struct {
	Path      string        `mapstructure:"path"`
	Threshold time.Duration `mapstructure:"threshold"`
}

// WatchdogConfig is read by the one-shot watchdog binary
type WatchdogConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Mention    string        `mapstructure:"mention"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LogForwardConfig controls copying log records to a chat webhook
type LogForwardConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	MinLevel   string        `mapstructure:"min_level"`
	Mention    string        `mapstructure:"mention"`
	Suppress   []string      `mapstructure:"suppress"`
	QueueSize  int           `mapstructure:"queue_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type ErrorsConfig struct {
	ArtifactPath string `mapstructure:"artifact_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory, if any, is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Secrets default to "" so that their environment overrides are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.url", "https://earthquake.tmd.go.th/feed/rss_inside.xml")
	v.SetDefault("feed.format", "rss")
	v.SetDefault("feed.poll_interval", "1m")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.retry_delay", "2s")
	v.SetDefault("feed.insecure_skip_verify", false)
	v.SetDefault("feed.user_agent", "quakewatch/1.0")

	v.SetDefault("classifier.min_report_magnitude", 2.0)
	v.SetDefault("classifier.min_alert_magnitude_global", 3.0)
	v.SetDefault("classifier.region_bbox.min_lat", 9.0)
	v.SetDefault("classifier.region_bbox.max_lat", 29.0)
	v.SetDefault("classifier.region_bbox.min_lon", 92.0)
	v.SetDefault("classifier.region_bbox.max_lon", 101.0)
	v.SetDefault("classifier.region_keywords", []string{"Myanmar", "เมียนมา"})

	v.SetDefault("dispatch.min_messaging_magnitude", 3.0)
	v.SetDefault("dispatch.alert_delay", "2s")
	v.SetDefault("dispatch.step_timeout", "2m")
	v.SetDefault("dispatch.unit", "mi")
	v.SetDefault("dispatch.numerals", "latin")
	v.SetDefault("dispatch.locations_file", "configs/locations.json")
	v.SetDefault("dispatch.promo", "")
	v.SetDefault("dispatch.keep_images", false)

	v.SetDefault("time.zone_name", "MMT")
	v.SetDefault("time.utc_offset", "6h30m")

	v.SetDefault("render.static_map_url", "")
	v.SetDefault("render.api_key", "")
	v.SetDefault("render.size", 600)
	v.SetDefault("render.scale", 2)
	v.SetDefault("render.map_type", "hybrid")
	v.SetDefault("render.output_dir", "")
	v.SetDefault("render.footer", "")
	v.SetDefault("render.timeout", "30s")

	v.SetDefault("facebook.enabled", false)
	v.SetDefault("facebook.graph_url", "https://graph.facebook.com")
	v.SetDefault("facebook.api_version", "v18.0")
	v.SetDefault("facebook.page_id", "")
	v.SetDefault("facebook.page_token", "")
	v.SetDefault("facebook.timeout", "1m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.ops_chat_id", "")
	v.SetDefault("telegram.link_text", "👉 Read more")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "2s")
	v.SetDefault("telegram.commands", true)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/quakes.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.textlog_dir", "./data")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "quake-events")
	v.SetDefault("kafka.write_timeout", "10s")

	v.SetDefault("heartbeat.path", "status.json")
	v.SetDefault("heartbeat.threshold", "90s")

	v.SetDefault("watchdog.webhook_url", "")
	v.SetDefault("watchdog.mention", "@everyone")
	v.SetDefault("watchdog.timeout", "10s")

	v.SetDefault("log_forward.enabled", false)
	v.SetDefault("log_forward.webhook_url", "")
	v.SetDefault("log_forward.min_level", "info")
	v.SetDefault("log_forward.mention", "@everyone")
	v.SetDefault("log_forward.suppress", []string{"No earthquake detected", "Skipping alerts."})
	v.SetDefault("log_forward.queue_size", 100)
	v.SetDefault("log_forward.timeout", "10s")

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", ":9090")

	v.SetDefault("errors.artifact_path", "latest_error.log")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.Format != "rss" && c.Feed.Format != "geojson" {
		return fmt.Errorf("feed.format must be one of: rss, geojson")
	}
	if c.Feed.PollInterval < 10*time.Second {
		return fmt.Errorf("feed.poll_interval must be at least 10 seconds")
	}
	if c.Feed.MaxRetries < 1 {
		return fmt.Errorf("feed.max_retries must be at least 1")
	}

	// Validate Classifier config
	if c.Classifier.MinReportMagnitude < 0 {
		return fmt.Errorf("classifier.min_report_magnitude must not be negative")
	}
	if c.Classifier.MinAlertMagnitudeGlobal < c.Classifier.MinReportMagnitude {
		return fmt.Errorf("classifier.min_alert_magnitude_global must not be below min_report_magnitude")
	}
	b := c.Classifier.RegionBBox
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("classifier.region_bbox minimums must not exceed maximums")
	}

	// Validate Dispatch config
	if c.Dispatch.Unit != "mi" && c.Dispatch.Unit != "km" {
		return fmt.Errorf("dispatch.unit must be one of: mi, km")
	}
	if c.Dispatch.Numerals != "latin" && c.Dispatch.Numerals != "burmese" {
		return fmt.Errorf("dispatch.numerals must be one of: latin, burmese")
	}
	if c.Dispatch.AlertDelay < 0 {
		return fmt.Errorf("dispatch.alert_delay must not be negative")
	}

	if c.Time.UTCOffset <= -24*time.Hour || c.Time.UTCOffset >= 24*time.Hour {
		return fmt.Errorf("time.utc_offset must be within one day")
	}

	// Validate channel configs
	if c.Facebook.Enabled {
		if c.Facebook.PageID == "" {
			return fmt.Errorf("facebook.page_id is required when facebook is enabled")
		}
		if c.Facebook.PageToken == "" {
			return fmt.Errorf("facebook.page_token is required when facebook is enabled")
		}
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.LogForward.Enabled && c.LogForward.WebhookURL == "" {
		return fmt.Errorf("log_forward.webhook_url is required when log forwarding is enabled")
	}

	// Validate Storage config
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	case "textlog":
		if c.Storage.TextLogDir == "" {
			return fmt.Errorf("storage.textlog_dir is required for textlog")
		}
	default:
		return fmt.Errorf("storage.driver must be one of: sqlite, postgres, textlog")
	}

	if c.Heartbeat.Path == "" {
		return fmt.Errorf("heartbeat.path is required")
	}
	if c.Heartbeat.Threshold <= 0 {
		return fmt.Errorf("heartbeat.threshold must be positive")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.LogForward.Enabled && !validLogLevels[c.LogForward.MinLevel] {
		return fmt.Errorf("log_forward.min_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location returns the fixed local time zone.
func (c *Config) Location() *time.Location {
	name := c.Time.ZoneName
	if name == "" {
		name = fmt.Sprintf("UTC%+.1f", c.Time.UTCOffset.Hours())
	}
	return time.FixedZone(name, int(c.Time.UTCOffset.Seconds()))
}
