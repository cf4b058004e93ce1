// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	ECFR    ECFRConfig    `mapstructure:"ecfr"`
	DB      DBConfig      `mapstructure:"db"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the read-only HTTP API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// IngestConfig governs a single ingestion run.
type IngestConfig struct {
	MaxAgencies int    `mapstructure:"max_agencies"`
	Concurrency int    `mapstructure:"concurrency"`
	AsOfDate    string `mapstructure:"as_of_date"`
}

// ECFRConfig configures the upstream eCFR API client.
type ECFRConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	RequestSpacing   string `mapstructure:"request_spacing"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime string `mapstructure:"max_conn_lifetime"`
}

// ArchiveConfig selects where raw title XML is archived, if anywhere.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // noop | memory | gcs
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig selects the run-completed event publisher.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"` // noop | memory | pubsub
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ECFR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("ingest.max_agencies", 10)
	v.SetDefault("ingest.concurrency", 5)
	v.SetDefault("ingest.as_of_date", "")
	v.SetDefault("ecfr.base_url", "https://www.ecfr.gov/api")
	v.SetDefault("ecfr.timeout_seconds", 300)
	v.SetDefault("ecfr.request_spacing", "2s")
	v.SetDefault("ecfr.max_retries", 3)
	v.SetDefault("ecfr.backoff_initial_ms", 250)
	v.SetDefault("ecfr.backoff_max_ms", 5000)
	v.SetDefault("ecfr.user_agent", "ecfr-ingest/0.1 (+https://github.com/regwatch/ecfr-ingest)")
	v.SetDefault("db.table", "agency_snapshots")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "runs")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be > 0")
	}
	if c.Ingest.MaxAgencies <= 0 {
		return fmt.Errorf("ingest.max_agencies must be > 0")
	}
	if c.ECFR.TimeoutSeconds <= 0 {
		return fmt.Errorf("ecfr.timeout_seconds must be > 0")
	}
	if _, err := c.RequestSpacing(); err != nil {
		return err
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Notify.Provider == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set when notify.provider is pubsub")
	}
	return nil
}

// RequestSpacing parses the minimum inter-request delay for the fetch client.
func (c Config) RequestSpacing() (time.Duration, error) {
	if c.ECFR.RequestSpacing == "" {
		return 2 * time.Second, nil
	}
	d, err := time.ParseDuration(c.ECFR.RequestSpacing)
	if err != nil {
		return 0, fmt.Errorf("ecfr.request_spacing: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("ecfr.request_spacing must be >= 0")
	}
	return d, nil
}

// HTTPTimeout converts the upstream timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.ECFR.TimeoutSeconds) * time.Second
}
