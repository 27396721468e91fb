package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/witnz/landledger/internal/hash"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Verify   VerifyConfig   `mapstructure:"verify" yaml:"verify"`
	Alerts   AlertsConfig   `mapstructure:"alerts" yaml:"alerts"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type LedgerConfig struct {
	HashAlgorithm string   `mapstructure:"hash_algorithm" yaml:"hash_algorithm"`
	GenesisMarker string   `mapstructure:"genesis_marker" yaml:"genesis_marker"`
	IndexedFields []string `mapstructure:"indexed_fields" yaml:"indexed_fields"`
}

type RegistryConfig struct {
	UniqueLandIDs bool `mapstructure:"unique_land_ids" yaml:"unique_land_ids"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	CORSOrigins    []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimitRPS   int      `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

type VerifyConfig struct {
	Interval string `mapstructure:"interval" yaml:"interval"`
}

type AlertsConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	SlackWebhook string `mapstructure:"slack_webhook" yaml:"slack_webhook"`
}

type EventsConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

type SnapshotConfig struct {
	ExportPath string `mapstructure:"export_path" yaml:"export_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			HashAlgorithm: string(hash.DefaultAlgorithm),
			GenesisMarker: "Genesis Block",
			IndexedFields: []string{"Land ID"},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Verify: VerifyConfig{Interval: "1m"},
		Events: EventsConfig{Topic: "certificate.registered"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("ledger.hash_algorithm", d.Ledger.HashAlgorithm)
	v.SetDefault("ledger.genesis_marker", d.Ledger.GenesisMarker)
	v.SetDefault("ledger.indexed_fields", d.Ledger.IndexedFields)
	v.SetDefault("registry.unique_land_ids", d.Registry.UniqueLandIDs)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.rate_limit_rps", d.Server.RateLimitRPS)
	v.SetDefault("server.rate_limit_burst", d.Server.RateLimitBurst)
	v.SetDefault("verify.interval", d.Verify.Interval)
	v.SetDefault("alerts.enabled", d.Alerts.Enabled)
	v.SetDefault("alerts.slack_webhook", d.Alerts.SlackWebhook)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("snapshot.export_path", d.Snapshot.ExportPath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configPath, overlaying environment variables (server.addr is
// SERVER_ADDR). A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if expanded := os.ExpandEnv(val); expanded != val {
			v.Set(key, expanded)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate fills unset fields with defaults and rejects invalid values.
func (c *Config) Validate() error {
	d := Default()

	if c.Ledger.HashAlgorithm == "" {
		c.Ledger.HashAlgorithm = d.Ledger.HashAlgorithm
	}
	if _, err := hash.ParseAlgorithm(c.Ledger.HashAlgorithm); err != nil {
		return fmt.Errorf("ledger.hash_algorithm: %w", err)
	}
	if c.Ledger.GenesisMarker == "" {
		c.Ledger.GenesisMarker = d.Ledger.GenesisMarker
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = c.Server.RateLimitRPS * 2
	}

	if _, err := c.Verify.IntervalDuration(); err != nil {
		return err
	}

	if c.Alerts.Enabled && c.Alerts.SlackWebhook == "" {
		return fmt.Errorf("alerts.slack_webhook is required when alerts are enabled")
	}

	if c.Events.Topic == "" {
		c.Events.Topic = d.Events.Topic
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid options: text, json)", c.Log.Format)
	}

	return nil
}

// IntervalDuration parses the verify interval. Zero means periodic
// verification is disabled.
func (v VerifyConfig) IntervalDuration() (time.Duration, error) {
	if v.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid verify.interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("verify.interval must not be negative")
	}
	return d, nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", l.Level)
	}
	return level, nil
}

// NewLogger builds the process logger described by l.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WriteDefault writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
