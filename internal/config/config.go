// Package config loads and validates sweep configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Target   TargetConfig   `mapstructure:"target"`
	Scan     ScanConfig     `mapstructure:"scan"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	State    StateConfig    `mapstructure:"state"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TargetConfig describes the endpoint under test and the form it expects.
type TargetConfig struct {
	URL         string            `mapstructure:"url"`
	PinField    string            `mapstructure:"pin_field"`
	ActionField string            `mapstructure:"action_field"`
	ActionValue string            `mapstructure:"action_value"`
	UserAgent   string            `mapstructure:"user_agent"`
	Referer     string            `mapstructure:"referer"`
	Headers     map[string]string `mapstructure:"headers"`
}

// ScanConfig governs the candidate range, pacing, and classification rules.
type ScanConfig struct {
	StartPin                int    `mapstructure:"start_pin"`
	EndPin                  int    `mapstructure:"end_pin"`
	DelayMs                 int    `mapstructure:"delay_ms"`
	SuccessIndicator        string `mapstructure:"success_indicator"`
	FailureIndicator        string `mapstructure:"failure_indicator"`
	TransientBackoffSeconds int    `mapstructure:"transient_backoff_seconds"`
	CooldownSeconds         int    `mapstructure:"cooldown_seconds"`
	CooldownStatuses        []int  `mapstructure:"cooldown_statuses"`
}

// HTTPConfig configures HTTP client behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StateConfig sets the paths of the durable scan-state files.
type StateConfig struct {
	FoundLog     string `mapstructure:"found_log"`
	PotentialLog string `mapstructure:"potential_log"`
	ScratchFile  string `mapstructure:"scratch_file"`
}

// ArchiveConfig controls raw-response archival for confirmed finds.
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
	LocalDir    string `mapstructure:"local_dir"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress event hub and its sinks.
type ProgressConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	LogEvents      bool `mapstructure:"log_events"`
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs  int  `mapstructure:"sink_timeout_ms"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the log-file mirror.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PINSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// END_PIN is honored alongside the prefixed form so short one-off runs
	// can cap the range without a config file.
	if err := v.BindEnv("scan.end_pin", "PINSWEEP_SCAN_END_PIN", "END_PIN"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

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
	v.SetDefault("target.url", "http://127.0.0.1:8080/epage.php")
	v.SetDefault("target.pin_field", "pin")
	v.SetDefault("target.action_field", "access")
	v.SetDefault("target.action_value", "Get Answers")
	v.SetDefault("target.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:139.0) Gecko/20100101 Firefox/139.0")
	v.SetDefault("target.referer", "")
	v.SetDefault("target.headers", map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "same-origin",
	})
	v.SetDefault("scan.start_pin", 0)
	v.SetDefault("scan.end_pin", 1000)
	v.SetDefault("scan.delay_ms", 200)
	v.SetDefault("scan.success_indicator", "2025")
	v.SetDefault("scan.failure_indicator", "invalid pin")
	v.SetDefault("scan.transient_backoff_seconds", 10)
	v.SetDefault("scan.cooldown_seconds", 60)
	v.SetDefault("scan.cooldown_statuses", []int{429, 503, 504})
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("state.found_log", "found_pins.log")
	v.SetDefault("state.potential_log", "potential_pins.log")
	v.SetDefault("state.scratch_file", "new_find_content.txt")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.prefix", "finds")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_events", true)
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.max_batch_events", 32)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 2000)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "pinsweep.log")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.ParseRequestURI(c.Target.URL)
	if err != nil {
		return fmt.Errorf("target.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target.url must use http or https")
	}
	if c.Target.PinField == "" {
		return fmt.Errorf("target.pin_field must be set")
	}
	if c.Scan.StartPin < 0 {
		return fmt.Errorf("scan.start_pin must be >= 0")
	}
	if c.Scan.EndPin < c.Scan.StartPin {
		return fmt.Errorf("scan.end_pin must be >= scan.start_pin")
	}
	if c.Scan.DelayMs < 0 {
		return fmt.Errorf("scan.delay_ms must be >= 0")
	}
	if c.Scan.SuccessIndicator == "" {
		return fmt.Errorf("scan.success_indicator must be set")
	}
	if c.Scan.FailureIndicator == "" {
		return fmt.Errorf("scan.failure_indicator must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.State.FoundLog == "" || c.State.PotentialLog == "" || c.State.ScratchFile == "" {
		return fmt.Errorf("state file paths must all be set")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "memory":
		case "local":
			if c.Archive.LocalDir == "" {
				return fmt.Errorf("archive.local_dir must be set for the local backend")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend must be one of memory, local, gcs")
		}
	}
	if c.Progress.Enabled {
		if c.Progress.BufferSize <= 0 {
			return fmt.Errorf("progress.buffer_size must be > 0")
		}
		if c.Progress.MaxBatchEvents <= 0 {
			return fmt.Errorf("progress.max_batch_events must be > 0")
		}
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// ProbeDelay returns the pause inserted between consecutive probes.
func (c Config) ProbeDelay() time.Duration {
	return time.Duration(c.Scan.DelayMs) * time.Millisecond
}

// RequestTimeout bounds a single probe round trip.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// TransientBackoff is the pause taken after a network-level probe failure.
func (c Config) TransientBackoff() time.Duration {
	return time.Duration(c.Scan.TransientBackoffSeconds) * time.Second
}

// Cooldown is the pause taken when the target signals throttling.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Scan.CooldownSeconds) * time.Second
}
