// Package config loads and validates listingwatch configuration via Viper.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/JakeFAU/listingwatch/internal/window"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "LISTINGWATCH"

// ErrMissingAPIKey is returned by ValidateForRun when no model API key is set.
var ErrMissingAPIKey = errors.New("extraction.api_key is required to run the pipeline")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	// Targets and Window.Days accept either a list or a string, so they are
	// decoded by hand.
	Targets    []string         `mapstructure:"-" validate:"required,min=1,dive,url"`
	Window     WindowConfig     `mapstructure:"window"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	History    HistoryConfig    `mapstructure:"history"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// WindowConfig describes when runs are allowed.
type WindowConfig struct {
	StartHour int    `mapstructure:"start_hour" validate:"min=0,max=23"`
	EndHour   int    `mapstructure:"end_hour" validate:"min=0,max=23,gtefield=StartHour"`
	Days      []int  `mapstructure:"-" validate:"required,min=1,dive,min=0,max=6"`
	Timezone  string `mapstructure:"timezone" validate:"required,timezone"`
}

// ExtractionConfig configures the vision model calls.
type ExtractionConfig struct {
	Rules         string        `mapstructure:"rules" validate:"required"`
	APIKey        string        `mapstructure:"api_key"`
	PrimaryModel  string        `mapstructure:"primary_model" validate:"required"`
	FallbackModel string        `mapstructure:"fallback_model" validate:"required"`
	APIVersion    string        `mapstructure:"api_version"`
	BaseURL       string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Debug         bool          `mapstructure:"debug"`
}

// CaptureConfig configures the headless browser.
type CaptureConfig struct {
	Width             int           `mapstructure:"width" validate:"min=1"`
	Height            int           `mapstructure:"height" validate:"min=1"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" validate:"min=0"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"gt=0"`
	UserAgent         string        `mapstructure:"user_agent"`
	ExecPath          string        `mapstructure:"exec_path"`
}

// History backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
)

// HistoryConfig selects and configures the history store.
type HistoryConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=file memory sqlite postgres gcs"`
	Path            string        `mapstructure:"path" validate:"required_if=Backend file,required_if=Backend sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required_if=Backend postgres"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns" validate:"min=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" validate:"min=0"`
	Bucket          string        `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	Prefix          string        `mapstructure:"prefix"`
}

// NotifyConfig configures alert delivery. Every channel is optional.
type NotifyConfig struct {
	Title    string         `mapstructure:"title" validate:"required"`
	PushPlus PushPlusConfig `mapstructure:"pushplus"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// PushPlusConfig configures the PushPlus channel; an empty token disables it.
type PushPlusConfig struct {
	Token         string        `mapstructure:"token"`
	Endpoint      string        `mapstructure:"endpoint" validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RatePerSecond float64       `mapstructure:"rate_per_second" validate:"min=0"`
}

// PubSubConfig holds the topic alerts are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id" validate:"required_with=Topic"`
	Topic     string `mapstructure:"topic" validate:"required_with=ProjectID"`
}

// Enabled reports whether the Pub/Sub channel is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool          `mapstructure:"development"`
	Level       string        `mapstructure:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	File        LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables a rotating log file.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig configures the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" validate:"omitempty,url"`
	Job            string `mapstructure:"job" validate:"required"`
}

// Keys without defaults still need an explicit env binding for Unmarshal to
// see them.
var boundKeys = []string{
	"targets",
	"window.start_hour",
	"window.end_hour",
	"window.days",
	"extraction.api_key",
	"extraction.base_url",
	"capture.user_agent",
	"capture.exec_path",
	"history.dsn",
	"history.bucket",
	"notify.pushplus.token",
	"notify.pubsub.project_id",
	"notify.pubsub.topic",
	"logging.file.path",
	"metrics.pushgateway_url",
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range boundKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
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

	for _, key := range []string{"window.start_hour", "window.end_hour"} {
		if !v.IsSet(key) {
			return Config{}, fmt.Errorf("%s is required", key)
		}
	}

	targets, err := ParseTargets(v.Get("targets"))
	if err != nil {
		return Config{}, fmt.Errorf("targets: %w", err)
	}
	cfg.Targets = targets

	days, err := ParseDays(v.Get("window.days"))
	if err != nil {
		return Config{}, fmt.Errorf("window.days: %w", err)
	}
	cfg.Window.Days = days

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("window.timezone", window.DefaultTimezone)
	v.SetDefault("extraction.rules", "Include ONLY items where the button text contains 'Ask' (case-insensitive).")
	v.SetDefault("extraction.primary_model", "gemini-3-pro-preview")
	v.SetDefault("extraction.fallback_model", "gemini-2.5-pro")
	v.SetDefault("extraction.api_version", "v1alpha")
	v.SetDefault("extraction.timeout", 120*time.Second)
	v.SetDefault("extraction.debug", false)
	v.SetDefault("capture.width", 1920)
	v.SetDefault("capture.height", 1080)
	v.SetDefault("capture.settle_delay", 8*time.Second)
	v.SetDefault("capture.navigation_timeout", 60*time.Second)
	v.SetDefault("history.backend", BackendFile)
	v.SetDefault("history.path", "history.txt")
	v.SetDefault("history.table", "listing_history")
	v.SetDefault("history.max_conns", 4)
	v.SetDefault("history.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("history.prefix", "history")
	v.SetDefault("notify.title", "New listing found!")
	v.SetDefault("notify.pushplus.endpoint", "http://www.pushplus.plus/send")
	v.SetDefault("notify.pushplus.timeout", 10*time.Second)
	v.SetDefault("notify.pushplus.rate_per_second", 1.0)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file.max_size_mb", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("metrics.job", "listingwatch")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.OperatingWindow(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateForRun adds the checks that only matter when the pipeline runs.
func (c Config) ValidateForRun() error {
	if strings.TrimSpace(c.Extraction.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// OperatingWindow builds the run gate.
func (c Config) OperatingWindow() (window.Window, error) {
	return window.New(c.Window.StartHour, c.Window.EndHour, c.Window.Days, c.Window.Timezone)
}

// ParseTargets accepts a JSON array string, a comma-separated string or a
// list. Blank entries are dropped.
func ParseTargets(raw any) ([]string, error) {
	var items []string
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(val)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, fmt.Errorf("decode JSON list: %w", err)
			}
		} else {
			items = strings.Split(s, ",")
		}
	case []string:
		items = val
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected entry %v (%T)", item, item)
			}
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseDays accepts "0,1,2", a JSON array string or a list of integers.
func ParseDays(raw any) ([]int, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case int:
		return []int{val}, nil
	case []int:
		return append([]int(nil), val...), nil
	case []any:
		out := make([]int, 0, len(val))
		for _, item := range val {
			day, err := toInt(item)
			if err != nil {
				return nil, err
			}
			out = append(out, day)
		}
		return out, nil
	case string:
		s := strings.Trim(strings.TrimSpace(val), "[]")
		if s == "" {
			return nil, nil
		}
		parts := strings.Split(s, ",")
		out := make([]int, 0, len(parts))
		for _, p := range parts {
			day, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("parse day %q: %w", p, err)
			}
			out = append(out, day)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("day %v is not an integer", n)
		}
		return int(n), nil
	case string:
		day, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("parse day %q: %w", n, err)
		}
		return day, nil
	default:
		return 0, fmt.Errorf("unexpected day %v (%T)", v, v)
	}
}
