package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const CurrentVersion = 1

// Config is the CLI configuration file.
type Config struct {
	Version int           `json:"version" yaml:"version"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Export  ExportConfig  `json:"export" yaml:"export"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type CatalogConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Refresh is a standard five field cron expression.
	Refresh string `json:"refresh,omitempty" yaml:"refresh,omitempty"`
}

type FetchConfig struct {
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Dir        string        `json:"dir,omitempty" yaml:"dir,omitempty"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	Backoff    BackoffConfig `json:"backoff" yaml:"backoff"`
}

type BackoffConfig struct {
	Base   time.Duration `json:"base" yaml:"base"`
	Factor float64       `json:"factor" yaml:"factor"`
	Max    time.Duration `json:"max" yaml:"max"`
}

type StoreConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
}

type ExportConfig struct {
	Version string `json:"version" yaml:"version"`
	Trace   bool   `json:"trace" yaml:"trace"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Version: CurrentVersion,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Fetch: FetchConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			Backoff: BackoffConfig{
				Base:   200 * time.Millisecond,
				Factor: 2,
				Max:    2 * time.Second,
			},
		},
		Store: StoreConfig{
			Table: "workflows",
		},
		Export: ExportConfig{
			Version: "1.0",
		},
	}
}

// Parse decodes YAML or JSON on top of Defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Load reads and parses the file at path. An empty path yields Defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Validate performs basic structural validation.
func (c Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	switch c.Log.Format {
	case "json", "plain":
	default:
		return fmt.Errorf("log.format must be json or plain, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	if c.Catalog.Refresh != "" {
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.refresh requires catalog.path")
		}
		if _, err := cron.ParseStandard(c.Catalog.Refresh); err != nil {
			return fmt.Errorf("catalog.refresh: %w", err)
		}
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	return c.Store.Validate()
}

func (f FetchConfig) Validate() error {
	if f.BaseURL != "" && f.Dir != "" {
		return fmt.Errorf("fetch.base_url and fetch.dir are mutually exclusive")
	}
	if f.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if f.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	if f.Backoff.Base < 0 || f.Backoff.Max < 0 || f.Backoff.Factor < 0 {
		return fmt.Errorf("fetch.backoff values must not be negative")
	}
	return nil
}

func (s StoreConfig) Validate() error {
	switch s.Driver {
	case "":
		if s.DSN != "" {
			return fmt.Errorf("store.dsn requires store.driver")
		}
	case "sqlite3", "postgres":
		if s.DSN == "" {
			return fmt.Errorf("store.driver %s requires store.dsn", s.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be sqlite3 or postgres, got %q", s.Driver)
	}
	return nil
}

// Enabled reports whether a store is configured.
func (s StoreConfig) Enabled() bool {
	return s.Driver != ""
}
