// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Nested sections map to dotted keys, e.g. llm.api_key.
// - Validation errors wrap ErrInvalidConfig; loading errors wrap ErrLoadConfig.
package config

import (
	"time"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects json or console output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Timezone names the IANA zone applied to datetimes the model returns
	// without an offset.
	Timezone string `koanf:"timezone"`

	HTTP   HTTPConfig   `koanf:"http"`
	Store  StoreConfig  `koanf:"store"`
	Scrape ScrapeConfig `koanf:"scrape"`
	OCR    OCRConfig    `koanf:"ocr"`
	LLM    LLMConfig    `koanf:"llm"`
}

// HTTPConfig tunes the HTTP server.
type HTTPConfig struct {
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects and configures the plan store.
type StoreConfig struct {
	// Driver is one of memory, sqlite or mongo.
	Driver string `koanf:"driver"`

	// URI is the Mongo connection string.
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`

	// Path is the SQLite database file.
	Path string `koanf:"path"`
}

// ScrapeConfig configures page fetching.
type ScrapeConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	UserAgent    string        `koanf:"user_agent"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
}

// OCRConfig holds the Vision service account and call limits.
type OCRConfig struct {
	ProjectID     string        `koanf:"project_id"`
	PrivateKey    string        `koanf:"private_key"`
	ClientEmail   string        `koanf:"client_email"`
	Endpoint      string        `koanf:"endpoint"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// Configured reports whether service account credentials were supplied.
func (c OCRConfig) Configured() bool {
	return c.PrivateKey != "" && c.ClientEmail != ""
}

// LLMConfig holds the chat completion settings.
type LLMConfig struct {
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	BaseURL       string        `koanf:"base_url"`
	MaxTokens     int           `koanf:"max_tokens"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Addr:      ":8080",
		Timezone:  "UTC",
		HTTP: HTTPConfig{
			MaxUploadBytes:  10 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:     DriverMemory,
			Database:   "tapdin",
			Collection: "plans",
			Path:       "data/plans.db",
		},
		Scrape: ScrapeConfig{
			Timeout:      8 * time.Second,
			UserAgent:    "tapdin-planner/1.0",
			MaxBodyBytes: 5 << 20,
		},
		OCR: OCRConfig{
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Model:     "gpt-3.5-turbo",
			MaxTokens: 500,
			Timeout:   60 * time.Second,
		},
	}
}

// Location resolves Timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
