package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix     = "TAPDIN_"
	EnvConfigFile = "TAPDIN_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TAPDIN_CONFIG is set
//  3. env (prefix TAPDIN_, "__" separates sections: TAPDIN_LLM__API_KEY)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TAPDIN_STORE__DRIVER to store.driver. The config file path
// variable is not a config key.
func envKey(s string) string {
	if s == EnvConfigFile {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the settings the service cannot start without.
// Credentials are checked by the components that need them.
func (c *Config) Validate() error {
	var problems []error
	if c.Addr == "" {
		problems = append(problems, errors.New("addr must not be empty"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			problems = append(problems, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverMongo:
		if c.Store.URI == "" {
			problems = append(problems, errors.New("store.uri is required for the mongo driver"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Scrape.Timeout <= 0 || c.OCR.Timeout <= 0 || c.LLM.Timeout <= 0 {
		problems = append(problems, errors.New("scrape, ocr and llm timeouts must be positive"))
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, errors.New("llm.max_tokens must be positive"))
	}
	if c.OCR.RatePerSecond < 0 || c.LLM.RatePerSecond < 0 {
		problems = append(problems, errors.New("rate_per_second must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Errorf("timezone: %w", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}
