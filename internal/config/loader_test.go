package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tapdin/planner/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			setenv("TAPDIN_ADDR", ":9090")
			setenv("TAPDIN_LOG_LEVEL", "debug")
			setenv("TAPDIN_STORE__DRIVER", "sqlite")
			setenv("TAPDIN_STORE__PATH", "/tmp/plans.db")
			setenv("TAPDIN_LLM__API_KEY", "sk-test")
			setenv("TAPDIN_LLM__MAX_TOKENS", "256")
			setenv("TAPDIN_LLM__RATE_PER_SECOND", "0.5")
			setenv("TAPDIN_SCRAPE__TIMEOUT", "3s")
			setenv("TAPDIN_OCR__PRIVATE_KEY", `-----BEGIN-----\nabc\n-----END-----`)

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Store.Path, convey.ShouldEqual, "/tmp/plans.db")
				convey.So(cfg.LLM.APIKey, convey.ShouldEqual, "sk-test")
				convey.So(cfg.LLM.MaxTokens, convey.ShouldEqual, 256)
				convey.So(cfg.LLM.RatePerSecond, convey.ShouldEqual, 0.5)
				convey.So(cfg.Scrape.Timeout, convey.ShouldEqual, 3*time.Second)
				convey.So(cfg.OCR.PrivateKey, convey.ShouldEqual, `-----BEGIN-----\nabc\n-----END-----`)
				convey.So(cfg.LLM.Model, convey.ShouldEqual, "gpt-3.5-turbo") // From defaults
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeConfigFile(t, `
addr: ":7070"
store:
  driver: mongo
  uri: mongodb://localhost:27017
  collection: plans_test
llm:
  model: gpt-4o-mini
  timeout: 90s
`)
			setenv("TAPDIN_CONFIG", path)

			cfg, err := config.Load()

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "mongo")
				convey.So(cfg.Store.URI, convey.ShouldEqual, "mongodb://localhost:27017")
				convey.So(cfg.Store.Collection, convey.ShouldEqual, "plans_test")
				convey.So(cfg.Store.Database, convey.ShouldEqual, "tapdin")
				convey.So(cfg.LLM.Model, convey.ShouldEqual, "gpt-4o-mini")
				convey.So(cfg.LLM.Timeout, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.LLM.MaxTokens, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":7070"
log_format: console
`)
			setenv("TAPDIN_CONFIG", path)
			setenv("TAPDIN_ADDR", ":6060")

			cfg, err := config.Load()

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "console")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			setenv("TAPDIN_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load()

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			setenv("TAPDIN_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load()

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			setenv("TAPDIN_ADDR", "")

			cfg, err := config.Load()

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When mongo is selected from env without a uri", func() {
			setenv("TAPDIN_STORE__DRIVER", "mongo")

			_, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// setenv sets an environment variable for the current convey branch only.
func setenv(key, value string) {
	prev, had := os.LookupEnv(key)
	_ = os.Setenv(key, value)
	convey.Reset(func() {
		if had {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
