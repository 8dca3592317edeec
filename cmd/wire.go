package main

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/tapdin/planner/internal/adapters/llm"
	"github.com/tapdin/planner/internal/adapters/ocr"
	"github.com/tapdin/planner/internal/adapters/repository"
	"github.com/tapdin/planner/internal/adapters/repository/mongostore"
	"github.com/tapdin/planner/internal/adapters/repository/sqlitestore"
	"github.com/tapdin/planner/internal/adapters/scrape"
	"github.com/tapdin/planner/internal/config"
	"github.com/tapdin/planner/internal/domain/content"
	"github.com/tapdin/planner/internal/domain/normalize"
	"github.com/tapdin/planner/pkg/logger"
)

// openStore opens the plan store selected by store.driver.
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return repository.NewMemoryStore(ctx), nil
	case config.DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMongo:
		store, err := mongostore.Open(ctx, cfg.URI,
			mongostore.WithDatabase(cfg.Database),
			mongostore.WithCollection(cfg.Collection),
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// pipeline holds the two halves of plan extraction.
type pipeline struct {
	extractor  *content.Extractor
	normalizer *normalize.Normalizer
}

// newPipeline builds the OCR, scrape and chat adapters from cfg. Without
// OCR credentials or an endpoint, image submissions fail and URL
// submissions still work.
func newPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return pipeline{}, err
	}

	chat, err := llm.New(cfg.LLM.APIKey,
		llm.WithModel(cfg.LLM.Model),
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithRateLimit(cfg.LLM.RatePerSecond),
	)
	if err != nil {
		return pipeline{}, fmt.Errorf("chat client: %w", err)
	}

	var detector content.OCR
	if cfg.OCR.Configured() || cfg.OCR.Endpoint != "" {
		opts := []ocr.Option{
			ocr.WithTimeout(cfg.OCR.Timeout),
			ocr.WithRateLimit(cfg.OCR.RatePerSecond),
		}
		if cfg.OCR.Endpoint != "" {
			opts = append(opts, ocr.WithClientOptions(option.WithEndpoint(cfg.OCR.Endpoint)))
		}
		client, err := ocr.New(ctx, ocr.Credentials{
			ProjectID:   cfg.OCR.ProjectID,
			PrivateKey:  cfg.OCR.PrivateKey,
			ClientEmail: cfg.OCR.ClientEmail,
		}, opts...)
		if err != nil {
			return pipeline{}, fmt.Errorf("ocr client: %w", err)
		}
		detector = client
	} else {
		log.Warn(ctx, "ocr credentials not configured; image submissions will fail")
	}

	scraper := scrape.New(
		scrape.WithTimeout(cfg.Scrape.Timeout),
		scrape.WithUserAgent(cfg.Scrape.UserAgent),
		scrape.WithMaxBodyBytes(cfg.Scrape.MaxBodyBytes),
	)

	return pipeline{
		extractor: content.New(detector, scraper, content.WithLogger(log.Named("content"))),
		normalizer: normalize.New(chat,
			normalize.WithMaxTokens(cfg.LLM.MaxTokens),
			normalize.WithLocation(loc),
			normalize.WithLogger(log.Named("normalize")),
		),
	}, nil
}
