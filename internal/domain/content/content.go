// Package content extracts raw event text from an uploaded image or a URL.
package content

import (
	"context"
	"strings"

	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
	"github.com/tapdin/planner/pkg/logger"
)

// OCR detects text in image bytes. It returns "" when nothing is found.
type OCR interface {
	DetectText(ctx context.Context, image []byte) (string, error)
}

// Scraper fetches a page and reduces it to readable text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Input is one submission. At least one field should be set.
type Input struct {
	URL       string
	Image     []byte
	ImageName string
}

// Extractor runs the scraper and/or OCR for a submission.
type Extractor struct {
	ocr     OCR
	scraper Scraper
	logger  logger.Logger
}

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithLogger sets the extractor's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Extractor. Either port may be nil; a submission that needs
// a missing port fails as unexpected.
func New(ocr OCR, scraper Scraper, opts ...Option) *Extractor {
	e := &Extractor{ocr: ocr, scraper: scraper, logger: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text for in. The URL is scraped first, then the image
// is OCR'd; image text wins when both yield something. When nothing yields
// text the error is ErrNoText.
func (e *Extractor) Extract(ctx context.Context, in Input) (model.RawContent, model.Meta, error) {
	const op = "content.extract"
	url := strings.TrimSpace(in.URL)
	meta := model.Meta{SourceURL: url}

	var urlText, imageText string
	if url != "" {
		if e.scraper == nil {
			return "", meta, errs.WrapKind(op, errs.ErrFetch, errNoScraper)
		}
		e.logger.Info(ctx, "processing url", logger.String("url", url))
		text, err := e.scraper.Scrape(ctx, url)
		if err != nil {
			return "", meta, err
		}
		urlText = strings.TrimSpace(text)
	}

	if len(in.Image) > 0 {
		if e.ocr == nil {
			return "", meta, errs.WrapKind(op, errs.ErrOCR, errNoOCR)
		}
		e.logger.Info(ctx, "processing image",
			logger.String("name", in.ImageName),
			logger.Int("bytes", len(in.Image)),
		)
		text, err := e.ocr.DetectText(ctx, in.Image)
		if err != nil {
			return "", meta, err
		}
		imageText = strings.TrimSpace(text)
	}

	switch {
	case imageText != "" && urlText != "":
		meta.Source = model.SourceURLImage
		return model.RawContent(imageText), meta, nil
	case imageText != "":
		meta.Source = model.SourceImage
		return model.RawContent(imageText), meta, nil
	case urlText != "":
		meta.Source = model.SourceURL
		return model.RawContent(urlText), meta, nil
	}
	return "", meta, errs.NewKind(op, errs.ErrNoText)
}
