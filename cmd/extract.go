package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	service "github.com/tapdin/planner/internal/app"
	"github.com/tapdin/planner/internal/domain/content"
	"github.com/tapdin/planner/pkg/logger"
)

func newExtractCmd() *cobra.Command {
	var url, image string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract an event record locally without storing it",
		Long: `Runs text extraction and normalization in-process and prints the
event record as JSON. Needs llm.api_key, and OCR credentials for --image.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			in, err := readInput(url, image)
			if err != nil {
				return err
			}

			cfg, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			p, err := newPipeline(ctx, cfg, logger.Get())
			if err != nil {
				return err
			}

			res, err := service.New(p.extractor, p.normalizer, nil).Process(ctx, in, false)
			if err != nil {
				return fmt.Errorf("extraction failed: %w", err)
			}
			return printJSON(cmd, res.Record)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to scrape")
	cmd.Flags().StringVar(&image, "image", "", "image file to run OCR on")
	return cmd
}

// readInput loads the image file, if any. At least one source is required.
func readInput(url, imagePath string) (content.Input, error) {
	if url == "" && imagePath == "" {
		return content.Input{}, errors.New("one of --url or --image is required")
	}
	in := content.Input{URL: url}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return content.Input{}, fmt.Errorf("failed to read image: %w", err)
		}
		in.Image = data
		in.ImageName = filepath.Base(imagePath)
	}
	return in, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
