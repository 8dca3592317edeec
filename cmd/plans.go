package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapdin/planner/internal/client"
	"github.com/tapdin/planner/internal/domain/model"
	"github.com/tapdin/planner/pkg/logger"
)

const defaultServer = "http://localhost:8080"

func newPlansCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	newClient := func() *client.Client {
		return client.New(server,
			client.WithTimeout(timeout),
			client.WithLogger(logger.Nop()),
		)
	}

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage plans on a running server",
	}
	cmd.PersistentFlags().StringVar(&server, "server", defaultServer, "base URL of the planner API")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "per-request timeout")

	cmd.AddCommand(newPlansListCmd(newClient))
	cmd.AddCommand(newPlansDeleteCmd(newClient))
	cmd.AddCommand(newPlansSubmitCmd(newClient))
	return cmd
}

type clientFactory func() *client.Client

func newPlansListCmd(newClient clientFactory) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans, err := newClient().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}
			if asJSON {
				return printJSON(cmd, plans)
			}
			if len(plans) == 0 {
				cmd.Println("No plans found")
				return nil
			}
			for i := range plans {
				printPlan(cmd, plans[i])
			}
			cmd.Printf("Total: %d plans\n", len(plans))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON array")
	return cmd
}

func printPlan(cmd *cobra.Command, p model.Plan) {
	cmd.Printf("  %s\n", p.ID)
	cmd.Printf("    Title: %s\n", p.Event.Title)
	cmd.Printf("    Type: %s\n", p.Event.Type)
	if p.Event.Datetime != nil {
		cmd.Printf("    When: %s\n", p.Event.Datetime.UTC().Format(model.ISOLayout))
	}
	cmd.Printf("    Where: %s\n", p.Event.Location.Name)
	if p.Meta.SourceURL != "" {
		cmd.Printf("    Source: %s\n", p.Meta.SourceURL)
	}
	cmd.Println()
}

func newPlansDeleteCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [plan-id]",
		Short: "Delete a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete plan: %w", err)
			}
			cmd.Printf("Deleted plan %s\n", args[0])
			return nil
		},
	}
}

func newPlansSubmitCmd(newClient clientFactory) *cobra.Command {
	var (
		url, image, file string
		preview          bool
		workers          int
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a URL or image for extraction",
		Long: `Submits one page URL and/or image. With --file, every non-empty line
of the file is submitted as a URL using --workers concurrent requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			ctx := cmd.Context()

			if file != "" {
				subs, err := readURLFile(file)
				if err != nil {
					return err
				}
				outcomes, stats := c.SubmitAll(ctx, subs, workers)
				for _, o := range outcomes {
					if o.Err != nil {
						cmd.Printf("  %s: %v\n", subs[o.Index].URL, o.Err)
						continue
					}
					cmd.Printf("  %s: %s\n", subs[o.Index].URL, o.ID)
				}
				cmd.Printf("Submitted: %d (success: %d, failed: %d)\n", stats.Submitted, stats.Successful, stats.Failed)
				if stats.Failed > 0 || stats.Submitted < len(subs) {
					return errors.New("some submissions failed")
				}
				return nil
			}

			in, err := readInput(url, image)
			if err != nil {
				return err
			}
			sub := client.Submission{URL: in.URL, Image: in.Image, ImageName: in.ImageName}
			if preview {
				rec, err := c.Preview(ctx, sub)
				if err != nil {
					return fmt.Errorf("failed to preview: %w", err)
				}
				return printJSON(cmd, rec)
			}
			id, err := c.Submit(ctx, sub)
			if err != nil {
				return fmt.Errorf("failed to submit: %w", err)
			}
			cmd.Printf("Created plan %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to scrape")
	cmd.Flags().StringVar(&image, "image", "", "image file to upload")
	cmd.Flags().StringVar(&file, "file", "", "file with one URL per line")
	cmd.Flags().BoolVar(&preview, "preview", false, "print the record without storing it")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent requests for --file")
	return cmd
}

func readURLFile(path string) ([]client.Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url file: %w", err)
	}
	defer f.Close()

	var subs []client.Submission
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		subs = append(subs, client.Submission{URL: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url file: %w", err)
	}
	if len(subs) == 0 {
		return nil, errors.New("url file has no entries")
	}
	return subs, nil
}
