package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
)

var (
	extractURL     string
	extractListing bool
)

// extractCmd runs the extractor or paginator on a saved page, which is how
// selector changes get checked against a fresh copy of the site markup.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file.html>",
		Short: "Extract a product record (or listing expansion) from a saved page",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}

	cmd.Flags().StringVarP(&extractURL, "url", "u", "", "URL the page was saved from (sets RPC and resolves links)")
	cmd.Flags().BoolVar(&extractListing, "listing", false, "treat the page as a catalog listing")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}

	var out any
	if extractListing {
		x, err := catalog.NewPaginator(cfg.Site, logger).Expand(catalog.ListingPage{URL: extractURL, Body: body})
		if err != nil {
			return err
		}
		out = x
	} else {
		rec, err := catalog.NewExtractor(cfg.Site, logger).Extract(catalog.ProductPage{URL: extractURL, Body: body})
		if err != nil {
			return err
		}
		out = rec
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
