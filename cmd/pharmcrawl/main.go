package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/engine"
	"github.com/IshaanNene/PharmCrawl/internal/fetcher"
	"github.com/IshaanNene/PharmCrawl/internal/observability"
	"github.com/IshaanNene/PharmCrawl/internal/pipeline"
	"github.com/IshaanNene/PharmCrawl/internal/storage"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	outputPath  string
	outputType  string
	concurrent  int
	maxRequests int
	maxRetries  int
	city        string
	dedup       bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pharmcrawl",
		Short: "PharmCrawl crawls the apteka-ot-sklada.ru catalog into product records",
		Long: `PharmCrawl walks catalog listing pages, follows every product card and
emits one normalized record per product page: title, sections, marketing
tags, brand, stock, price with discount tag, images and description.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(crawlCmd())
	root.AddCommand(extractCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())
	return root
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl catalog listings and write product records",
		Long:  "Crawl from the given listing URLs, or from site.seeds when none are given.",
		RunE:  runCrawl,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory for file storage")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "storage type: json, jsonl, csv, mongodb, postgres, multi")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "number of concurrent workers")
	cmd.Flags().IntVarP(&maxRequests, "max-requests", "m", 0, "maximum total requests (0 = unlimited)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "max retries per failed request (-1 = config value)")
	cmd.Flags().StringVar(&city, "city", "", "locality cookie value")
	cmd.Flags().BoolVar(&dedup, "dedup", false, "fetch each URL once and emit each RPC once across seeds")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCLIOverrides(cfg, args)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	logger.Info("starting crawl",
		"seeds", len(cfg.Site.Seeds),
		"domain", cfg.Site.Domain,
		"city", cfg.Site.LocalityCookie.Value,
		"concurrency", cfg.Engine.Concurrency,
		"storage", cfg.Storage.Type,
	)

	eng := engine.New(cfg, logger)

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	eng.SetFetcher(httpFetcher)
	eng.SetPipeline(pipeline.FromConfig(cfg.Pipeline, logger))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	eng.SetStorage(store)

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		eng.SetMetrics(metrics)
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	spider := catalog.NewSpider(cfg.Site, logger)
	eng.Handle(types.TagListing, spider.HandleListing)
	eng.Handle(types.TagProduct, spider.HandleProduct)

	var seedsAdded int
	for _, seed := range cfg.Site.Seeds {
		if err := eng.AddSeed(seed, types.TagListing); err != nil {
			logger.Warn("seed skipped", "url", seed, "reason", err)
			continue
		}
		seedsAdded++
	}
	if seedsAdded == 0 {
		store.Close()
		return fmt.Errorf("no usable seeds")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		logger.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	start := time.Now()
	if err := eng.Start(); err != nil {
		store.Close()
		return fmt.Errorf("start engine: %w", err)
	}
	eng.Wait()

	elapsed := time.Since(start)
	stats := eng.Stats().Snapshot()
	logger.Info("crawl complete",
		"elapsed", elapsed,
		"requests", stats["requests_sent"],
		"records", stats["items_scraped"],
		"skipped", stats["pages_skipped"],
		"errors", stats["responses_error"],
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Crawl complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  Requests: %v sent, %v failed, %v retried\n", stats["requests_sent"], stats["requests_failed"], stats["requests_retried"])
	fmt.Fprintf(out, "  Pages:    %v skipped\n", stats["pages_skipped"])
	fmt.Fprintf(out, "  Records:  %v written, %v dropped\n", stats["items_scraped"], stats["items_dropped"])
	fmt.Fprintf(out, "  Storage:  %s\n", describeStorage(cfg.Storage))
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "PharmCrawl %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setupLogger creates the structured logger described by cfg.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		w = os.Stdout
	}
	return newLogger(cfg, w)
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config, seeds []string) {
	if len(seeds) > 0 {
		cfg.Site.Seeds = seeds
	}
	if concurrent > 0 {
		cfg.Engine.Concurrency = concurrent
	}
	if maxRequests > 0 {
		cfg.Engine.MaxRequests = maxRequests
	}
	if maxRetries >= 0 {
		cfg.Engine.MaxRetries = maxRetries
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if city != "" {
		cfg.Site.LocalityCookie.Value = city
	}
	if dedup {
		cfg.Engine.DedupURLs = true
		cfg.Pipeline.DedupRecords = true
	}
}

func describeStorage(cfg config.StorageConfig) string {
	switch cfg.Type {
	case "mongodb":
		return fmt.Sprintf("mongodb %s.%s", cfg.Mongo.Database, cfg.Mongo.Collection)
	case "postgres":
		return "postgres table " + cfg.Postgres.Table
	case "multi":
		return "multi " + strings.Join(cfg.Backends, ",")
	default:
		return fmt.Sprintf("%s in %s", cfg.Type, cfg.OutputPath)
	}
}
