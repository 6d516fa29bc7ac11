package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flag overrides are applied by the caller afterwards.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PHARMCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pharmcrawl")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pharmcrawl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Dump renders the configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// setDefaults registers default values in viper so env vars can override them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.scheme", cfg.Site.Scheme)
	v.SetDefault("site.domain", cfg.Site.Domain)
	v.SetDefault("site.seeds", cfg.Site.Seeds)
	v.SetDefault("site.locality_cookie.name", cfg.Site.LocalityCookie.Name)
	v.SetDefault("site.locality_cookie.value", cfg.Site.LocalityCookie.Value)

	sel := cfg.Site.Selectors
	v.SetDefault("site.selectors.product_links", sel.ProductLinks)
	v.SetDefault("site.selectors.next_page", sel.NextPage)
	v.SetDefault("site.selectors.title", sel.Title)
	v.SetDefault("site.selectors.marketing_tags", sel.MarketingTags)
	v.SetDefault("site.selectors.brand", sel.Brand)
	v.SetDefault("site.selectors.section", sel.Section)
	v.SetDefault("site.selectors.offer_status", sel.OfferStatus)
	v.SetDefault("site.selectors.price_items", sel.PriceItems)
	v.SetDefault("site.selectors.images", sel.Images)
	v.SetDefault("site.selectors.description", sel.Description)
	v.SetDefault("site.selectors.country", sel.Country)

	v.SetDefault("engine.concurrency", cfg.Engine.Concurrency)
	v.SetDefault("engine.request_timeout", cfg.Engine.RequestTimeout)
	v.SetDefault("engine.max_retries", cfg.Engine.MaxRetries)
	v.SetDefault("engine.max_requests", cfg.Engine.MaxRequests)
	v.SetDefault("engine.dedup_urls", cfg.Engine.DedupURLs)
	v.SetDefault("engine.user_agents", cfg.Engine.UserAgents)

	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("pipeline.required_fields", cfg.Pipeline.RequiredFields)
	v.SetDefault("pipeline.dedup_records", cfg.Pipeline.DedupRecords)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.backends", cfg.Storage.Backends)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.batch_size", cfg.Storage.BatchSize)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)
	v.SetDefault("storage.postgres.dsn", cfg.Storage.Postgres.DSN)
	v.SetDefault("storage.postgres.table", cfg.Storage.Postgres.Table)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
