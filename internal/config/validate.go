package config

import (
	"fmt"
	"net/url"
)

var validStorageTypes = map[string]bool{
	"json": true, "jsonl": true, "csv": true, "mongodb": true, "postgres": true, "multi": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Site.Scheme != "http" && cfg.Site.Scheme != "https" {
		return fmt.Errorf("site.scheme must be 'http' or 'https', got %q", cfg.Site.Scheme)
	}
	if cfg.Site.Domain == "" {
		return fmt.Errorf("site.domain must be set")
	}
	for _, seed := range cfg.Site.Seeds {
		if err := ValidateURL(seed); err != nil {
			return fmt.Errorf("site.seeds: %q: %w", seed, err)
		}
	}
	if cfg.Site.LocalityCookie.Name == "" {
		return fmt.Errorf("site.locality_cookie.name must be set")
	}
	if err := validateSelectors(cfg.Site.Selectors); err != nil {
		return err
	}

	if cfg.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be >= 1, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.Concurrency > 1000 {
		return fmt.Errorf("engine.concurrency must be <= 1000, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}
	if cfg.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be >= 0, got %d", cfg.Engine.MaxRetries)
	}
	if cfg.Engine.MaxRequests < 0 {
		return fmt.Errorf("engine.max_requests must be >= 0, got %d", cfg.Engine.MaxRequests)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, csv, mongodb, postgres, multi)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "multi" {
		if len(cfg.Storage.Backends) == 0 {
			return fmt.Errorf("storage.backends must list at least one backend for type 'multi'")
		}
		for _, b := range cfg.Storage.Backends {
			if b == "multi" || !validStorageTypes[b] {
				return fmt.Errorf("storage.backends: unsupported backend %q", b)
			}
		}
	}
	if cfg.Storage.BatchSize < 1 {
		return fmt.Errorf("storage.batch_size must be >= 1, got %d", cfg.Storage.BatchSize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" && cfg.Logging.Output != "stdout" {
		return fmt.Errorf("logging.output must be 'stderr' or 'stdout', got %q", cfg.Logging.Output)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

func validateSelectors(sel SelectorsConfig) error {
	required := map[string]string{
		"product_links": sel.ProductLinks,
		"next_page":     sel.NextPage,
		"title":         sel.Title,
		"offer_status":  sel.OfferStatus,
		"price_items":   sel.PriceItems,
	}
	for key, expr := range required {
		if expr == "" {
			return fmt.Errorf("site.selectors.%s must be set", key)
		}
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
