package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for PharmCrawl.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"     yaml:"site"`
	Engine   EngineConfig   `mapstructure:"engine"   yaml:"engine"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// SiteConfig describes the catalog being crawled.
type SiteConfig struct {
	Scheme         string          `mapstructure:"scheme"          yaml:"scheme"`
	Domain         string          `mapstructure:"domain"          yaml:"domain"`
	Seeds          []string        `mapstructure:"seeds"           yaml:"seeds"`
	LocalityCookie CookieConfig    `mapstructure:"locality_cookie" yaml:"locality_cookie"`
	Selectors      SelectorsConfig `mapstructure:"selectors"       yaml:"selectors"`
}

// CookieConfig is the locality cookie attached to every request.
type CookieConfig struct {
	Name  string `mapstructure:"name"  yaml:"name"`
	Value string `mapstructure:"value" yaml:"value"`
}

// SelectorsConfig holds the XPath expressions used against catalog markup.
type SelectorsConfig struct {
	ProductLinks  string `mapstructure:"product_links"  yaml:"product_links"`
	NextPage      string `mapstructure:"next_page"      yaml:"next_page"`
	Title         string `mapstructure:"title"          yaml:"title"`
	MarketingTags string `mapstructure:"marketing_tags" yaml:"marketing_tags"`
	Brand         string `mapstructure:"brand"          yaml:"brand"`
	Section       string `mapstructure:"section"        yaml:"section"`
	OfferStatus   string `mapstructure:"offer_status"   yaml:"offer_status"`
	PriceItems    string `mapstructure:"price_items"    yaml:"price_items"`
	Images        string `mapstructure:"images"         yaml:"images"`
	Description   string `mapstructure:"description"    yaml:"description"`
	Country       string `mapstructure:"country"        yaml:"country"`
}

// EngineConfig controls the crawl engine.
type EngineConfig struct {
	Concurrency    int           `mapstructure:"concurrency"     yaml:"concurrency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	MaxRequests    int           `mapstructure:"max_requests"    yaml:"max_requests"`
	DedupURLs      bool          `mapstructure:"dedup_urls"      yaml:"dedup_urls"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// PipelineConfig controls the record pipeline.
type PipelineConfig struct {
	RequiredFields []string `mapstructure:"required_fields" yaml:"required_fields"`
	DedupRecords   bool     `mapstructure:"dedup_records"   yaml:"dedup_records"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type       string         `mapstructure:"type"        yaml:"type"`
	Backends   []string       `mapstructure:"backends"    yaml:"backends"`
	OutputPath string         `mapstructure:"output_path" yaml:"output_path"`
	BatchSize  int            `mapstructure:"batch_size"  yaml:"batch_size"`
	Mongo      MongoConfig    `mapstructure:"mongo"       yaml:"mongo"`
	Postgres   PostgresConfig `mapstructure:"postgres"    yaml:"postgres"`
}

// MongoConfig locates the MongoDB collection for records.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// PostgresConfig locates the Postgres table for records.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"   yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultSelectors returns the XPath expressions for the apteka-ot-sklada.ru markup.
func DefaultSelectors() SelectorsConfig {
	return SelectorsConfig{
		ProductLinks:  "//div[@class='goods-grid__inner']/div//a[@class='goods-card__link']/@href",
		NextPage:      "//li[contains(@class, 'item_next')]/a/@href",
		Title:         "//h1//span/text()",
		MarketingTags: "//span[@class='ui-tag text text_weight_medium ui-tag_theme_secondary']/text()",
		Brand:         "//span[@itemtype='legalName']/text()",
		Section:       "//ul[@class='ui-breadcrumbs__list']/li//span[@itemprop='name']/text()",
		OfferStatus:   "//div[@class='goods-offer-panel']/div/text()",
		PriceItems:    "//div[@class='goods-offer-panel__price']/span/text()",
		Images:        "//ul[@class='goods-gallery__preview-list']/li//img/@src",
		Description:   "//div[@itemprop='description']/*",
		Country:       "//span[@itemtype='location']/text()",
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Scheme: "https",
			Domain: "apteka-ot-sklada.ru",
			Seeds: []string{
				"https://apteka-ot-sklada.ru/catalog/medikamenty-i-bady/vitaminy-i-mikroelementy/vitaminy-kompleksnye-_multivitaminy_?start=0",
				"https://apteka-ot-sklada.ru/catalog/medikamenty-i-bady/antistressovoe-deystvie/uspokoitelnye",
				"https://apteka-ot-sklada.ru/catalog/medikamenty-i-bady/antistressovoe-deystvie/antidepressanty",
			},
			LocalityCookie: CookieConfig{Name: "city", Value: "92"},
			Selectors:      DefaultSelectors(),
		},
		Engine: EngineConfig{
			Concurrency:    8,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Pipeline: PipelineConfig{
			RequiredFields: []string{"url", "title"},
		},
		Storage: StorageConfig{
			Type:       "jsonl",
			OutputPath: "./output",
			BatchSize:  50,
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "pharmcrawl",
				Collection: "products",
			},
			Postgres: PostgresConfig{
				Table: "products",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
