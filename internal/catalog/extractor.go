package catalog

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/parser"
)

// ProductPage is the fetched markup of one product detail page.
type ProductPage struct {
	URL  string
	Body []byte
}

// Extractor builds ProductRecords from product pages.
type Extractor struct {
	scheme string
	domain string
	sel    config.SelectorsConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewExtractor creates an Extractor for the configured site.
func NewExtractor(site config.SiteConfig, logger *slog.Logger) *Extractor {
	return &Extractor{
		scheme: site.Scheme,
		domain: site.Domain,
		sel:    site.Selectors,
		now:    time.Now,
		logger: logger.With("component", "product_extractor"),
	}
}

// Extract parses a product page and builds its record.
// A page missing its title, stock status, or (when in stock) its price block
// yields an error matching ErrMalformedPage and no record.
func (e *Extractor) Extract(page ProductPage) (*ProductRecord, error) {
	doc, err := parser.ParseXPathDocument(page.Body, e.logger)
	if err != nil {
		return nil, &MalformedPageError{URL: page.URL, Field: "document", Err: err}
	}
	rec, err := e.ExtractFrom(page.URL, doc)
	if err != nil {
		return nil, withURL(err, page.URL)
	}
	return rec, nil
}

// ExtractFrom builds a record from an already parsed page.
func (e *Extractor) ExtractFrom(pageURL string, q parser.Querier) (*ProductRecord, error) {
	title, err := e.requiredText(q, "title", e.sel.Title)
	if err != nil {
		return nil, err
	}

	offer, err := q.Texts(e.sel.OfferStatus)
	if err != nil {
		return nil, &MalformedPageError{Field: "offer_status", Err: err}
	}
	prices, err := q.Texts(e.sel.PriceItems)
	if err != nil {
		return nil, &MalformedPageError{Field: "price_items", Err: err}
	}
	inStock, price, err := EvaluateStockPrice(offer, prices)
	if err != nil {
		return nil, err
	}

	tags, err := e.texts(q, e.sel.MarketingTags)
	if err != nil {
		return nil, &MalformedPageError{Field: "marketing_tags", Err: err}
	}
	section, err := e.texts(q, e.sel.Section)
	if err != nil {
		return nil, &MalformedPageError{Field: "section", Err: err}
	}
	brand, err := e.optionalText(q, e.sel.Brand)
	if err != nil {
		return nil, &MalformedPageError{Field: "brand", Err: err}
	}
	country, err := e.optionalText(q, e.sel.Country)
	if err != nil {
		return nil, &MalformedPageError{Field: "country", Err: err}
	}

	var images []string
	if e.sel.Images != "" {
		if images, err = q.Texts(e.sel.Images); err != nil {
			return nil, &MalformedPageError{Field: "images", Err: err}
		}
	}

	description, err := e.description(q)
	if err != nil {
		return nil, &MalformedPageError{Field: "description", Err: err}
	}

	id := IdentifierFromURL(pageURL)

	rec := &ProductRecord{
		Timestamp:     unixSeconds(e.now()),
		RPC:           id,
		URL:           pageURL,
		Title:         title,
		MarketingTags: tags,
		Brand:         brand,
		Section:       section,
		PriceData:     price,
		Stock:         StockInfo{InStock: inStock, Count: 0},
		Assets:        ResolveAssets(e.scheme, e.domain, images),
		Metadata: Metadata{
			Description: description,
			Article:     id,
			Country:     country,
		},
		Variants: 1,
	}

	e.logger.Debug("product extracted", "url", pageURL, "rpc", id, "in_stock", inStock)
	return rec, nil
}

// IdentifierFromURL returns the part of the URL after its last underscore,
// or the whole URL when it has none.
func IdentifierFromURL(pageURL string) string {
	return pageURL[strings.LastIndex(pageURL, "_")+1:]
}

func (e *Extractor) requiredText(q parser.Querier, field, expr string) (string, error) {
	raw, ok, err := q.First(expr)
	if err != nil {
		return "", &MalformedPageError{Field: field, Err: err}
	}
	if !ok {
		return "", missing(field)
	}
	text := NormalizeText(raw)
	if text == "" {
		return "", missing(field)
	}
	return text, nil
}

// optionalText returns nil when expr is unset or matches nothing, so an
// absent element stays distinguishable from an empty one.
func (e *Extractor) optionalText(q parser.Querier, expr string) (*string, error) {
	if expr == "" {
		return nil, nil
	}
	raw, ok, err := q.First(expr)
	if err != nil || !ok {
		return nil, err
	}
	text := NormalizeText(raw)
	return &text, nil
}

func (e *Extractor) texts(q parser.Querier, expr string) ([]string, error) {
	if expr == "" {
		return []string{}, nil
	}
	raw, err := q.Texts(expr)
	if err != nil {
		return nil, err
	}
	return Normalize(raw), nil
}

// description strips markup from each child of the description block,
// normalizes the text and joins the fragments with single spaces.
func (e *Extractor) description(q parser.Querier) (string, error) {
	if e.sel.Description == "" {
		return "", nil
	}
	fragments, err := q.OuterHTML(e.sel.Description)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(fragments))
	for i, fragment := range fragments {
		text, err := StripMarkup(fragment)
		if err != nil {
			return "", fmt.Errorf("strip markup: %w", err)
		}
		parts[i] = NormalizeText(text)
	}
	return strings.Join(parts, " "), nil
}
