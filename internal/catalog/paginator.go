package catalog

import (
	"log/slog"

	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/parser"
)

// ListingPage is the fetched markup of one catalog listing page.
type ListingPage struct {
	URL  string
	Body []byte
}

// Expansion is what one listing page contributes to the crawl.
type Expansion struct {
	// ProductURLs are the absolute product page URLs, in page order.
	ProductURLs []string

	// NextURL is the absolute URL of the next listing page, empty on the last page.
	NextURL string
}

// HasNext reports whether the listing continues on another page.
func (x *Expansion) HasNext() bool {
	return x.NextURL != ""
}

// Paginator expands listing pages into product URLs and the next page.
type Paginator struct {
	scheme       string
	domain       string
	productLinks string
	nextPage     string
	logger       *slog.Logger
}

// NewPaginator creates a Paginator for the configured site.
func NewPaginator(site config.SiteConfig, logger *slog.Logger) *Paginator {
	return &Paginator{
		scheme:       site.Scheme,
		domain:       site.Domain,
		productLinks: site.Selectors.ProductLinks,
		nextPage:     site.Selectors.NextPage,
		logger:       logger.With("component", "catalog_paginator"),
	}
}

// Expand parses a listing page. There is no page limit: the traversal ends on
// the first page without a next-page control.
func (p *Paginator) Expand(page ListingPage) (*Expansion, error) {
	doc, err := parser.ParseXPathDocument(page.Body, p.logger)
	if err != nil {
		return nil, &MalformedPageError{URL: page.URL, Field: "document", Err: err}
	}
	x, err := p.ExpandFrom(doc)
	if err != nil {
		return nil, withURL(err, page.URL)
	}
	p.logger.Debug("listing expanded", "url", page.URL, "products", len(x.ProductURLs), "next", x.NextURL)
	return x, nil
}

// ExpandFrom expands an already parsed listing page.
func (p *Paginator) ExpandFrom(q parser.Querier) (*Expansion, error) {
	hrefs, err := q.Texts(p.productLinks)
	if err != nil {
		return nil, &MalformedPageError{Field: "product_links", Err: err}
	}

	x := &Expansion{ProductURLs: make([]string, 0, len(hrefs))}
	for _, href := range hrefs {
		if abs := Absolutize(p.scheme, p.domain, href); abs != "" {
			x.ProductURLs = append(x.ProductURLs, abs)
		}
	}

	next, ok, err := q.First(p.nextPage)
	if err != nil {
		return nil, &MalformedPageError{Field: "next_page", Err: err}
	}
	if ok {
		x.NextURL = Absolutize(p.scheme, p.domain, next)
	}
	return x, nil
}
