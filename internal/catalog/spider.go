package catalog

import (
	"log/slog"

	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/parser"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// Spider adapts the paginator and extractor to the crawl engine's handler
// signature: a fetched page in, new requests and items out.
type Spider struct {
	paginator *Paginator
	extractor *Extractor
	logger    *slog.Logger
}

// NewSpider creates a Spider for the configured site.
func NewSpider(site config.SiteConfig, logger *slog.Logger) *Spider {
	return &Spider{
		paginator: NewPaginator(site, logger),
		extractor: NewExtractor(site, logger),
		logger:    logger.With("component", "spider"),
	}
}

// HandleListing expands a listing page into product requests plus, when the
// page has a next control, one request for the next listing page.
func (s *Spider) HandleListing(resp *types.Response) ([]*types.Item, []*types.Request, error) {
	doc, err := s.document(resp)
	if err != nil {
		return nil, nil, err
	}
	x, err := s.paginator.ExpandFrom(doc)
	if err != nil {
		return nil, nil, withURL(err, resp.URL())
	}

	reqs := make([]*types.Request, 0, len(x.ProductURLs)+1)
	for _, u := range x.ProductURLs {
		req, err := resp.Request.Follow(u, types.TagProduct)
		if err != nil {
			s.logger.Warn("product link skipped", "href", u, "error", err)
			continue
		}
		reqs = append(reqs, req)
	}

	if x.HasNext() {
		next, err := resp.Request.Follow(x.NextURL, types.TagListing)
		if err != nil {
			s.logger.Warn("next page link skipped", "href", x.NextURL, "error", err)
		} else {
			reqs = append(reqs, next)
		}
	} else {
		s.logger.Info("listing exhausted", "seed", resp.Request.Seed, "last_page", resp.URL())
	}

	return nil, reqs, nil
}

// HandleProduct extracts one product page into a single item.
func (s *Spider) HandleProduct(resp *types.Response) ([]*types.Item, []*types.Request, error) {
	doc, err := s.document(resp)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.extractor.ExtractFrom(resp.URL(), doc)
	if err != nil {
		return nil, nil, withURL(err, resp.URL())
	}
	item := rec.Item()
	item.Seed = resp.Request.Seed
	item.Depth = resp.Request.Depth
	return []*types.Item{item}, nil, nil
}

// document wraps the response's parsed tree so listing and product handlers
// share the engine's single parse of the body.
func (s *Spider) document(resp *types.Response) (*parser.XPathDocument, error) {
	root, err := resp.Root()
	if err != nil {
		return nil, &MalformedPageError{URL: resp.URL(), Field: "document", Err: err}
	}
	return parser.NewXPathDocument(root, s.logger), nil
}
