// Package pipeline runs scraped items through a chain of checks before storage.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Return nil to drop the item from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an item. Return nil to drop the item.
	Process(item *types.Item) (*types.Item, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// FromConfig builds the record pipeline: required fields first, then the
// identifier check, then record dedup when enabled.
func FromConfig(cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	if len(cfg.RequiredFields) > 0 {
		p.Use(&RequiredFieldsMiddleware{Fields: cfg.RequiredFields})
	}
	p.Use(&IdentifierConsistencyMiddleware{})
	if cfg.DedupRecords {
		p.Use(NewDedupMiddleware("RPC"))
	}
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the item through all middleware in order.
// A dropped item yields (nil, nil).
func (p *Pipeline) Process(item *types.Item) (*types.Item, error) {
	current := item

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Item:  current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("item dropped", "stage", mw.Name(), "url", item.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}
