package types

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Priority levels for request scheduling. Products outrank listings so
// records flow while pagination continues; retries go last.
const (
	PriorityHigh = iota
	PriorityNormal
	PriorityLow

	PriorityLevels
)

// Request tags select the handler a fetched page is dispatched to.
const (
	TagListing = "listing"
	TagProduct = "product"
)

// Request represents a page to be fetched by the crawler.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Depth counts how many listing pages led to this request.
	Depth int

	// Priority controls scheduling order (lower = higher priority).
	Priority int

	// MaxRetries is the maximum number of retries for this request.
	MaxRetries int

	// RetryCount tracks the current retry attempt.
	RetryCount int

	// Tag names the handler for the response ("listing" or "product").
	Tag string

	// Seed is the seed listing URL whose traversal produced this request.
	Seed string

	// ParentURL is the listing page this request was discovered on.
	ParentURL string

	// ID is a unique identifier for this request.
	ID string
}

// NewRequest creates a new Request with sensible defaults.
func NewRequest(rawURL, tag string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}

	priority := PriorityNormal
	if tag == TagProduct {
		priority = PriorityHigh
	}

	return &Request{
		URL:        u,
		Priority:   priority,
		MaxRetries: 3,
		Tag:        tag,
		ID:         uuid.NewString(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// Follow derives a request discovered on r's page. Seed and depth are inherited.
func (r *Request) Follow(rawURL, tag string) (*Request, error) {
	next, err := NewRequest(rawURL, tag)
	if err != nil {
		return nil, err
	}
	next.Seed = r.Seed
	next.ParentURL = r.URLString()
	next.MaxRetries = r.MaxRetries
	next.Depth = r.Depth
	if tag == TagListing {
		next.Depth = r.Depth + 1
	}
	return next, nil
}
