package types

import "time"

// Item is one record flowing from a handler through the pipeline into storage.
type Item struct {
	// Fields stores the record's top-level keys.
	Fields map[string]any

	// URL is the source page URL this item was extracted from.
	URL string

	// Seed is the seed listing URL whose traversal reached the page.
	Seed string

	// Timestamp is when this item was created.
	Timestamp time.Time

	// Depth is the listing depth at which the page was found.
	Depth int
}

// NewItem creates a new empty Item from a source URL.
func NewItem(sourceURL string) *Item {
	return &Item{
		Fields:    make(map[string]any),
		URL:       sourceURL,
		Timestamp: time.Now(),
	}
}

// Set sets a field value.
func (i *Item) Set(key string, value any) {
	i.Fields[key] = value
}

// Get retrieves a field value.
func (i *Item) Get(key string) (any, bool) {
	v, ok := i.Fields[key]
	return v, ok
}

// GetString retrieves a field value as a string.
func (i *Item) GetString(key string) string {
	v, ok := i.Fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Document returns the fields as a plain map, the shape written by storage backends.
func (i *Item) Document() map[string]any {
	doc := make(map[string]any, len(i.Fields))
	for k, v := range i.Fields {
		doc[k] = v
	}
	return doc
}
