package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// ErrIdentifierMismatch reports a record whose RPC and article differ.
var ErrIdentifierMismatch = errors.New("RPC and article identifiers differ")

// RequiredFieldsMiddleware drops items missing required fields.
// An empty string counts as missing.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, field := range m.Fields {
		val, ok := item.Get(field)
		if !ok || val == nil {
			return nil, nil
		}
		if s, isString := val.(string); isString && s == "" {
			return nil, nil
		}
	}
	return item, nil
}

// IdentifierConsistencyMiddleware rejects product records whose RPC differs
// from metadata["АРТИКУЛ"]. Items that are not product records pass through.
type IdentifierConsistencyMiddleware struct{}

func (m *IdentifierConsistencyMiddleware) Name() string { return "identifier_consistency" }

func (m *IdentifierConsistencyMiddleware) Process(item *types.Item) (*types.Item, error) {
	rec, ok := catalog.RecordFromItem(item)
	if !ok {
		return item, nil
	}
	if rec.RPC != rec.Metadata.Article {
		return nil, fmt.Errorf("%w: RPC %q, article %q", ErrIdentifierMismatch, rec.RPC, rec.Metadata.Article)
	}
	return item, nil
}

// DedupMiddleware drops items whose key field was already seen.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
	key  string // Field to use as dedup key
}

func NewDedupMiddleware(key string) *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
		key:  key,
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(item *types.Item) (*types.Item, error) {
	val := item.GetString(m.key)
	if val == "" {
		val = item.URL // Fallback to URL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[val]; exists {
		return nil, nil // Drop duplicate
	}
	m.seen[val] = struct{}{}
	return item, nil
}
