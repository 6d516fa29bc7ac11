package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func productItem(rpc, article string) *types.Item {
	rec := &catalog.ProductRecord{
		Timestamp:     1709294400.5,
		RPC:           rpc,
		URL:           "https://apteka-ot-sklada.ru/catalog/item_" + rpc,
		Title:         "Компливит",
		MarketingTags: []string{},
		Section:       []string{"Главная"},
		PriceData:     catalog.PriceData{Current: 100, Original: 100},
		Stock:         catalog.StockInfo{InStock: true},
		Assets:        catalog.ResolveAssets("https", "apteka-ot-sklada.ru", nil),
		Metadata:      catalog.Metadata{Article: article},
		Variants:      1,
	}
	return rec.Item()
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"url", "title"}}

	result, err := m.Process(productItem("1", "1"))
	if err != nil || result == nil {
		t.Fatal("complete record should pass")
	}

	missing := productItem("1", "1")
	delete(missing.Fields, "title")
	if result, _ := m.Process(missing); result != nil {
		t.Error("record without title should be dropped")
	}

	empty := productItem("1", "1")
	empty.Set("url", "")
	if result, _ := m.Process(empty); result != nil {
		t.Error("record with empty url should be dropped")
	}
}

func TestIdentifierConsistencyMiddleware(t *testing.T) {
	m := &IdentifierConsistencyMiddleware{}

	if result, err := m.Process(productItem("123", "123")); err != nil || result == nil {
		t.Errorf("consistent record should pass, got err %v", err)
	}

	_, err := m.Process(productItem("123", "456"))
	if !errors.Is(err, ErrIdentifierMismatch) {
		t.Errorf("expected ErrIdentifierMismatch, got %v", err)
	}

	other := types.NewItem("https://example.com")
	other.Set("title", "x")
	if result, err := m.Process(other); err != nil || result == nil {
		t.Error("non-product items should pass through")
	}
}

func TestDedupMiddleware(t *testing.T) {
	m := NewDedupMiddleware("RPC")

	if result, _ := m.Process(productItem("1", "1")); result == nil {
		t.Fatal("first record should pass")
	}
	if result, _ := m.Process(productItem("1", "1")); result != nil {
		t.Error("second record with the same RPC should be dropped")
	}
	if result, _ := m.Process(productItem("2", "2")); result == nil {
		t.Error("different RPC should pass")
	}
}

func TestPipelineFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Pipeline
	p := FromConfig(cfg, testLogger)
	if len(p.middlewares) != 2 {
		t.Fatalf("expected 2 middleware without dedup, got %d", len(p.middlewares))
	}

	// Records reached from two seeds are both kept by default.
	for i := 0; i < 2; i++ {
		result, err := p.Process(productItem("7", "7"))
		if err != nil || result == nil {
			t.Fatalf("pass %d: record should be kept, err %v", i, err)
		}
	}

	cfg.DedupRecords = true
	p = FromConfig(cfg, testLogger)
	p.Process(productItem("7", "7"))
	if result, _ := p.Process(productItem("7", "7")); result != nil {
		t.Error("dedup_records should drop the repeated record")
	}
}

func TestPipelineWrapsErrors(t *testing.T) {
	p := FromConfig(config.DefaultConfig().Pipeline, testLogger)

	_, err := p.Process(productItem("1", "2"))
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pe.Stage != "identifier_consistency" {
		t.Errorf("stage: got %q", pe.Stage)
	}
}

func TestPipelineKeepsEmptyIdentifier(t *testing.T) {
	p := FromConfig(config.DefaultConfig().Pipeline, testLogger)

	// A product URL ending in "_" has an empty RPC and АРТИКУЛ.
	result, err := p.Process(productItem("", ""))
	if err != nil || result == nil {
		t.Fatalf("record with empty identifier should be kept, got %v, err %v", result, err)
	}
}
