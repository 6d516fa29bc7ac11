package types

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func TestNewRequestDefaults(t *testing.T) {
	req, err := NewRequest("https://example.com/catalog", TagListing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Priority != PriorityNormal {
		t.Errorf("expected normal priority for listing, got %d", req.Priority)
	}
	if req.ID == "" {
		t.Error("expected request ID")
	}

	product, _ := NewRequest("https://example.com/catalog/item_1", TagProduct)
	if product.Priority >= req.Priority {
		t.Errorf("product requests should outrank listings: %d vs %d", product.Priority, req.Priority)
	}
}

func TestNewRequestRejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"ftp://example.com/x", "/relative/path", "::bad"} {
		if _, err := NewRequest(raw, TagProduct); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("%q: expected ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestRequestFollow(t *testing.T) {
	seed, _ := NewRequest("https://example.com/catalog", TagListing)
	seed.Seed = seed.URLString()

	next, err := seed.Follow("https://example.com/catalog?start=12", TagListing)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if next.Depth != 1 || next.Seed != seed.Seed || next.ParentURL != seed.URLString() {
		t.Errorf("unexpected listing follow: depth=%d seed=%q parent=%q", next.Depth, next.Seed, next.ParentURL)
	}

	product, _ := next.Follow("https://example.com/catalog/item_9", TagProduct)
	if product.Depth != 1 {
		t.Errorf("product requests keep listing depth, got %d", product.Depth)
	}
}

func TestResponseURLFallback(t *testing.T) {
	req, _ := NewRequest("https://example.com/a_1", TagProduct)
	resp := &Response{Request: req}
	if resp.URL() != "https://example.com/a_1" {
		t.Errorf("expected request URL fallback, got %q", resp.URL())
	}

	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Request:    &http.Request{URL: &url.URL{Scheme: "https", Host: "example.com", Path: "/b_2"}},
	}
	resp = NewResponse(req, httpResp, []byte("<html></html>"), 0)
	if resp.URL() != "https://example.com/b_2" {
		t.Errorf("expected redirected URL, got %q", resp.URL())
	}
}

func TestResponseRootEmptyBody(t *testing.T) {
	req, _ := NewRequest("https://example.com/a_1", TagProduct)
	resp := &Response{Request: req}
	if _, err := resp.Root(); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestItemDocumentIsACopy(t *testing.T) {
	item := NewItem("https://example.com/a_1")
	item.Set("title", "Аспирин")
	item.Set("section", []string{"Главная", "Лекарства"})

	doc := item.Document()
	doc["title"] = "changed"
	if item.GetString("title") != "Аспирин" {
		t.Errorf("document edits leaked into the item: %q", item.GetString("title"))
	}
	if _, ok := doc["section"].([]string); !ok || len(doc) != 2 {
		t.Errorf("unexpected document %v", doc)
	}
	if item.GetString("section") != "" {
		t.Error("non-string fields should read as empty strings")
	}
}

func TestPriorityLevels(t *testing.T) {
	if !(PriorityHigh < PriorityNormal && PriorityNormal < PriorityLow && PriorityLow < PriorityLevels) {
		t.Errorf("priorities out of order: %d %d %d %d", PriorityHigh, PriorityNormal, PriorityLow, PriorityLevels)
	}
}
