package catalog

import (
	"errors"
	"net/http"
	"testing"

	"github.com/IshaanNene/PharmCrawl/internal/types"
)

func testResponse(t *testing.T, rawURL, tag, seed, body string) *types.Response {
	t.Helper()
	req, err := types.NewRequest(rawURL, tag)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Seed = seed
	return types.NewResponse(req, &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}, []byte(body), 0)
}

func TestSpiderHandleListing(t *testing.T) {
	s := NewSpider(testSite(), testLogger)
	resp := testResponse(t, listingURL, types.TagListing, listingURL,
		listingHTML([]string{"/catalog/a_1", "/catalog/b_2"}, "/catalog/uspokoitelnye?start=12"))

	items, reqs, err := s.HandleListing(resp)
	if err != nil {
		t.Fatalf("handle listing: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("listing pages yield no items, got %d", len(items))
	}
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}

	for _, r := range reqs[:2] {
		if r.Tag != types.TagProduct {
			t.Errorf("%s: expected product tag, got %q", r.URLString(), r.Tag)
		}
		if r.Seed != listingURL {
			t.Errorf("%s: seed not inherited", r.URLString())
		}
		if r.Depth != 0 {
			t.Errorf("%s: product depth should match listing, got %d", r.URLString(), r.Depth)
		}
		if r.ParentURL != listingURL {
			t.Errorf("%s: parent %q", r.URLString(), r.ParentURL)
		}
	}

	next := reqs[2]
	if next.Tag != types.TagListing || next.Depth != 1 {
		t.Errorf("next request: tag %q depth %d", next.Tag, next.Depth)
	}
	if next.URLString() != "https://apteka-ot-sklada.ru/catalog/uspokoitelnye?start=12" {
		t.Errorf("next url: %s", next.URLString())
	}
}

func TestSpiderHandleLastListing(t *testing.T) {
	s := NewSpider(testSite(), testLogger)
	resp := testResponse(t, listingURL, types.TagListing, listingURL, listingHTML([]string{"/catalog/a_1"}, ""))

	_, reqs, err := s.HandleListing(resp)
	if err != nil {
		t.Fatalf("handle listing: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Tag != types.TagProduct {
		t.Errorf("expected one product request, got %d", len(reqs))
	}
}

func TestSpiderHandleProduct(t *testing.T) {
	s := NewSpider(testSite(), testLogger)
	resp := testResponse(t, productURL, types.TagProduct, listingURL, productHTML("В наличии", "150", "200"))

	items, reqs, err := s.HandleProduct(resp)
	if err != nil {
		t.Fatalf("handle product: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("product pages yield no requests, got %d", len(reqs))
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Seed != listingURL {
		t.Errorf("seed: got %q", item.Seed)
	}
	rec, ok := RecordFromItem(item)
	if !ok {
		t.Fatal("item does not carry a product record")
	}
	if rec.RPC != "12345" || rec.PriceData.SaleTag != "Скидка 25.0%" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestSpiderHandleMalformedProduct(t *testing.T) {
	s := NewSpider(testSite(), testLogger)
	resp := testResponse(t, productURL, types.TagProduct, listingURL, `<html><body></body></html>`)

	items, _, err := s.HandleProduct(resp)
	if !errors.Is(err, ErrMalformedPage) {
		t.Fatalf("expected ErrMalformedPage, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("malformed page must emit no items, got %d", len(items))
	}
}

func TestSpiderHandleEmptyBody(t *testing.T) {
	s := NewSpider(testSite(), testLogger)
	resp := testResponse(t, productURL, types.TagProduct, listingURL, "")

	if _, _, err := s.HandleProduct(resp); !errors.Is(err, types.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
