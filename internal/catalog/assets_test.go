package catalog

import "testing"

func TestAbsolutize(t *testing.T) {
	tests := []struct {
		href     string
		expected string
	}{
		{"/catalog/item_123", "https://apteka-ot-sklada.ru/catalog/item_123"},
		{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"//cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"catalog/x", "https://apteka-ot-sklada.ru/catalog/x"},
		{"  /padded  ", "https://apteka-ot-sklada.ru/padded"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Absolutize("https", "apteka-ot-sklada.ru", tt.href); got != tt.expected {
			t.Errorf("Absolutize(%q): expected %q, got %q", tt.href, tt.expected, got)
		}
	}
}

func TestResolveAssets(t *testing.T) {
	bundle := ResolveAssets("https", "apteka-ot-sklada.ru", []string{"/a.jpg", "/b.jpg", "/a.jpg"})

	if len(bundle.SetImages) != 3 {
		t.Fatalf("duplicates must be kept, got %v", bundle.SetImages)
	}
	if bundle.MainImage != bundle.SetImages[0] {
		t.Errorf("main image %q should equal first set image %q", bundle.MainImage, bundle.SetImages[0])
	}
	if bundle.SetImages[1] != "https://apteka-ot-sklada.ru/b.jpg" {
		t.Errorf("order not preserved: %v", bundle.SetImages)
	}
	if bundle.View360 == nil || bundle.Video == nil || len(bundle.View360) != 0 || len(bundle.Video) != 0 {
		t.Errorf("view360/video must be empty non-nil, got %#v %#v", bundle.View360, bundle.Video)
	}
}

func TestResolveAssetsEmpty(t *testing.T) {
	bundle := ResolveAssets("https", "apteka-ot-sklada.ru", nil)
	if bundle.MainImage != "" || len(bundle.SetImages) != 0 {
		t.Errorf("expected empty bundle, got %+v", bundle)
	}
}
