package catalog

import (
	"net/url"
	"strings"
)

// Absolutize turns a domain-relative href into an absolute URL on
// scheme://domain. Absolute hrefs are returned unchanged.
func Absolutize(scheme, domain, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return scheme + ":" + href
	}
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return scheme + "://" + domain + href
	}

	base := &url.URL{Scheme: scheme, Host: domain, Path: "/"}
	ref, err := url.Parse(href)
	if err != nil {
		return scheme + "://" + domain + "/" + href
	}
	return base.ResolveReference(ref).String()
}

// ResolveAssets absolutizes image hrefs and builds the asset bundle.
// The main image is the first resolved image; order and duplicates are kept.
func ResolveAssets(scheme, domain string, hrefs []string) AssetBundle {
	bundle := AssetBundle{
		SetImages: make([]string, 0, len(hrefs)),
		View360:   []string{},
		Video:     []string{},
	}
	for _, href := range hrefs {
		if abs := Absolutize(scheme, domain, href); abs != "" {
			bundle.SetImages = append(bundle.SetImages, abs)
		}
	}
	if len(bundle.SetImages) > 0 {
		bundle.MainImage = bundle.SetImages[0]
	}
	return bundle
}
