package fetcher

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"

	"github.com/IshaanNene/PharmCrawl/internal/config"
)

// LocalitySession owns the cookie jar shared by every request and keeps the
// locality cookie in it. The catalog prices and stocks products per city, so
// a request without the cookie would see another region's offer.
type LocalitySession struct {
	jar    *cookiejar.Jar
	site   *url.URL
	name   string
	value  string
	logger *slog.Logger
}

// NewLocalitySession creates a jar seeded with the configured locality cookie
// for the site domain.
func NewLocalitySession(site config.SiteConfig, logger *slog.Logger) (*LocalitySession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	s := &LocalitySession{
		jar:    jar,
		site:   &url.URL{Scheme: site.Scheme, Host: site.Domain, Path: "/"},
		name:   site.LocalityCookie.Name,
		value:  site.LocalityCookie.Value,
		logger: logger.With("component", "locality_session"),
	}
	s.Ensure()
	s.logger.Debug("locality cookie seeded", "domain", site.Domain, "name", s.name, "value", s.value)
	return s, nil
}

// Jar returns the session's cookie jar.
func (s *LocalitySession) Jar() http.CookieJar {
	return s.jar
}

// Locality returns the locality cookie the jar currently holds for the site.
func (s *LocalitySession) Locality() (string, bool) {
	for _, c := range s.jar.Cookies(s.site) {
		if c.Name == s.name {
			return c.Value, true
		}
	}
	return "", false
}

// Ensure restores the configured locality cookie if the site has replaced
// or expired it.
func (s *LocalitySession) Ensure() {
	if v, ok := s.Locality(); ok && v == s.value {
		return
	}
	s.jar.SetCookies(s.site, []*http.Cookie{{
		Name:  s.name,
		Value: s.value,
		Path:  "/",
	}})
}
