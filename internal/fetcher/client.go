package fetcher

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/IshaanNene/PharmCrawl/internal/config"
)

// newClient builds the HTTP client shared by every catalog request. The
// transport leaves Accept-Encoding to Fetch so brotli can be negotiated.
func newClient(cfg *config.Config, jar http.CookieJar) *http.Client {
	fc := cfg.Fetcher
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}

	return &http.Client{
		Jar:     jar,
		Timeout: cfg.Engine.RequestTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			MaxIdleConns:        fc.MaxIdleConns,
			MaxIdleConnsPerHost: fc.MaxIdleConns,
			IdleConnTimeout:     fc.IdleConnTimeout,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: fc.TLSInsecure},
			DisableCompression:  true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !fc.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= fc.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", fc.MaxRedirects)
			}
			return nil
		},
	}
}
