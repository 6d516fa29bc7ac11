package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

const (
	defaultBackoff = 5 * time.Second
	maxBackoff     = 2 * time.Minute
)

var decoders = map[string]func(io.Reader) (io.Reader, error){
	"gzip":    func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	"deflate": func(r io.Reader) (io.Reader, error) { return flate.NewReader(r), nil },
	"br":      func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
}

// HTTPFetcher fetches catalog pages. All requests share one LocalitySession,
// so the locality cookie travels with every listing and product request,
// redirects included.
type HTTPFetcher struct {
	client      *http.Client
	session     *LocalitySession
	maxBodySize int64
	agents      []string
	next        atomic.Uint64
	logger      *slog.Logger
}

// NewHTTPFetcher creates a fetcher with a locality session for cfg.Site.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	session, err := NewLocalitySession(cfg.Site, logger)
	if err != nil {
		return nil, err
	}
	return &HTTPFetcher{
		client:      newClient(cfg, session.Jar()),
		session:     session,
		maxBodySize: cfg.Fetcher.MaxBodySize,
		agents:      cfg.Engine.UserAgents,
		logger:      logger.With("component", "http_fetcher"),
	}, nil
}

// Fetch GETs the request URL. 429 and 5xx come back as retryable
// FetchErrors; every other status is returned as a Response for the engine
// to judge.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err}
	}
	httpReq.Header.Set("User-Agent", f.userAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	// Followed requests carry the listing they were found on.
	if req.ParentURL != "" {
		httpReq.Header.Set("Referer", req.ParentURL)
	}

	f.session.Ensure()

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{URL: target, Err: err, Retryable: transient(err)}
	}
	defer httpResp.Body.Close()

	if err := statusError(target, httpResp); err != nil {
		return nil, err
	}

	body, err := f.readBody(httpResp)
	if err != nil {
		return nil, &types.FetchError{URL: target, StatusCode: httpResp.StatusCode, Err: err, Retryable: transient(err)}
	}

	f.logger.Debug("fetched", "url", target, "status", httpResp.StatusCode, "size", len(body), "duration", elapsed)
	return types.NewResponse(req, httpResp, body, elapsed), nil
}

// Close drops idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) userAgent() string {
	if len(f.agents) == 0 {
		return "PharmCrawl/" + config.Version
	}
	n := f.next.Add(1) - 1
	return f.agents[n%uint64(len(f.agents))]
}

// readBody decodes the body and caps the decoded size at maxBodySize.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if enc := strings.ToLower(resp.Header.Get("Content-Encoding")); enc != "" && enc != "identity" {
		decode, ok := decoders[enc]
		if !ok {
			return nil, fmt.Errorf("unsupported content encoding %q", enc)
		}
		decoded, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode %s body: %w", enc, err)
		}
		r = decoded
	}
	if f.maxBodySize > 0 {
		r = io.LimitReader(r, f.maxBodySize)
	}
	return io.ReadAll(r)
}

// statusError turns throttling and server failures into retryable errors.
func statusError(target string, resp *http.Response) error {
	code := resp.StatusCode
	if code != http.StatusTooManyRequests && code < 500 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	fe := &types.FetchError{
		URL:        target,
		StatusCode: code,
		Err:        fmt.Errorf("HTTP %d: %s", code, strings.TrimSpace(string(snippet))),
		Retryable:  true,
	}
	if code == http.StatusTooManyRequests {
		fe.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
	}
	return fe
}

// retryAfter reads a Retry-After value in seconds or HTTP-date form and
// clamps it to [1s, maxBackoff]. Missing or unparsable values give defaultBackoff.
func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
	} else {
		return defaultBackoff
	}
	return min(max(d, time.Second), maxBackoff)
}

// transient reports whether a transport error is worth another attempt.
// Cancellation and the request's own deadline are final.
func transient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
