package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Response represents the result of fetching a request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Headers are the response HTTP headers.
	Headers http.Header

	// Body is the raw response body bytes.
	Body []byte

	// Request is a reference to the original request.
	Request *Request

	// ContentLength is the size of the response body in bytes.
	ContentLength int64

	// FinalURL is the URL after any redirects.
	FinalURL string

	// FetchDuration is how long the fetch took.
	FetchDuration time.Duration

	root *html.Node
}

// NewResponse creates a Response from an http.Response.
func NewResponse(req *Request, httpResp *http.Response, body []byte, duration time.Duration) *Response {
	finalURL := req.URLString()
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}
	return &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		Request:       req,
		ContentLength: int64(len(body)),
		FinalURL:      finalURL,
		FetchDuration: duration,
	}
}

// URL returns the final URL of the page, falling back to the requested URL.
func (r *Response) URL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	if r.Request != nil {
		return r.Request.URLString()
	}
	return ""
}

// Root returns the parsed HTML tree, parsing the body on first use.
func (r *Response) Root() (*html.Node, error) {
	if r.root != nil {
		return r.root, nil
	}
	if len(r.Body) == 0 {
		return nil, ErrEmptyResponse
	}
	root, err := htmlquery.Parse(bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	r.root = root
	return root, nil
}

// IsSuccess returns true if the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
