package parser

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathDocument implements Querier with XPath expressions via htmlquery.
type XPathDocument struct {
	root   *html.Node
	logger *slog.Logger
}

// NewXPathDocument wraps an already parsed HTML tree.
func NewXPathDocument(root *html.Node, logger *slog.Logger) *XPathDocument {
	return &XPathDocument{
		root:   root,
		logger: logger.With("component", "xpath_parser"),
	}
}

// ParseXPathDocument parses raw markup into an XPathDocument.
func ParseXPathDocument(body []byte, logger *slog.Logger) (*XPathDocument, error) {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewXPathDocument(root, logger), nil
}

// Texts implements Querier.
func (d *XPathDocument) Texts(expr string) ([]string, error) {
	nodes, err := d.query(expr)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(nodes))
	for _, node := range nodes {
		values = append(values, nodeValue(node))
	}
	return values, nil
}

// First implements Querier.
func (d *XPathDocument) First(expr string) (string, bool, error) {
	node, err := htmlquery.Query(d.root, expr)
	if err != nil {
		d.logger.Warn("invalid xpath", "selector", expr, "error", err)
		return "", false, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if node == nil {
		return "", false, nil
	}
	return nodeValue(node), true, nil
}

// OuterHTML implements Querier.
func (d *XPathDocument) OuterHTML(expr string) ([]string, error) {
	nodes, err := d.query(expr)
	if err != nil {
		return nil, err
	}
	fragments := make([]string, 0, len(nodes))
	for _, node := range nodes {
		fragments = append(fragments, htmlquery.OutputHTML(node, true))
	}
	return fragments, nil
}

func (d *XPathDocument) query(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		d.logger.Warn("invalid xpath", "selector", expr, "error", err)
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// nodeValue mirrors XPath string extraction: raw text for text nodes,
// the value for attributes and the concatenated inner text otherwise.
func nodeValue(node *html.Node) string {
	switch node.Type {
	case html.TextNode:
		return node.Data
	default:
		return htmlquery.InnerText(node)
	}
}
