// Package parser provides selector queries over fetched markup.
package parser

// Querier answers selector queries against one parsed page.
// Each method returns zero, one or many values in document order.
type Querier interface {
	// Texts returns the raw string value of every node matched by expr.
	// Text nodes yield their data, attribute nodes their value, elements their inner text.
	Texts(expr string) ([]string, error)

	// First returns the first value matched by expr and whether anything matched.
	First(expr string) (string, bool, error)

	// OuterHTML returns the serialized markup of every element matched by expr.
	OuterHTML(expr string) ([]string, error)
}
