package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup returns the text content of an HTML fragment with every tag removed.
func StripMarkup(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}
