package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OutOfStockText is the offer-panel status shown for unavailable products.
const OutOfStockText = "Временно нет на складе"

// EvaluateStockPrice decides availability from the offer-panel status text and
// computes the price block from the price tokens.
//
// Out-of-stock products always get a zero price: the price block of an
// unavailable product is not trusted. In stock, the first token is the price
// shown and the second (if any) the pre-discount price.
func EvaluateStockPrice(offerStatus, priceTokens []string) (bool, PriceData, error) {
	status := Normalize(offerStatus)
	if len(status) == 0 {
		return false, PriceData{}, missing("offer_status")
	}

	if status[0] == OutOfStockText {
		return false, PriceData{}, nil
	}

	tokens := Normalize(priceTokens)
	if len(tokens) == 0 {
		return true, PriceData{}, missing("price_items")
	}

	prices := make([]float64, len(tokens))
	for i, tok := range tokens {
		v, err := parsePrice(tok)
		if err != nil {
			return true, PriceData{}, &MalformedPageError{Field: "price_items", Err: err}
		}
		prices[i] = v
	}

	if len(prices) == 1 {
		return true, PriceData{Current: prices[0], Original: prices[0]}, nil
	}

	current, original := prices[0], prices[1]
	if original == 0 {
		return true, PriceData{}, &MalformedPageError{
			Field: "price_items",
			Err:   &ParseArithmeticError{Token: tokens[1], Err: fmt.Errorf("division by zero")},
		}
	}

	return true, PriceData{
		Current:  current,
		Original: original,
		SaleTag:  "Скидка " + formatFloat(discountPercent(current, original)) + "%",
	}, nil
}

// parsePrice drops every whitespace character before parsing, whatever the
// token length, so thousand separators ("1 299") never split a price.
func parsePrice(token string) (float64, error) {
	compact := strings.Join(strings.Fields(token), "")
	v, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return 0, &ParseArithmeticError{Token: token, Err: err}
	}
	return v, nil
}

// discountPercent is 100 - current/original*100 in float64, unrounded.
// The explicit conversion keeps the compiler from fusing the multiply and
// subtract, which would change the last digits.
func discountPercent(current, original float64) float64 {
	scaled := float64((current / original) * 100.0)
	return 100.0 - scaled
}

// formatFloat renders f as the shortest round-trip decimal, keeping a ".0"
// on integral values and switching to exponent form outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}

	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}
