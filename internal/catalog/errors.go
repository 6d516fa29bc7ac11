package catalog

import (
	"errors"
	"fmt"
)

// ErrMalformedPage matches every extraction failure caused by missing or
// unusable markup. The page is skipped and no record is emitted.
var ErrMalformedPage = errors.New("malformed page")

// ErrMissingElement reports that a required element matched nothing.
var ErrMissingElement = errors.New("required element not found")

// MalformedPageError names the field that could not be extracted.
type MalformedPageError struct {
	URL   string
	Field string
	Err   error
}

func (e *MalformedPageError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("malformed page (field=%s): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed page %s (field=%s): %v", e.URL, e.Field, e.Err)
}

func (e *MalformedPageError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedPage.
func (e *MalformedPageError) Is(target error) bool { return target == ErrMalformedPage }

// ParseArithmeticError reports a price token that is not a number, or a
// discount that cannot be computed.
type ParseArithmeticError struct {
	Token string
	Err   error
}

func (e *ParseArithmeticError) Error() string {
	return fmt.Sprintf("price token %q: %v", e.Token, e.Err)
}

func (e *ParseArithmeticError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedPage.
func (e *ParseArithmeticError) Is(target error) bool { return target == ErrMalformedPage }

func missing(field string) error {
	return &MalformedPageError{Field: field, Err: ErrMissingElement}
}

// withURL stamps the page URL onto a MalformedPageError in err's chain.
func withURL(err error, url string) error {
	var mpe *MalformedPageError
	if errors.As(err, &mpe) && mpe.URL == "" {
		mpe.URL = url
	}
	return err
}
