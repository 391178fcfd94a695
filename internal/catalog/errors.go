package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/handiism/tcg-dataset/internal/http"
)

var (
	// ErrSourceUnavailable means the catalog endpoint could not be reached
	// once the client's retry policy was exhausted.
	ErrSourceUnavailable = errors.New("catalog source unavailable")

	// ErrMalformedCatalog means the payload did not decode into the
	// expected shape.
	ErrMalformedCatalog = errors.New("malformed catalog")
)

// classify maps a source error onto the catalog error taxonomy.
// Cancellation is passed through untouched.
func classify(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, ErrMalformedCatalog) || errors.Is(err, ErrSourceUnavailable) {
		return fmt.Errorf("%s: %w", source, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var decodeErr *http.DecodeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &decodeErr) {
		return fmt.Errorf("%w: %s: %v", ErrMalformedCatalog, source, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
}
