package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/handiism/tcg-dataset/internal/http"
	"github.com/handiism/tcg-dataset/internal/model"
)

// Default API endpoints.
const (
	ScryfallAPI     = "https://api.scryfall.com"
	GrandArchiveAPI = "https://api.gatcg.com"
)

// Page is one chunk of a catalog.
type Page struct {
	Cards []model.Card

	// Next is the cursor of the following page. Empty means this was the
	// last page.
	Next string
}

// Source is a remote card catalog.
//
// FetchPage is called with an empty cursor for the first page and then with
// each returned Page.Next until it is empty.
type Source interface {
	// Name identifies the source; it is used for cache file names and logs.
	Name() string

	FetchPage(ctx context.Context, cursor string) (Page, error)
}

// Endpoints overrides API base URLs, mostly for tests.
type Endpoints struct {
	Scryfall     string
	GrandArchive string
}

// DefaultEndpoints returns the public API endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{Scryfall: ScryfallAPI, GrandArchive: GrandArchiveAPI}
}

// ErrUnknownSelector is returned by NewSource for an unrecognised selector.
var ErrUnknownSelector = errors.New("unknown catalog selector")

// NewSource resolves a catalog selector.
//
// Supported selectors:
//   - "mtg": every Magic: The Gathering printing from the Scryfall bulk file
//   - "mtg:<query>": a Scryfall search, e.g. "mtg:set:lea"
//   - "ga": every Grand Archive edition
func NewSource(selector string, client *http.Client, endpoints Endpoints) (Source, error) {
	selector = strings.TrimSpace(selector)
	name, query, _ := strings.Cut(selector, ":")

	switch strings.ToLower(name) {
	case "mtg":
		if query != "" {
			return NewScryfallSearch(client, endpoints.Scryfall, query), nil
		}
		return NewScryfallBulk(client, endpoints.Scryfall), nil
	case "ga":
		if query != "" {
			return nil, fmt.Errorf("%w: ga does not support queries", ErrUnknownSelector)
		}
		return NewGrandArchive(client, endpoints.GrandArchive), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSelector, selector)
	}
}
