package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/handiism/tcg-dataset/internal/catalog/dto"
	"github.com/handiism/tcg-dataset/internal/http"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
)

// PlaceholderURL marks Scryfall cards whose art is not yet available.
const PlaceholderURL = "errors.scryfall.com/soon.jpg"

// IsPlaceholder reports whether the card points at a placeholder image.
func IsPlaceholder(c model.Card) bool {
	return strings.Contains(c.ImageURL, PlaceholderURL)
}

// ScryfallBulk reads the "all_cards" bulk file.
//
// The bulk file is a single JSON array of well over a hundred thousand
// objects, so it is stream-decoded rather than read into memory.
type ScryfallBulk struct {
	client   *http.Client
	baseURL  string
	bulkType string
}

// NewScryfallBulk creates a bulk source rooted at baseURL.
func NewScryfallBulk(client *http.Client, baseURL string) *ScryfallBulk {
	return &ScryfallBulk{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		bulkType: "all_cards",
	}
}

func (s *ScryfallBulk) Name() string { return "mtg" }

// FetchPage returns the whole bulk file as a single page.
func (s *ScryfallBulk) FetchPage(ctx context.Context, _ string) (Page, error) {
	var index dto.BulkDataIndex
	if err := s.client.GetJSON(ctx, s.baseURL+"/bulk-data", &index); err != nil {
		return Page{}, fmt.Errorf("bulk-data index: %w", err)
	}

	item, ok := index.Find(s.bulkType)
	if !ok || item.DownloadURI == "" {
		return Page{}, fmt.Errorf("%w: bulk type %q not listed", ErrMalformedCatalog, s.bulkType)
	}

	body, err := s.client.Open(ctx, item.DownloadURI)
	if err != nil {
		return Page{}, fmt.Errorf("bulk download: %w", err)
	}
	defer body.Close()

	dec := json.NewDecoder(body)
	tok, err := dec.Token()
	if err != nil {
		return Page{}, fmt.Errorf("%w: bulk file: %v", ErrMalformedCatalog, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return Page{}, fmt.Errorf("%w: bulk file is not an array", ErrMalformedCatalog)
	}

	var cards []model.Card
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}

		var sc dto.ScryfallCard
		if err := dec.Decode(&sc); err != nil {
			return Page{}, fmt.Errorf("%w: bulk entry %d: %v", ErrMalformedCatalog, len(cards), err)
		}
		if card, ok := sc.ToCard(); ok {
			cards = append(cards, card)
		}
	}
	if _, err := dec.Token(); err != nil {
		return Page{}, fmt.Errorf("%w: bulk file: %v", ErrMalformedCatalog, err)
	}

	return Page{Cards: cards}, nil
}

// ScryfallSearch pages through /cards/search for a curated subset.
type ScryfallSearch struct {
	client  *http.Client
	baseURL string
	query   string
}

// NewScryfallSearch creates a search source for query.
func NewScryfallSearch(client *http.Client, baseURL, query string) *ScryfallSearch {
	return &ScryfallSearch{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		query:   query,
	}
}

func (s *ScryfallSearch) Name() string {
	return "mtg_" + ioutils.SanitizeFileName(strings.NewReplacer(" ", "_", ":", "-").Replace(s.query))
}

// FetchPage fetches one search page. The cursor is the next_page URL
// returned by the previous page.
func (s *ScryfallSearch) FetchPage(ctx context.Context, cursor string) (Page, error) {
	pageURL := cursor
	if pageURL == "" {
		q := url.Values{}
		q.Set("q", s.query)
		q.Set("unique", "prints")
		pageURL = s.baseURL + "/cards/search?" + q.Encode()
	}

	var list dto.ScryfallList
	if err := s.client.GetJSON(ctx, pageURL, &list); err != nil {
		return Page{}, err
	}
	if list.Object != "" && list.Object != "list" {
		return Page{}, fmt.Errorf("%w: expected list object, got %q", ErrMalformedCatalog, list.Object)
	}

	page := Page{Cards: make([]model.Card, 0, len(list.Data))}
	for _, sc := range list.Data {
		if card, ok := sc.ToCard(); ok {
			page.Cards = append(page.Cards, card)
		}
	}

	if list.HasMore {
		if list.NextPage == "" {
			return Page{}, fmt.Errorf("%w: has_more without next_page", ErrMalformedCatalog)
		}
		page.Next = list.NextPage
	}
	return page, nil
}
