package catalog

import (
	"context"
	"fmt"

	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/wb-go/wbf/zlog"
)

// maxPages guards against a source that never stops paginating.
const maxPages = 10000

// Fetcher retrieves a complete, deduplicated catalog from a Source.
//
// Example usage:
//
//	source, _ := catalog.NewSource("mtg:set:lea", client, catalog.DefaultEndpoints())
//	fetcher := catalog.NewFetcher(source, catalog.NewCache(root), false)
//
//	cards, err := fetcher.Fetch(ctx, 100)
//	if errors.Is(err, catalog.ErrSourceUnavailable) {
//	    // nothing was processed
//	}
type Fetcher struct {
	source  Source
	cache   *Cache
	refresh bool
}

// NewFetcher creates a Fetcher. cache may be nil. When refresh is set the
// cache is bypassed on read but still updated.
func NewFetcher(source Source, cache *Cache, refresh bool) *Fetcher {
	return &Fetcher{source: source, cache: cache, refresh: refresh}
}

// Source returns the underlying source.
func (f *Fetcher) Source() Source {
	return f.source
}

// Fetch returns the catalog in source order, deduplicated by ID with the
// first occurrence kept, and capped at maxCards (0 means no cap).
//
// Pages are concatenated in order. Any page failure aborts the fetch and no
// cards are returned.
func (f *Fetcher) Fetch(ctx context.Context, maxCards int) ([]model.Card, error) {
	name := f.source.Name()

	if f.cache != nil && !f.refresh {
		cards, ok, err := f.cache.Load(name)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("source", name).Msg("catalog cache unreadable")
		}
		if ok {
			zlog.Logger.Info().
				Str("source", name).
				Int("cards", len(cards)).
				Str("path", f.cache.Path(name)).
				Msg("using cached catalog")
			return model.Limit(model.Dedupe(cards), maxCards), nil
		}
	}

	var all []model.Card
	cursor := ""
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("%w: %s: more than %d pages", ErrMalformedCatalog, name, maxPages)
		}

		p, err := f.source.FetchPage(ctx, cursor)
		if err != nil {
			return nil, classify(name, fmt.Errorf("page %d: %w", page+1, err))
		}
		all = append(all, p.Cards...)

		zlog.Logger.Debug().
			Str("source", name).
			Int("page", page+1).
			Int("cards", len(p.Cards)).
			Msg("catalog page fetched")

		if p.Next == "" {
			break
		}
		cursor = p.Next
	}

	cards := model.Dedupe(all)

	if f.cache != nil {
		if err := f.cache.Save(name, cards); err != nil {
			zlog.Logger.Warn().Err(err).Str("source", name).Msg("failed to write catalog cache")
		}
	}

	zlog.Logger.Info().
		Str("source", name).
		Int("fetched", len(all)).
		Int("unique", len(cards)).
		Msg("catalog fetched")

	return model.Limit(cards, maxCards), nil
}
