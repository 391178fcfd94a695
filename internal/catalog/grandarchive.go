package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/handiism/tcg-dataset/internal/catalog/dto"
	"github.com/handiism/tcg-dataset/internal/http"
	"github.com/handiism/tcg-dataset/internal/model"
	"golang.org/x/sync/errgroup"
)

// detailConcurrency bounds the number of in-flight /cards/{slug} requests.
const detailConcurrency = 10

// GrandArchive lists every card and then resolves each card's editions.
type GrandArchive struct {
	client  *http.Client
	baseURL string
}

// NewGrandArchive creates a Grand Archive source rooted at baseURL.
func NewGrandArchive(client *http.Client, baseURL string) *GrandArchive {
	return &GrandArchive{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (g *GrandArchive) Name() string { return "ga" }

// FetchPage returns every edition as a single page.
//
// Details are fetched concurrently but the result keeps listing order. A
// single failed detail request aborts the fetch.
func (g *GrandArchive) FetchPage(ctx context.Context, _ string) (Page, error) {
	var listing []dto.GACard
	if err := g.client.GetJSON(ctx, g.baseURL+"/cards/all", &listing); err != nil {
		return Page{}, fmt.Errorf("card listing: %w", err)
	}

	details := make([]dto.GACardDetail, len(listing))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(detailConcurrency)

	for i, card := range listing {
		if card.Slug == "" {
			continue
		}
		group.Go(func() error {
			var detail dto.GACardDetail
			if err := g.client.GetJSON(gctx, g.baseURL+"/cards/"+url.PathEscape(card.Slug), &detail); err != nil {
				return fmt.Errorf("card %s: %w", card.Slug, err)
			}
			if detail.Slug == "" {
				detail.Slug = card.Slug
			}
			details[i] = detail
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Page{}, err
	}

	var cards []model.Card
	for _, d := range details {
		cards = append(cards, d.ToCards(g.baseURL)...)
	}
	return Page{Cards: cards}, nil
}
