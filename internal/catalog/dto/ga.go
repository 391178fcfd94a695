package dto

import (
	"encoding/json"
	"strings"

	"github.com/handiism/tcg-dataset/internal/model"
)

// GACard is one entry of the Grand Archive /cards/all listing.
type GACard struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// GACardDetail is the response of /cards/{slug}.
type GACardDetail struct {
	Name     string      `json:"name"`
	Slug     string      `json:"slug"`
	Editions []GAEdition `json:"editions"`
}

// GAEdition is one printing of a card. Image is a path relative to the API host.
type GAEdition struct {
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

type gaMetadata struct {
	Name string `json:"name"`
	Card string `json:"card"`
}

// ToCards returns one card per edition. Editions without a slug or image
// are skipped.
func (d GACardDetail) ToCards(imageHost string) []model.Card {
	host := strings.TrimSuffix(imageHost, "/")

	cards := make([]model.Card, 0, len(d.Editions))
	for _, e := range d.Editions {
		if e.Slug == "" || e.Image == "" {
			continue
		}

		image := e.Image
		if !strings.HasPrefix(image, "http://") && !strings.HasPrefix(image, "https://") {
			if !strings.HasPrefix(image, "/") {
				image = "/" + image
			}
			image = host + image
		}

		meta, _ := json.Marshal(gaMetadata{Name: d.Name, Card: d.Slug})
		cards = append(cards, model.NewCard(e.Slug, image, meta))
	}
	return cards
}
