package model

import (
	"encoding/json"
	"strings"
)

// Card is an immutable catalog record.
//
// ID must be unique within a catalog; it is used verbatim as the slot
// directory name, so sources are expected to hand out filesystem-safe IDs
// (Scryfall UUIDs, Grand Archive edition slugs).
type Card struct {
	// ID is the stable identifier of the card.
	ID string `json:"id"`

	// ImageURL is where the primary image is downloaded from.
	ImageURL string `json:"image_url"`

	// Metadata is the raw catalog object. The pipeline never looks inside.
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// NewCard creates a Card. Protocol-relative image URLs ("//host/...") are
// upgraded to https.
func NewCard(id, imageURL string, metadata json.RawMessage) Card {
	if strings.HasPrefix(imageURL, "//") {
		imageURL = "https:" + imageURL
	}
	return Card{
		ID:       strings.TrimSpace(id),
		ImageURL: imageURL,
		Metadata: metadata,
	}
}

// ValidID reports whether id can be used as a slot directory name: a
// single path element that is neither "." nor "..".
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.ContainsRune(id, 0)
}

// HasImage reports whether the card carries an image URL at all.
func (c Card) HasImage() bool {
	return c.ImageURL != ""
}

// Dedupe drops later duplicates by ID, keeping first-occurrence order.
// Cards whose ID is not a valid slot name are dropped.
func Dedupe(cards []Card) []Card {
	seen := make(map[string]struct{}, len(cards))
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if !ValidID(c.ID) {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Limit returns the first n cards. n <= 0 means no limit.
func Limit(cards []Card, n int) []Card {
	if n <= 0 || n >= len(cards) {
		return cards
	}
	return cards[:n]
}
