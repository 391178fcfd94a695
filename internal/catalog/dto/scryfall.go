package dto

import (
	"encoding/json"
	"strings"

	"github.com/handiism/tcg-dataset/internal/model"
)

// BulkDataIndex is the response of https://api.scryfall.com/bulk-data.
type BulkDataIndex struct {
	Data []BulkDataItem `json:"data"`
}

// BulkDataItem describes one downloadable bulk file.
type BulkDataItem struct {
	Type        string `json:"type"`
	DownloadURI string `json:"download_uri"`
	Size        int64  `json:"size"`
}

// Find returns the bulk file of the given type, if listed.
func (idx BulkDataIndex) Find(dataType string) (BulkDataItem, bool) {
	for _, item := range idx.Data {
		if item.Type == dataType {
			return item, true
		}
	}
	return BulkDataItem{}, false
}

// ScryfallList is a paginated list object returned by /cards/search.
type ScryfallList struct {
	Object   string         `json:"object"`
	HasMore  bool           `json:"has_more"`
	NextPage string         `json:"next_page"`
	Data     []ScryfallCard `json:"data"`
}

// ScryfallImageURIs holds the rendered image variants of a card face.
type ScryfallImageURIs struct {
	PNG    string `json:"png"`
	Large  string `json:"large"`
	Normal string `json:"normal"`
}

// ScryfallCard is the subset of a Scryfall card object the dataset needs.
type ScryfallCard struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Set             string             `json:"set"`
	CollectorNumber string             `json:"collector_number"`
	Lang            string             `json:"lang"`
	Layout          string             `json:"layout"`
	ImageURIs       *ScryfallImageURIs `json:"image_uris"`
}

type scryfallMetadata struct {
	Name            string `json:"name"`
	Set             string `json:"set,omitempty"`
	CollectorNumber string `json:"collector_number,omitempty"`
	Lang            string `json:"lang,omitempty"`
	Layout          string `json:"layout,omitempty"`
}

// ToCard converts the card to a model.Card.
//
// Only the PNG rendering is used; cards without one (e.g. double-faced
// layouts that only carry per-face images) return ok == false.
func (c ScryfallCard) ToCard() (model.Card, bool) {
	if c.ImageURIs == nil || strings.TrimSpace(c.ImageURIs.PNG) == "" || strings.TrimSpace(c.ID) == "" {
		return model.Card{}, false
	}

	meta, err := json.Marshal(scryfallMetadata{
		Name:            c.Name,
		Set:             c.Set,
		CollectorNumber: c.CollectorNumber,
		Lang:            c.Lang,
		Layout:          c.Layout,
	})
	if err != nil {
		meta = nil
	}

	return model.NewCard(c.ID, c.ImageURIs.PNG, meta), true
}
