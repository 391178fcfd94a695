package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
)

// Cache stores decoded catalogs as <dir>/<source>_cards.json so that
// repeated runs do not refetch multi-gigabyte bulk files.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Path returns the cache file for a source.
func (c *Cache) Path(source string) string {
	return filepath.Join(c.dir, source+"_cards.json")
}

// Load returns the cached catalog. ok is false when there is no usable
// cache; a corrupt file is treated as missing.
func (c *Cache) Load(source string) ([]model.Card, bool, error) {
	data, err := os.ReadFile(c.Path(source))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cards []model.Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, false, nil
	}
	return cards, len(cards) > 0, nil
}

// Save writes the catalog atomically.
func (c *Cache) Save(source string, cards []model.Card) error {
	data, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("encode catalog cache: %w", err)
	}
	return ioutils.WriteFileAtomic(c.Path(source), data)
}
