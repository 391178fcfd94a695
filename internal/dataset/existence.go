package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"golang.org/x/sync/errgroup"
)

// ExistenceIndex decides which cards still need a primary image.
//
// The partition directory is listed once; only cards whose slot directory
// exists are then checked, in parallel, for a usable 0000 file. Cards with
// no slot directory are pending without touching the filesystem again.
type ExistenceIndex struct {
	layout  Layout
	images  *ioutils.ImageService
	strict  bool
	workers int
}

// NewExistenceIndex creates an index over the train partition of layout.
// When strict is set, primaries must also decode to the raster of images.
func NewExistenceIndex(layout Layout, images *ioutils.ImageService, strict bool, workers int) *ExistenceIndex {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &ExistenceIndex{layout: layout, images: images, strict: strict, workers: workers}
}

// Pending returns, in input order, the cards whose primary image is absent,
// empty or (in strict mode) not a valid raster of the target size, and the
// number of cards that were skipped because they are already complete.
func (x *ExistenceIndex) Pending(ctx context.Context, cards []model.Card) ([]model.Card, int, error) {
	dirs, err := x.listSlots(Train)
	if err != nil {
		return nil, 0, err
	}

	complete := make([]bool, len(cards))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(x.workers)

	for i, card := range cards {
		if _, ok := dirs[card.ID]; !ok {
			continue
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			complete[i] = x.isComplete(x.layout.Slot(Train, card.ID))
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, 0, err
	}

	pending := make([]model.Card, 0, len(cards))
	skipped := 0
	for i, card := range cards {
		if complete[i] {
			skipped++
			continue
		}
		pending = append(pending, card)
	}
	return pending, skipped, nil
}

func (x *ExistenceIndex) listSlots(p Partition) (map[string]struct{}, error) {
	entries, err := os.ReadDir(x.layout.PartitionDir(p))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	dirs := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs[e.Name()] = struct{}{}
		}
	}
	return dirs, nil
}

func (x *ExistenceIndex) isComplete(slot Slot) bool {
	if !slot.HasPrimary() {
		return false
	}
	if x.strict && x.images != nil {
		return x.images.Conforms(slot.PrimaryPath())
	}
	return true
}
