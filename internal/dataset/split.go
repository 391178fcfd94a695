package dataset

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"sync"

	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"golang.org/x/sync/errgroup"
)

// Split modes.
const (
	SplitTrainOnly = "train"
	SplitFraction  = "fraction"
	SplitEvery     = "every"
)

// SplitPolicy assigns cards to partitions. Every card is assigned to Train;
// Test and Validation receive mirrored subsets.
type SplitPolicy struct {
	Mode string

	// Seed drives the fraction mode. The same seed reproduces the same
	// assignment.
	Seed               int64
	TestFraction       float64
	ValidationFraction float64

	// TestEvery and ValidationEvery drive the every mode: the card at
	// 1-based position n goes to Test when n%TestEvery == 0, otherwise to
	// Validation when n%ValidationEvery == 0. Zero disables a partition.
	TestEvery       int
	ValidationEvery int
}

// Assign returns the partitions of the card at position (0-based) in the
// fetched catalog.
func (p SplitPolicy) Assign(position int, id string) []Partition {
	parts := []Partition{Train}

	switch p.Mode {
	case SplitFraction:
		u := unitHash(p.Seed, id)
		switch {
		case u < p.TestFraction:
			parts = append(parts, Test)
		case u < p.TestFraction+p.ValidationFraction:
			parts = append(parts, Validation)
		}
	case SplitEvery:
		n := position + 1
		switch {
		case p.TestEvery > 0 && n%p.TestEvery == 0:
			parts = append(parts, Test)
		case p.ValidationEvery > 0 && n%p.ValidationEvery == 0:
			parts = append(parts, Validation)
		}
	}
	return parts
}

// unitHash maps (seed, id) to [0, 1).
func unitHash(seed int64, id string) float64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write([]byte(id))
	return float64(h.Sum64()>>11) / float64(uint64(1)<<53)
}

// Splitter materialises test and validation partitions as physical copies
// of train primaries.
type Splitter struct {
	layout  Layout
	policy  SplitPolicy
	workers int
	locks   *SlotLocks
}

// NewSplitter creates a Splitter. locks may be shared with other writers.
func NewSplitter(layout Layout, policy SplitPolicy, workers int, locks *SlotLocks) *Splitter {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if locks == nil {
		locks = &SlotLocks{}
	}
	return &Splitter{layout: layout, policy: policy, workers: workers, locks: locks}
}

// Apply copies the primary of every card assigned to test or validation.
//
// cards must be the full fetched catalog so that positions are stable.
// Cards without a train primary are ignored. Existing copies are left
// untouched. Per-card failures are collected in the report.
func (s *Splitter) Apply(ctx context.Context, cards []model.Card) (*model.Report, error) {
	report := &model.Report{Stage: model.StageSplit}
	if s.policy.Mode == SplitTrainOnly || s.policy.Mode == "" {
		return report, nil
	}

	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for pos, card := range cards {
		parts := s.policy.Assign(pos, card.ID)
		if len(parts) == 1 {
			continue
		}

		train := s.layout.Slot(Train, card.ID)
		for _, p := range parts[1:] {
			dst := s.layout.Slot(p, card.ID)
			group.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				copied, err := s.mirror(gctx, train, dst)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					report.Total++
					report.Fail(model.Failed(card.ID, model.StageSplit, fmt.Errorf("%s: %w", p, err)))
				case copied:
					report.Total++
					report.Succeeded++
				}
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return report, err
	}
	report.SortFailures()
	return report, nil
}

func (s *Splitter) mirror(ctx context.Context, src, dst Slot) (bool, error) {
	if !src.HasPrimary() {
		return false, nil
	}

	unlock := s.locks.Lock(dst)
	defer unlock()

	if dst.HasPrimary() {
		return false, nil
	}
	return true, ioutils.CopyFile(ctx, src.PrimaryPath(), dst.PrimaryPath())
}

// Counts returns how many of cards each partition would receive.
func (p SplitPolicy) Counts(cards []model.Card) map[Partition]int {
	counts := make(map[Partition]int, 3)
	for pos, c := range cards {
		for _, part := range p.Assign(pos, c.ID) {
			counts[part]++
		}
	}
	return counts
}
