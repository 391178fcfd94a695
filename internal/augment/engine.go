package augment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/handiism/tcg-dataset/internal/dataset"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/progress"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"
)

// Options configures an Engine.
type Options struct {
	// Amount is the number of derivatives generated per slot and run.
	Amount int

	// Verify re-opens every generated file and decode-checks it.
	Verify bool

	// Seed drives recipe sampling. Zero picks a seed from the clock; the
	// chosen value is available from Engine.Seed.
	Seed int64

	// FirstUpsideDown makes the derivative at index 0001 an exact 180°
	// rotation of the primary.
	FirstUpsideDown bool

	// Workers bounds the number of slots processed in parallel.
	Workers int
}

// Stats summarises one augmentation run.
type Stats struct {
	Cards      int `json:"cards"`
	Originals  int `json:"originals"`
	Generated  int `json:"generated"`
	Verified   int `json:"verified"`
	Corrupted  int `json:"corrupted"`
	SlotErrors int `json:"slot_errors"`
}

// Total returns originals plus generated images.
func (s Stats) Total() int {
	return s.Originals + s.Generated
}

// Multiplier returns how many images each original now accounts for.
func (s Stats) Multiplier() float64 {
	if s.Originals == 0 {
		return 0
	}
	return float64(s.Total()) / float64(s.Originals)
}

func (s *Stats) add(o Stats) {
	s.Cards += o.Cards
	s.Originals += o.Originals
	s.Generated += o.Generated
	s.Verified += o.Verified
	s.Corrupted += o.Corrupted
	s.SlotErrors += o.SlotErrors
}

// SlotResult is the outcome of augmenting one slot.
type SlotResult struct {
	Slot     dataset.Slot
	Written  []int
	Failures []model.TaskFailure
	Stats    Stats
}

// Engine writes derivative images into slots.
//
// The index scan and the writes of one slot happen under that slot's lock,
// so concurrent or repeated runs on the same slot append without gaps or
// collisions while different slots proceed in parallel.
type Engine struct {
	images   *ioutils.ImageService
	layout   dataset.Layout
	opts     Options
	locks    *dataset.SlotLocks
	reporter *progress.Reporter
}

// NewEngine creates an Engine. locks may be shared with other writers of
// the same layout; reporter may be nil.
func NewEngine(images *ioutils.ImageService, layout dataset.Layout, opts Options, locks *dataset.SlotLocks, reporter *progress.Reporter) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if locks == nil {
		locks = &dataset.SlotLocks{}
	}
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}
	return &Engine{
		images:   images,
		layout:   layout,
		opts:     opts,
		locks:    locks,
		reporter: reporter,
	}
}

// Seed returns the recipe seed in use.
func (e *Engine) Seed() int64 {
	return e.opts.Seed
}

// Run augments the given slots of partition p. A nil ids slice means every
// slot in the partition.
//
// Slot invariant violations and per-image failures are collected in the
// report; the error is non-nil only for cancellation or when the partition
// cannot be listed.
func (e *Engine) Run(ctx context.Context, p dataset.Partition, ids []string) (*model.Report, Stats, error) {
	report := &model.Report{Stage: model.StageAugment}
	var stats Stats

	if ids == nil {
		var err error
		ids, err = e.layout.SlotIDs(p)
		if err != nil {
			return report, stats, fmt.Errorf("list %s: %w", p, err)
		}
	}
	if e.opts.Amount <= 0 || len(ids) == 0 {
		return report, stats, nil
	}

	e.reporter.Start(model.StageAugment, len(ids)*e.opts.Amount)

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, id := range ids {
		slot := e.layout.Slot(p, id)
		g.Go(func() error {
			res, err := e.AugmentSlot(gctx, slot)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			report.Total += e.opts.Amount
			report.Succeeded += len(res.Written)
			stats.add(res.Stats)
			for _, f := range res.Failures {
				report.Fail(f)
			}
			if err != nil {
				report.Fail(model.Failed(id, model.StageAugment, err))
			}
			return nil
		})
	}

	err := g.Wait()
	report.SortFailures()

	zlog.Logger.Info().
		Str("partition", string(p)).
		Int64("seed", e.opts.Seed).
		Int("cards", stats.Cards).
		Int("generated", stats.Generated).
		Int("failed", report.Failed()).
		Msg("augmentation finished")

	return report, stats, err
}

// AugmentSlot appends Amount derivatives to slot, starting right after the
// highest existing index.
//
// A slot without a primary image yields an error wrapping
// dataset.ErrSlotInvariant and writes nothing.
func (e *Engine) AugmentSlot(ctx context.Context, slot dataset.Slot) (SlotResult, error) {
	res := SlotResult{Slot: slot}

	unlock := e.locks.Lock(slot)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if !slot.HasPrimary() {
		res.Stats.SlotErrors++
		e.skipUnits(slot, e.opts.Amount, "no primary image")
		return res, fmt.Errorf("%w: %s has no primary image", dataset.ErrSlotInvariant, slot.Key())
	}

	maxIndex, err := slot.MaxIndex()
	if err != nil {
		res.Stats.SlotErrors++
		e.skipUnits(slot, e.opts.Amount, err.Error())
		return res, err
	}

	primary, err := e.images.Open(slot.PrimaryPath())
	if err != nil {
		res.Stats.SlotErrors++
		e.skipUnits(slot, e.opts.Amount, err.Error())
		return res, fmt.Errorf("%w: %v", dataset.ErrSlotInvariant, err)
	}

	res.Stats.Cards = 1
	res.Stats.Originals = 1

	for k := 1; k <= e.opts.Amount; k++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		index := maxIndex + k
		if err := e.writeDerivative(primary, slot, index); err != nil {
			f := model.TaskFailure{CardID: slot.ID, Stage: model.StageAugment, Index: index, Reason: err.Error()}
			res.Failures = append(res.Failures, f)
			e.reporter.Fail(f)
			// Later indices would leave a gap.
			e.skipUnits(slot, e.opts.Amount-k, "aborted after failed write")
			break
		}

		res.Written = append(res.Written, index)
		res.Stats.Generated++
		e.reporter.Complete("")
	}

	if e.opts.Verify {
		for _, index := range res.Written {
			if err := e.verify(slot.Path(index)); err != nil {
				res.Stats.Corrupted++
				res.Failures = append(res.Failures, model.TaskFailure{
					CardID: slot.ID,
					Stage:  model.StageVerify,
					Index:  index,
					Reason: err.Error(),
				})
				continue
			}
			res.Stats.Verified++
		}
	}

	return res, nil
}

// RecipeFor returns the recipe used for index of slot.
func (e *Engine) RecipeFor(slot dataset.Slot, index int) Recipe {
	if e.opts.FirstUpsideDown && index == 1 {
		return UpsideDown()
	}
	return NewRecipe(e.opts.Seed, slot.Key(), index)
}

func (e *Engine) writeDerivative(primary image.Image, slot dataset.Slot, index int) error {
	recipe := e.RecipeFor(slot, index)
	out := Apply(primary, recipe, e.images.Width(), e.images.Height())
	if err := e.images.Save(slot.Path(index), out); err != nil {
		return fmt.Errorf("%s: %w", recipe, err)
	}
	return nil
}

func (e *Engine) verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("empty file")
	}
	_, err = e.images.Open(path)
	return err
}

// skipUnits accounts for derivatives that will not be attempted so the
// progress total still converges.
func (e *Engine) skipUnits(slot dataset.Slot, n int, reason string) {
	e.reporter.AddTotal(-n)
	zlog.Logger.Warn().Str("card", slot.ID).Str("partition", string(slot.Partition)).Str("reason", reason).Msg("slot skipped")
}
