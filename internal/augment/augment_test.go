package augment

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/handiism/tcg-dataset/internal/dataset"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testW = 48
	testH = 64
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func newFixture(t *testing.T) (*ioutils.ImageService, dataset.Layout) {
	t.Helper()
	return ioutils.NewImageService(testW, testH, 90), dataset.NewLayout(t.TempDir())
}

func seedSlot(t *testing.T, svc *ioutils.ImageService, layout dataset.Layout, id string, extra int) dataset.Slot {
	t.Helper()
	slot := layout.Slot(dataset.Train, id)
	for i := 0; i <= extra; i++ {
		require.NoError(t, svc.Save(slot.Path(i), gradient(testW, testH)))
	}
	return slot
}

func newEngine(svc *ioutils.ImageService, layout dataset.Layout, opts Options) *Engine {
	if opts.Seed == 0 {
		opts.Seed = 1234
	}
	return NewEngine(svc, layout, opts, nil, nil)
}

func TestNewRecipeIsPure(t *testing.T) {
	a := NewRecipe(42, "train/abc", 3)
	b := NewRecipe(42, "train/abc", 3)
	assert.Equal(t, a, b)

	c := NewRecipe(42, "train/abc", 4)
	d := NewRecipe(43, "train/abc", 3)
	assert.False(t, a.String() == c.String() && a.String() == d.String())
}

func TestNewRecipeShape(t *testing.T) {
	for i := 0; i < 500; i++ {
		r := NewRecipe(7, "slot", i)
		require.GreaterOrEqual(t, len(r.Ops), 2)
		require.LessOrEqual(t, len(r.Ops), 4)

		seen := map[Kind]bool{}
		for j, op := range r.Ops {
			assert.False(t, seen[op.Kind], "duplicate kind %s", op.Kind)
			seen[op.Kind] = true
			if j > 0 {
				assert.Less(t, r.Ops[j-1].Kind, op.Kind, "ops must be in canonical order")
			}

			switch op.Kind {
			case Rotate:
				assert.InDelta(t, 0, op.Value, MaxRotation)
			case Zoom:
				assert.True(t, op.Value >= MinZoom && op.Value <= MaxZoom)
			case Shift:
				assert.InDelta(t, 0, op.DX, MaxShift)
				assert.InDelta(t, 0, op.DY, MaxShift)
			case Brightness:
				assert.InDelta(t, 0, op.Value, MaxBrightness)
			case Contrast:
				assert.True(t, op.Value >= MinContrast && op.Value <= MaxContrast)
			case Saturation:
				assert.True(t, op.Value >= MinSaturation && op.Value <= MaxSaturation)
			case Noise:
				assert.True(t, op.Value >= MinNoise && op.Value <= MaxNoise)
			case Blur:
				assert.True(t, op.Value >= MinBlur && op.Value <= MaxBlur)
			}
		}
	}
}

func TestGeometricBeforePhotometric(t *testing.T) {
	for k := Rotate; k < numKinds; k++ {
		assert.Equal(t, k <= Flip, k.Geometric(), k.String())
	}
}

func TestApplyKeepsTargetSize(t *testing.T) {
	src := gradient(100, 140)
	for k := Rotate; k < numKinds; k++ {
		recipe := Recipe{Ops: []Op{sampleFixed(k)}}
		out := Apply(src, recipe, testW, testH)
		assert.Equal(t, image.Pt(testW, testH), out.Bounds().Size(), k.String())
	}
}

func sampleFixed(k Kind) Op {
	switch k {
	case Rotate:
		return Op{Kind: k, Value: 12}
	case Zoom:
		return Op{Kind: k, Value: 0.95}
	case Shift:
		return Op{Kind: k, DX: 0.05, DY: -0.05}
	case Flip:
		return Op{Kind: k, Horizontal: true}
	case Noise:
		return Op{Kind: k, Value: 10, Seed: 99}
	case Blur:
		return Op{Kind: k, Value: 1}
	default:
		return Op{Kind: k, Value: 1.2}
	}
}

func TestUpsideDownIsExact180(t *testing.T) {
	src := gradient(testW, testH)
	out := Apply(src, UpsideDown(), testW, testH)

	want := imaging.Rotate180(src)
	assert.Equal(t, want.Pix, out.Pix)
}

func TestShiftFillsUncoveredArea(t *testing.T) {
	src := imaging.New(20, 20, color.White)
	out := shift(src, 0.25, 0)

	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(0, 10), "uncovered column is filled")
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(19, 10))
}

func TestRotateFillsCorners(t *testing.T) {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	src := imaging.New(40, 56, white)

	for _, deg := range []float64{15, -15, 10} {
		out := rotate(src, deg)
		require.Equal(t, src.Bounds(), out.Bounds())

		for _, p := range []image.Point{{0, 0}, {39, 0}, {0, 55}, {39, 55}} {
			assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(p.X, p.Y), "corner %v at %v degrees", p, deg)
		}
		assert.Equal(t, white, out.NRGBAAt(20, 28), "centre at %v degrees", deg)
	}
}

func TestNoiseIsDeterministic(t *testing.T) {
	src := gradient(16, 16)
	assert.Equal(t, noise(src, 20, 5).Pix, noise(src, 20, 5).Pix)
	assert.NotEqual(t, noise(src, 20, 5).Pix, noise(src, 20, 6).Pix)
}

func TestBrightnessClamps(t *testing.T) {
	out := brightness(imaging.New(2, 2, color.NRGBA{R: 250, G: 10, B: 128, A: 255}), 30)
	assert.Equal(t, color.NRGBA{R: 255, G: 40, B: 158, A: 255}, out.NRGBAAt(0, 0))
}

func TestAugmentSlotAppendsAfterMaxIndex(t *testing.T) {
	svc, layout := newFixture(t)
	slot := seedSlot(t, svc, layout, "abc", 3)

	before := map[int][]byte{}
	for i := 0; i <= 3; i++ {
		data, err := os.ReadFile(slot.Path(i))
		require.NoError(t, err)
		before[i] = data
	}

	res, err := newEngine(svc, layout, Options{Amount: 2}).AugmentSlot(context.Background(), slot)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, res.Written)

	indices, err := slot.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, indices)

	for i, data := range before {
		after, err := os.ReadFile(slot.Path(i))
		require.NoError(t, err)
		assert.Equal(t, data, after, "index %d must not change", i)
	}
	assert.True(t, svc.Conforms(slot.Path(5)))
}

func TestSequentialBatchesDoNotCollide(t *testing.T) {
	svc, layout := newFixture(t)
	slot := seedSlot(t, svc, layout, "card", 0)

	_, err := newEngine(svc, layout, Options{Amount: 5}).AugmentSlot(context.Background(), slot)
	require.NoError(t, err)
	_, err = newEngine(svc, layout, Options{Amount: 3}).AugmentSlot(context.Background(), slot)
	require.NoError(t, err)

	indices, err := slot.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, indices)
}

func TestConcurrentRunsOnSameSlotSerialise(t *testing.T) {
	svc, layout := newFixture(t)
	slot := seedSlot(t, svc, layout, "shared", 0)

	locks := &dataset.SlotLocks{}
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			e := NewEngine(svc, layout, Options{Amount: 2, Seed: seed}, locks, nil)
			_, err := e.AugmentSlot(context.Background(), slot)
			assert.NoError(t, err)
		}(int64(i + 1))
	}
	wg.Wait()

	indices, err := slot.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, indices)
}

func TestRunIndependentSlots(t *testing.T) {
	svc, layout := newFixture(t)
	seedSlot(t, svc, layout, "a", 0)
	seedSlot(t, svc, layout, "b", 2)
	seedSlot(t, svc, layout, "c", 1)

	report, stats, err := newEngine(svc, layout, Options{Amount: 3, Workers: 3, Verify: true}).
		Run(context.Background(), dataset.Train, nil)
	require.NoError(t, err)

	assert.Equal(t, 9, report.Total)
	assert.Equal(t, 9, report.Succeeded)
	assert.Zero(t, report.Failed())
	assert.Equal(t, Stats{Cards: 3, Originals: 3, Generated: 9, Verified: 9}, stats)
	assert.InDelta(t, 4.0, stats.Multiplier(), 1e-9)

	want := map[string][]int{
		"a": {0, 1, 2, 3},
		"b": {0, 1, 2, 3, 4, 5},
		"c": {0, 1, 2, 3, 4},
	}
	for id, expected := range want {
		indices, err := layout.Slot(dataset.Train, id).Indices()
		require.NoError(t, err)
		assert.Equal(t, expected, indices, id)
	}
}

func TestMissingPrimaryIsSlotInvariant(t *testing.T) {
	svc, layout := newFixture(t)
	seedSlot(t, svc, layout, "ok", 0)
	orphan := layout.Slot(dataset.Train, "orphan")
	require.NoError(t, os.MkdirAll(orphan.Dir, 0755))

	_, err := newEngine(svc, layout, Options{Amount: 1}).AugmentSlot(context.Background(), orphan)
	assert.True(t, errors.Is(err, dataset.ErrSlotInvariant))

	report, stats, err := newEngine(svc, layout, Options{Amount: 2}).Run(context.Background(), dataset.Train, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	require.Equal(t, 1, report.Failed())
	assert.Equal(t, "orphan", report.Failures[0].CardID)
	assert.Equal(t, 1, stats.SlotErrors)

	indices, err := orphan.Indices()
	require.NoError(t, err)
	assert.Empty(t, indices)
}

func TestFirstUpsideDown(t *testing.T) {
	svc, layout := newFixture(t)
	slot := seedSlot(t, svc, layout, "flip", 0)
	e := newEngine(svc, layout, Options{Amount: 3, FirstUpsideDown: true})

	assert.Equal(t, UpsideDown(), e.RecipeFor(slot, 1))
	assert.NotEqual(t, UpsideDown(), e.RecipeFor(slot, 2))

	_, err := e.AugmentSlot(context.Background(), slot)
	require.NoError(t, err)

	// A second batch starts at 0004 and gets random recipes only.
	assert.Equal(t, NewRecipe(e.Seed(), slot.Key(), 4), e.RecipeFor(slot, 4))
}

func TestUpsamplesSmallPrimary(t *testing.T) {
	svc, layout := newFixture(t)
	slot := layout.Slot(dataset.Train, "small")
	small := ioutils.NewImageService(12, 16, 90)
	require.NoError(t, small.Save(slot.PrimaryPath(), gradient(12, 16)))

	res, err := newEngine(svc, layout, Options{Amount: 1}).AugmentSlot(context.Background(), slot)
	require.NoError(t, err)
	require.Equal(t, []int{1}, res.Written)
	assert.True(t, svc.Conforms(slot.Path(1)))
}

func TestRunCancelled(t *testing.T) {
	svc, layout := newFixture(t)
	seedSlot(t, svc, layout, "a", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newEngine(svc, layout, Options{Amount: 2}).Run(ctx, dataset.Train, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
