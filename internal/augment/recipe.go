package augment

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
)

// Kind is a transform kind. The numeric order is the canonical application
// order: geometric transforms first, then photometric ones.
type Kind int

const (
	Rotate Kind = iota
	Zoom
	Shift
	Flip
	Brightness
	Contrast
	Saturation
	Noise
	Blur

	numKinds
)

var kindNames = [...]string{"rotate", "zoom", "shift", "flip", "brightness", "contrast", "saturation", "noise", "blur"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Geometric reports whether the transform moves pixels.
func (k Kind) Geometric() bool {
	return k <= Flip
}

// Parameter ranges.
const (
	MaxRotation   = 15.0 // degrees, either direction
	MinZoom       = 0.95
	MaxZoom       = 1.05
	MaxShift      = 0.05 // fraction of each axis
	MaxBrightness = 30.0 // additive
	MinContrast   = 0.7
	MaxContrast   = 1.3
	MinSaturation = 0.5
	MaxSaturation = 1.5
	MinNoise      = 5
	MaxNoise      = 25
	MinBlur       = 0.5
	MaxBlur       = 2.0

	minOps = 2
	maxOps = 4
)

// Op is one transform with its sampled parameters.
type Op struct {
	Kind Kind

	// Value is the scalar parameter: degrees for Rotate, scale for Zoom,
	// offset for Brightness, factor for Contrast and Saturation, intensity
	// for Noise and sigma for Blur.
	Value float64

	// DX and DY are the Shift offsets as fractions of width and height.
	DX, DY float64

	// Horizontal selects a horizontal Flip; otherwise it is vertical.
	Horizontal bool

	// Seed drives the per-pixel Noise stream.
	Seed uint64
}

func (o Op) String() string {
	switch o.Kind {
	case Shift:
		return fmt.Sprintf("shift(%+.3f,%+.3f)", o.DX, o.DY)
	case Flip:
		if o.Horizontal {
			return "flip(h)"
		}
		return "flip(v)"
	default:
		return fmt.Sprintf("%s(%.3f)", o.Kind, o.Value)
	}
}

// Recipe is an ordered list of transforms for one derivative.
type Recipe struct {
	Ops []Op
}

func (r Recipe) String() string {
	parts := make([]string, len(r.Ops))
	for i, op := range r.Ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, " ")
}

// Kinds returns the transform kinds of the recipe in application order.
func (r Recipe) Kinds() []Kind {
	kinds := make([]Kind, len(r.Ops))
	for i, op := range r.Ops {
		kinds[i] = op.Kind
	}
	return kinds
}

// UpsideDown is the recipe of a pure 180° rotation.
func UpsideDown() Recipe {
	return Recipe{Ops: []Op{{Kind: Rotate, Value: 180}}}
}

// NewRecipe derives the recipe of derivative index of slot from seed. It is
// a pure function: the same inputs always produce the same recipe.
//
// Two to four distinct kinds are sampled without replacement and sorted
// into canonical order.
func NewRecipe(seed int64, slotID string, index int) Recipe {
	rng := rand.New(rand.NewPCG(uint64(seed), streamKey(slotID, index)))

	n := minOps + rng.IntN(maxOps-minOps+1)
	perm := rng.Perm(int(numKinds))[:n]
	sort.Ints(perm)

	ops := make([]Op, n)
	for i, k := range perm {
		ops[i] = sample(Kind(k), rng)
	}
	return Recipe{Ops: ops}
}

func sample(k Kind, rng *rand.Rand) Op {
	op := Op{Kind: k}
	switch k {
	case Rotate:
		op.Value = uniform(rng, -MaxRotation, MaxRotation)
	case Zoom:
		op.Value = uniform(rng, MinZoom, MaxZoom)
	case Shift:
		op.DX = uniform(rng, -MaxShift, MaxShift)
		op.DY = uniform(rng, -MaxShift, MaxShift)
	case Flip:
		op.Horizontal = rng.IntN(2) == 0
	case Brightness:
		op.Value = uniform(rng, -MaxBrightness, MaxBrightness)
	case Contrast:
		op.Value = uniform(rng, MinContrast, MaxContrast)
	case Saturation:
		op.Value = uniform(rng, MinSaturation, MaxSaturation)
	case Noise:
		op.Value = float64(MinNoise + rng.IntN(MaxNoise-MinNoise+1))
		op.Seed = rng.Uint64()
	case Blur:
		op.Value = uniform(rng, MinBlur, MaxBlur)
	}
	return op
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func streamKey(slotID string, index int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(slotID))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	h.Write(buf[:])
	return h.Sum64()
}
