package augment

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// fill is the color of regions uncovered by geometric transforms.
var fill = color.NRGBA{A: 255}

// Apply renders recipe on src at exactly width x height. src is resampled
// to the target box first when its size differs.
func Apply(src image.Image, recipe Recipe, width, height int) *image.NRGBA {
	var img *image.NRGBA
	if b := src.Bounds(); b.Dx() == width && b.Dy() == height {
		img = imaging.Clone(src)
	} else {
		img = imaging.Resize(src, width, height, imaging.Lanczos)
	}

	for _, op := range recipe.Ops {
		img = applyOp(img, op)
	}
	return img
}

func applyOp(img *image.NRGBA, op Op) *image.NRGBA {
	switch op.Kind {
	case Rotate:
		return rotate(img, op.Value)
	case Zoom:
		return zoom(img, op.Value)
	case Shift:
		return shift(img, op.DX, op.DY)
	case Flip:
		if op.Horizontal {
			return imaging.FlipH(img)
		}
		return imaging.FlipV(img)
	case Brightness:
		return brightness(img, op.Value)
	case Contrast:
		return contrast(img, op.Value)
	case Saturation:
		return saturation(img, op.Value)
	case Noise:
		return noise(img, int(op.Value), op.Seed)
	case Blur:
		return imaging.Blur(img, op.Value)
	default:
		return img
	}
}

// rotate turns img about its center on a same-size canvas; corners that
// leave the frame are cut and uncovered areas are filled.
func rotate(img *image.NRGBA, degrees float64) *image.NRGBA {
	if math.Mod(math.Abs(degrees), 360) == 180 {
		return imaging.Rotate180(img)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	dc := gg.NewContext(w, h)
	dc.SetColor(fill)
	dc.Clear()
	dc.RotateAbout(gg.Radians(degrees), float64(w)/2, float64(h)/2)
	dc.DrawImageAnchored(img, w/2, h/2, 0.5, 0.5)
	return imaging.Clone(dc.Image())
}

// zoom scales img and re-crops or pads it to the original box.
func zoom(img *image.NRGBA, scale float64) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	zw := max(1, int(math.Round(float64(w)*scale)))
	zh := max(1, int(math.Round(float64(h)*scale)))

	scaled := imaging.Resize(img, zw, zh, imaging.Lanczos)
	return imaging.PasteCenter(imaging.New(w, h, fill), scaled)
}

func shift(img *image.NRGBA, dx, dy float64) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	offset := image.Pt(int(math.Round(dx*float64(w))), int(math.Round(dy*float64(h))))
	return imaging.Paste(imaging.New(w, h, fill), img, offset)
}

func brightness(img *image.NRGBA, delta float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp(float64(c.R) + delta),
			G: clamp(float64(c.G) + delta),
			B: clamp(float64(c.B) + delta),
			A: c.A,
		}
	})
}

func contrast(img *image.NRGBA, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp((float64(c.R)-128)*factor + 128),
			G: clamp((float64(c.G)-128)*factor + 128),
			B: clamp((float64(c.B)-128)*factor + 128),
			A: c.A,
		}
	})
}

// saturation interpolates between the luma gray and the original color.
func saturation(img *image.NRGBA, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		gray := 0.299*r + 0.587*g + 0.114*b
		return color.NRGBA{
			R: clamp(gray + factor*(r-gray)),
			G: clamp(gray + factor*(g-gray)),
			B: clamp(gray + factor*(b-gray)),
			A: c.A,
		}
	})
}

// noise adds uniform per-channel noise in [-intensity, intensity]. Pixels
// are visited in order so the output only depends on seed.
func noise(img *image.NRGBA, intensity int, seed uint64) *image.NRGBA {
	out := imaging.Clone(img)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	span := 2*intensity + 1

	for i := 0; i+4 <= len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(out.Pix[i+c]) + rng.IntN(span) - intensity
			out.Pix[i+c] = clamp(float64(v))
		}
	}
	return out
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
