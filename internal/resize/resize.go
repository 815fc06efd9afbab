// Package resize implements frame ingest preprocessing: the max-width /
// max-height resize rule and the fixed ordered-dither alpha binarization
// applied to every incoming frame before it enters the pipeline.
package resize

import (
	"image"

	"github.com/disintegration/imaging"
)

// DimensionsFor computes the output size for an image of size (w, h) given
// optional per-axis maximums. Aspect ratio is not preserved when both
// maximums are given.
func DimensionsFor(w, h int, maxW, maxH *int) (int, int) {
	switch {
	case maxW == nil && maxH == nil:
		factor := (w*h + 800*600) / (800 * 600)
		if factor > 1 {
			return w / factor, h / factor
		}
		return w, h
	case maxW != nil && maxH != nil:
		return min(*maxW, w), min(*maxH, h)
	case maxW != nil:
		rw := min(*maxW, w)
		return rw, round(h * rw, w)
	default: // maxH != nil
		rh := min(*maxH, h)
		return round(w*rh, h), rh
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// round computes round(num/den) using integer arithmetic, matching the
// distilled spec's round(h*w'/w) resize formula.
func round(num, den int) int {
	if den == 0 {
		return 0
	}
	return (num + den/2) / den
}

// Resize returns img resized to w x h using a Lanczos3 resampling kernel.
// It's a no-op copy (still converted to *image.NRGBA) when the size is
// already correct.
func Resize(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// ditherMatrix is the fixed 8x8 ordered-dither threshold matrix used to
// binarize partially-transparent alpha, indexed as D[(y&7)*8+(x&7)].
var ditherMatrix = [64]uint8{
	0*2 + 8, 48*2 + 8, 12*2 + 8, 60*2 + 8, 3*2 + 8, 51*2 + 8, 15*2 + 8, 63*2 + 8,
	32*2 + 8, 16*2 + 8, 44*2 + 8, 28*2 + 8, 35*2 + 8, 19*2 + 8, 47*2 + 8, 31*2 + 8,
	8*2 + 8, 56*2 + 8, 4*2 + 8, 52*2 + 8, 11*2 + 8, 59*2 + 8, 7*2 + 8, 55*2 + 8,
	40*2 + 8, 24*2 + 8, 36*2 + 8, 20*2 + 8, 43*2 + 8, 27*2 + 8, 39*2 + 8, 23*2 + 8,
	2*2 + 8, 50*2 + 8, 14*2 + 8, 62*2 + 8, 1*2 + 8, 49*2 + 8, 13*2 + 8, 61*2 + 8,
	34*2 + 8, 18*2 + 8, 46*2 + 8, 30*2 + 8, 33*2 + 8, 17*2 + 8, 45*2 + 8, 29*2 + 8,
	10*2 + 8, 58*2 + 8, 6*2 + 8, 54*2 + 8, 9*2 + 8, 57*2 + 8, 5*2 + 8, 53*2 + 8,
	42*2 + 8, 26*2 + 8, 38*2 + 8, 22*2 + 8, 41*2 + 8, 25*2 + 8, 37*2 + 8, 21*2 + 8,
}

// BinarizeAlpha makes transparency binary: every pixel with alpha < 255 is
// pushed to fully transparent or fully opaque using a per-position
// threshold from the ordered-dither matrix. Pixels already at alpha == 255
// are untouched. The decision is permanent and idempotent.
func BinarizeAlpha(img *image.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := y - b.Min.Y
		for x := b.Min.X; x < b.Max.X; x++ {
			col := x - b.Min.X
			off := img.PixOffset(x, y)
			a := img.Pix[off+3]
			if a == 255 {
				continue
			}
			threshold := ditherMatrix[(row&7)*8+(col&7)]
			if a < threshold {
				img.Pix[off+3] = 0
			} else {
				img.Pix[off+3] = 255
			}
		}
	}
}
