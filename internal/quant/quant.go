// Package quant selects an adaptive palette for a frame and remaps that
// frame's pixels onto it. Palette extraction is grounded on
// github.com/mccutchen/palettor's weighted k-means clusterer; the importance
// map from internal/diffmap is folded in by oversampling important pixels
// into the training set, since palettor itself has no notion of per-pixel
// weight.
package quant

import (
	"image"
	"image/color"

	"github.com/mccutchen/palettor"
	"github.com/pkg/errors"

	"github.com/Peterliu358/Gifski/internal/diffmap"
)

// trainingBudget caps the number of samples fed to palettor.Extract, bounding
// k-means CPU cost on large frames.
const trainingBudget = 20000

// bgMatchThreshold is the colordiff value below which a pixel is considered
// visually unchanged from the composited background and is preferentially
// mapped to the transparent palette entry rather than its nearest color.
const bgMatchThreshold = 3 * 255 * 255 / 400

// Options configures a single frame's palette extraction.
type Options struct {
	// MaxColors bounds the palette size, including the reserved transparent
	// entry when FixedTransparent is set. Zero means 256.
	MaxColors int
	// FixedTransparent reserves palette index 0 for NRGBA{0,0,0,0}; used for
	// every frame after the first, which must be able to show background.
	FixedTransparent bool
	// Fast lowers palettor's k-means iteration ceiling.
	Fast bool
}

// Result holds an extracted palette, ready for Remap.
type Result struct {
	Palette color.Palette
}

// Select extracts a palette for img using importance-weighted k-means.
// importance must have one entry per pixel of img in row-major order, or be
// nil to weight every pixel equally.
func Select(img *image.NRGBA, importance []uint8, opts Options) (*Result, error) {
	maxColors := opts.MaxColors
	if maxColors <= 0 {
		maxColors = 256
	}
	// A frame with genuine transparent pixels needs a transparent palette
	// entry to preserve them, even on the first frame where FixedTransparent
	// isn't otherwise requested.
	reserveTransparent := opts.FixedTransparent || hasTransparentPixel(img)
	reserve := 0
	if reserveTransparent {
		reserve = 1
	}
	k := maxColors - reserve
	if k < 1 {
		k = 1
	}

	training := buildTrainingImage(img, importance)
	if unique := countUniqueColors(training); k > unique {
		k = unique
	}
	if k < 1 {
		k = 1
	}

	maxIterations := 16
	if opts.Fast {
		maxIterations = 2
	}

	pal, err := palettor.Extract(k, maxIterations, training)
	if err != nil {
		return nil, errors.Wrap(err, "quant: palettor extract")
	}

	colors := pal.Colors()
	result := make(color.Palette, 0, len(colors)+reserve)
	if reserveTransparent {
		result = append(result, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	}
	for _, c := range colors {
		r, g, b, a := c.RGBA()
		result = append(result, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)})
	}
	return &Result{Palette: result}, nil
}

// buildTrainingImage flattens img's opaque pixels into a 1-row image for
// palettor, subsampling first if the frame is large and then repeating each
// surviving pixel in proportion to its importance weight. Transparent pixels
// are excluded: transparency is handled by the reserved palette entry, not
// by cluster fitting.
func buildTrainingImage(img *image.NRGBA, importance []uint8) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h

	stride := 1
	if total > trainingBudget {
		stride = total/trainingBudget + 1
	}

	samples := make([]color.NRGBA, 0, trainingBudget*2)
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixelIdx := idx
			idx++
			if pixelIdx%stride != 0 {
				continue
			}
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			a := img.Pix[off+3]
			if a == 0 {
				continue
			}
			c := color.NRGBA{R: img.Pix[off], G: img.Pix[off+1], B: img.Pix[off+2], A: a}
			weight := 1
			if importance != nil && pixelIdx < len(importance) {
				weight += int(importance[pixelIdx]) / 32
			}
			for n := 0; n < weight; n++ {
				samples = append(samples, c)
			}
		}
	}
	if len(samples) == 0 {
		samples = append(samples, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	}

	out := image.NewNRGBA(image.Rect(0, 0, len(samples), 1))
	for x, c := range samples {
		out.SetNRGBA(x, 0, c)
	}
	return out
}

// hasTransparentPixel reports whether img has any fully transparent pixel,
// which needs a reserved palette entry to survive quantization.
func hasTransparentPixel(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 0 {
			return true
		}
	}
	return false
}

func countUniqueColors(img image.Image) int {
	seen := make(map[color.NRGBA]struct{})
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		r, g, bl, a := img.At(x, b.Min.Y).RGBA()
		seen[color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)}] = struct{}{}
	}
	return len(seen)
}

// Remap assigns every pixel of img to a palette index, applying Floyd-
// Steinberg error diffusion at the given strength (0 disables dithering).
// When background is non-nil and the palette has a transparent entry (index
// with alpha 0), pixels that visually match the composited background are
// preferentially mapped to that entry, allowing the screen's disposal
// machinery to skip redrawing them.
func (r *Result) Remap(img, background *image.NRGBA, ditherLevel float64) *image.Paletted {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pal := r.Palette
	out := image.NewPaletted(image.Rect(0, 0, w, h), pal)

	transparentIdx := -1
	for i, c := range pal {
		_, _, _, a := c.RGBA()
		if a == 0 {
			transparentIdx = i
			break
		}
	}

	errs := make([]diffusionError, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			sa := img.Pix[off+3]

			e := errs[y*w+x]
			sr := clamp255(float64(img.Pix[off]) + e.r*ditherLevel)
			sg := clamp255(float64(img.Pix[off+1]) + e.g*ditherLevel)
			sb := clamp255(float64(img.Pix[off+2]) + e.b*ditherLevel)

			useIdx := -1
			switch {
			case sa == 0 && transparentIdx >= 0:
				useIdx = transparentIdx
			case background != nil && transparentIdx >= 0:
				boff := background.PixOffset(b.Min.X+x, b.Min.Y+y)
				if background.Pix[boff+3] > 0 {
					d := diffmap.ColorDiff(uint8(sr), uint8(sg), uint8(sb), 255,
						background.Pix[boff], background.Pix[boff+1], background.Pix[boff+2], 255)
					if d < bgMatchThreshold {
						useIdx = transparentIdx
					}
				}
			}
			if useIdx < 0 {
				useIdx = nearestIndex(pal, sr, sg, sb, transparentIdx)
			}
			out.Pix[y*w+x] = uint8(useIdx)

			pr, pg, pb, pa := pal[useIdx].RGBA()
			if pa == 0 {
				continue // no useful color error to diffuse from a transparent match
			}
			diffuseError(errs, w, h, x, y,
				sr-float64(uint8(pr>>8)), sg-float64(uint8(pg>>8)), sb-float64(uint8(pb>>8)))
		}
	}
	return out
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// nearestIndex finds the palette entry minimizing ColorDiff to (r,g,b),
// skipping the transparent entry (opaque source pixels should never be
// assigned to it outside the explicit background-match path above).
func nearestIndex(pal color.Palette, r, g, b float64, skip int) int {
	best, bestDist := 0, uint32(1<<31)
	for i, c := range pal {
		if i == skip {
			continue
		}
		cr, cg, cb, ca := c.RGBA()
		if ca == 0 {
			continue
		}
		d := diffmap.ColorDiff(uint8(r), uint8(g), uint8(b), 255, uint8(cr>>8), uint8(cg>>8), uint8(cb>>8), 255)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// diffusionError accumulates carried-forward per-channel quantization error
// for one not-yet-visited pixel.
type diffusionError struct{ r, g, b float64 }

// diffuseError spreads a quantization error across not-yet-visited
// neighbors using the standard Floyd-Steinberg kernel.
func diffuseError(errs []diffusionError, w, h, x, y int, er, eg, eb float64) {
	add := func(xx, yy int, frac float64) {
		if xx < 0 || xx >= w || yy < 0 || yy >= h {
			return
		}
		i := yy*w + xx
		errs[i].r += er * frac
		errs[i].g += eg * frac
		errs[i].b += eb * frac
	}
	add(x+1, y, 7.0/16)
	add(x-1, y+1, 3.0/16)
	add(x, y+1, 5.0/16)
	add(x+1, y+1, 1.0/16)
}
