// Package screen implements the virtual canvas that models what a GIF
// decoder would show on screen after each frame: a Mealy machine whose state
// is the composited canvas and whose transition is driven by each frame's
// disposal method. It also implements the palette transparency
// consolidation and row-trimming steps that happen alongside compositing.
package screen

import (
	"image"
	"image/color"

	"github.com/Peterliu358/Gifski/internal/quant"
)

// Disposal instructs the renderer what to do with a frame's pixels before
// the next frame is drawn.
type Disposal int

const (
	// Keep leaves the frame's pixels on screen for the next frame to build
	// on top of.
	Keep Disposal = iota
	// Background restores the transparent background within the frame's
	// placement rectangle before the next frame is drawn.
	Background
)

// Screen is the composited canvas, mutated only by Blit. It tracks the
// previous frame's placement rectangle and disposal method so Dispose can
// reproduce what a decoder would display just before compositing the next
// frame.
type Screen struct {
	width, height int
	pix           []color.NRGBA

	lastRect     image.Rectangle
	lastDisposal Disposal
	hasLast      bool
}

// New creates a Screen of the given dimensions, initially fully transparent.
func New(width, height int) *Screen {
	return &Screen{width: width, height: height, pix: make([]color.NRGBA, width*height)}
}

// Width and Height report the canvas dimensions.
func (s *Screen) Width() int  { return s.width }
func (s *Screen) Height() int { return s.height }

// Dispose applies the previous frame's disposal method to the canvas and
// returns the resulting composite as a standalone image, matching what a
// decoder would show immediately before the next frame is drawn. Calling
// Dispose does not itself advance lastRect/lastDisposal; that happens on the
// next Blit.
func (s *Screen) Dispose() *image.NRGBA {
	if s.hasLast && s.lastDisposal == Background {
		s.clearRect(s.lastRect)
	}
	return s.snapshot()
}

func (s *Screen) clearRect(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, s.width, s.height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s.pix[y*s.width+x] = color.NRGBA{}
		}
	}
}

func (s *Screen) snapshot() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			out.SetNRGBA(x, y, s.pix[y*s.width+x])
		}
	}
	return out
}

// Remap produces an indexed image for img against result's palette,
// optionally matching pixels against a composited background (the output of
// a prior Dispose call) so they can be quantized to the reserved
// transparent entry instead of redrawn. ditherLevel scales Floyd-Steinberg
// error diffusion; 0 disables dithering.
func (s *Screen) Remap(result *quant.Result, img, background *image.NRGBA, ditherLevel float64) (*image.Paletted, color.Palette) {
	out := result.Remap(img, background, ditherLevel)
	return out, result.Palette
}

// Blit composites img (indexed against pal, with transparent index
// optionally given) onto the canvas at (left, top), and records this
// frame's rectangle and disposal method for the next Dispose call.
// Transparent-index pixels leave the existing canvas color in place, since
// that's what a decoder does when it encounters a transparent pixel.
func (s *Screen) Blit(img *image.Paletted, pal color.Palette, left, top int, transparentIndex int, dispose Disposal) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		dy := top + (y - b.Min.Y)
		if dy < 0 || dy >= s.height {
			continue
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			dx := left + (x - b.Min.X)
			if dx < 0 || dx >= s.width {
				continue
			}
			idx := int(img.Pix[(y-b.Min.Y)*img.Stride+(x-b.Min.X)])
			if idx == transparentIndex {
				continue
			}
			if idx < 0 || idx >= len(pal) {
				continue
			}
			r, g, bl, a := pal[idx].RGBA()
			s.pix[dy*s.width+dx] = color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)}
		}
	}
	s.lastRect = image.Rect(left, top, left+b.Dx(), top+b.Dy())
	s.lastDisposal = dispose
	s.hasLast = true
}

// ConsolidateTransparency collapses every palette entry with alpha <= 128
// into a single transparent index, rewriting img's indices to match. It
// returns the resulting palette and the transparent index, or ok=false if
// no entry qualified.
func ConsolidateTransparency(img *image.Paletted, pal color.Palette) (out color.Palette, transparentIndex int, ok bool) {
	out = make(color.Palette, len(pal))
	copy(out, pal)

	remap := make(map[int]int)
	first := -1
	for i, c := range out {
		_, _, _, a := c.RGBA()
		if uint8(a>>8) > 128 {
			continue
		}
		out[i] = color.NRGBA{R: 0, G: 0, B: 0, A: 0}
		if first < 0 {
			first = i
		} else {
			remap[i] = first
		}
	}
	if first < 0 {
		return pal, -1, false
	}
	if len(remap) > 0 {
		for i, idx := range img.Pix {
			if to, found := remap[int(idx)]; found {
				img.Pix[i] = uint8(to)
			}
		}
	}
	return out, first, true
}

// Trim drops fully-background-matching rows from the top and bottom of img,
// matching them against background (the screen state after disposal). left
// is always 0: only rows are trimmed, never columns, matching the
// algorithm's original semantics. ok is false when every row trims away
// (the frame contributes nothing new and should be dropped).
func Trim(img *image.Paletted, pal color.Palette, transparentIndex int, background *image.NRGBA) (top int, trimmed *image.Paletted, ok bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	matches := func(row int) bool {
		for x := 0; x < w; x++ {
			idx := int(img.Pix[row*img.Stride+x])
			if idx == transparentIndex {
				continue
			}
			if idx < 0 || idx >= len(pal) {
				return false
			}
			r, g, bl, a := pal[idx].RGBA()
			boff := background.PixOffset(background.Bounds().Min.X+x, background.Bounds().Min.Y+row)
			br, bg, bb, ba := background.Pix[boff], background.Pix[boff+1], background.Pix[boff+2], background.Pix[boff+3]
			if uint8(r>>8) != br || uint8(g>>8) != bg || uint8(bl>>8) != bb || uint8(a>>8) != ba {
				return false
			}
		}
		return true
	}

	bottom := 0
	for row := h - 1; row >= 0; row-- {
		if !matches(row) {
			break
		}
		bottom++
	}
	if bottom == h {
		return 0, nil, false
	}

	topTrim := 0
	for row := 0; row < h-bottom; row++ {
		if !matches(row) {
			break
		}
		topTrim++
	}

	newH := h - bottom - topTrim
	out := image.NewPaletted(image.Rect(0, 0, w, newH), pal)
	for y := 0; y < newH; y++ {
		srcRow := topTrim + y
		copy(out.Pix[y*out.Stride:y*out.Stride+w], img.Pix[srcRow*img.Stride:srcRow*img.Stride+w])
	}
	return topTrim, out, true
}
