package resize

import (
	"image"
	"image/color"
	"testing"
)

func i(n int) *int { return &n }

func TestDimensionsFor(t *testing.T) {
	golden := []struct {
		w, h       int
		maxW, maxH *int
		wantW      int
		wantH      int
	}{
		{w: 640, h: 480, wantW: 640, wantH: 480},                 // i=0: under the 800x600 budget, unchanged
		{w: 1600, h: 1200, wantW: 320, wantH: 240},                // i=1: exactly 4x the budget, factor=(4*B+B)/B=5
		{w: 100, h: 50, maxW: i(50), maxH: i(50), wantW: 50, wantH: 50}, // i=2: two-axis clamp, aspect not preserved
		{w: 100, h: 50, maxW: i(200), maxH: i(200), wantW: 100, wantH: 50}, // i=3: maxes larger than image, unchanged
		{w: 200, h: 100, maxW: i(100), wantW: 100, wantH: 50},     // i=4: single axis, aspect preserved
		{w: 200, h: 100, maxH: i(50), wantW: 100, wantH: 50},      // i=5: single axis (height), aspect preserved
	}
	for idx, g := range golden {
		gotW, gotH := DimensionsFor(g.w, g.h, g.maxW, g.maxH)
		if gotW != g.wantW || gotH != g.wantH {
			t.Errorf("i=%d: DimensionsFor(%d,%d,...) = (%d,%d), want (%d,%d)",
				idx, g.w, g.h, gotW, gotH, g.wantW, g.wantH)
		}
	}
}

func TestBinarizeAlphaIdempotent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: uint8((x + y) * 16)})
		}
	}

	once := cloneNRGBA(img)
	BinarizeAlpha(once)

	twice := cloneNRGBA(once)
	BinarizeAlpha(twice)

	for i := range once.Pix {
		if once.Pix[i] != twice.Pix[i] {
			t.Fatalf("binarization not idempotent at byte %d: %d != %d", i, once.Pix[i], twice.Pix[i])
		}
	}
}

func TestBinarizeAlphaLeavesOpaqueUntouched(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	BinarizeAlpha(img)
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("opaque pixel alpha modified: got %d", img.Pix[i])
		}
	}
}

func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}
