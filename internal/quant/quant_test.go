package quant

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestSelectSingleColorFrameProducesOneUsableEntry(t *testing.T) {
	img := solid(16, 16, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	res, err := Select(img, nil, Options{MaxColors: 16})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Palette) == 0 {
		t.Fatal("expected a non-empty palette")
	}
}

func TestSelectFixedTransparentReservesIndexZero(t *testing.T) {
	img := solid(16, 16, color.NRGBA{R: 10, G: 200, B: 10, A: 255})
	res, err := Select(img, nil, Options{MaxColors: 8, FixedTransparent: true})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	r, g, b, a := res.Palette[0].RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Fatalf("index 0 should be reserved transparent, got %d,%d,%d,%d", r, g, b, a)
	}
}

func TestSelectReservesTransparentForFirstFrameWithAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	res, err := Select(img, nil, Options{MaxColors: 4})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	r, g, b, a := res.Palette[0].RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Fatalf("first frame with transparent pixels should still reserve index 0, got %d,%d,%d,%d", r, g, b, a)
	}

	out := res.Remap(img, nil, 0)
	if out.Pix[0] != 0 {
		t.Fatalf("transparent source pixel should map to reserved index 0, got %d", out.Pix[0])
	}
}

func TestSelectRespectsMaxColors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	i := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(i * 7), G: uint8(i * 13), B: uint8(i * 19), A: 255})
			i++
		}
	}
	res, err := Select(img, nil, Options{MaxColors: 4})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Palette) > 4 {
		t.Fatalf("palette exceeds MaxColors: got %d", len(res.Palette))
	}
}

func TestRemapAssignsEveryPixelAValidIndex(t *testing.T) {
	img := solid(8, 8, color.NRGBA{R: 50, G: 60, B: 70, A: 255})
	res, err := Select(img, nil, Options{MaxColors: 4})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	out := res.Remap(img, nil, 1.0)
	for _, idx := range out.Pix {
		if int(idx) >= len(res.Palette) {
			t.Fatalf("index %d out of range for palette of size %d", idx, len(res.Palette))
		}
	}
}

func TestRemapTransparentSourcePixelsMapToTransparentIndex(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	res, err := Select(img, nil, Options{MaxColors: 4, FixedTransparent: true})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	out := res.Remap(img, nil, 0)
	if out.Pix[0] != 0 {
		t.Fatalf("transparent source pixel should map to reserved index 0, got %d", out.Pix[0])
	}
}

func TestRemapBackgroundMatchPrefersTransparentIndex(t *testing.T) {
	bgColor := color.NRGBA{R: 10, G: 10, B: 10, A: 255}
	img := solid(4, 4, bgColor)
	background := solid(4, 4, bgColor)

	res, err := Select(solid(4, 4, color.NRGBA{R: 250, G: 0, B: 0, A: 255}), nil, Options{MaxColors: 4, FixedTransparent: true})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	out := res.Remap(img, background, 0)
	for _, idx := range out.Pix {
		if idx != 0 {
			t.Fatalf("pixel matching background should map to transparent index 0, got %d", idx)
		}
	}
}
