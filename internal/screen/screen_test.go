package screen

import (
	"image"
	"image/color"
	"testing"
)

func TestNewScreenIsFullyTransparent(t *testing.T) {
	s := New(4, 4)
	snap := s.Dispose()
	for i := 3; i < len(snap.Pix); i += 4 {
		if snap.Pix[i] != 0 {
			t.Fatalf("fresh screen should be transparent, alpha byte %d = %d", i, snap.Pix[i])
		}
	}
}

func paletted(w, h int, idx uint8, pal color.Palette) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	return img
}

func TestBlitKeepPersistsAcrossDispose(t *testing.T) {
	s := New(2, 2)
	pal := color.Palette{color.NRGBA{R: 200, G: 0, B: 0, A: 255}}
	img := paletted(2, 2, 0, pal)

	s.Blit(img, pal, 0, 0, -1, Keep)
	snap := s.Dispose()
	r, _, _, a := snap.At(0, 0).RGBA()
	if uint8(r>>8) != 200 || uint8(a>>8) != 255 {
		t.Fatalf("Keep disposal should preserve pixel, got r=%d a=%d", r>>8, a>>8)
	}
}

func TestBlitBackgroundClearsRectOnNextDispose(t *testing.T) {
	s := New(2, 2)
	pal := color.Palette{color.NRGBA{R: 200, G: 0, B: 0, A: 255}}
	img := paletted(2, 2, 0, pal)

	s.Blit(img, pal, 0, 0, -1, Background)
	snap := s.Dispose()
	_, _, _, a := snap.At(0, 0).RGBA()
	if uint8(a>>8) != 0 {
		t.Fatalf("Background disposal should clear the previous frame's rect, alpha=%d", a>>8)
	}
}

func TestBlitTransparentIndexLeavesScreenUnchanged(t *testing.T) {
	s := New(2, 2)
	opaquePal := color.Palette{color.NRGBA{R: 50, G: 60, B: 70, A: 255}}
	s.Blit(paletted(2, 2, 0, opaquePal), opaquePal, 0, 0, -1, Keep)

	transparentPal := color.Palette{color.NRGBA{}, color.NRGBA{R: 255, G: 255, B: 255, A: 255}}
	overlay := paletted(2, 2, 0, transparentPal) // every pixel is the transparent index
	s.Blit(overlay, transparentPal, 0, 0, 0, Keep)

	snap := s.Dispose()
	r, g, b, a := snap.At(0, 0).RGBA()
	if uint8(r>>8) != 50 || uint8(g>>8) != 60 || uint8(b>>8) != 70 || uint8(a>>8) != 255 {
		t.Fatalf("transparent-index blit should not overwrite prior pixel, got %d,%d,%d,%d", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestConsolidateTransparencyCollapsesMultipleFaintEntries(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 1, G: 1, B: 1, A: 10},
		color.NRGBA{R: 9, G: 9, B: 9, A: 255},
		color.NRGBA{R: 2, G: 2, B: 2, A: 40},
	}
	img := image.NewPaletted(image.Rect(0, 0, 1, 3), pal)
	img.Pix[0] = 0
	img.Pix[1] = 1
	img.Pix[2] = 2

	out, transparentIdx, ok := ConsolidateTransparency(img, pal)
	if !ok {
		t.Fatal("expected consolidation to find faint entries")
	}
	if transparentIdx != 0 {
		t.Fatalf("expected first faint entry to win, got %d", transparentIdx)
	}
	if img.Pix[2] != uint8(transparentIdx) {
		t.Fatalf("second faint entry's pixels should be remapped to %d, got %d", transparentIdx, img.Pix[2])
	}
	if img.Pix[1] != 1 {
		t.Fatalf("opaque pixel should be untouched, got %d", img.Pix[1])
	}
	r, g, b, a := out[transparentIdx].RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Fatalf("consolidated entry should be fully transparent, got %d,%d,%d,%d", r, g, b, a)
	}
}

func TestConsolidateTransparencyNoFaintEntriesIsNoop(t *testing.T) {
	pal := color.Palette{color.NRGBA{R: 1, G: 2, B: 3, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, 1, 1), pal)
	_, _, ok := ConsolidateTransparency(img, pal)
	if ok {
		t.Fatal("expected no consolidation when every entry is opaque")
	}
}

func TestTrimDropsMatchingTopAndBottomRows(t *testing.T) {
	bg := image.NewNRGBA(image.Rect(0, 0, 2, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			bg.SetNRGBA(x, y, color.NRGBA{R: 9, G: 9, B: 9, A: 255})
		}
	}

	changed := color.Palette{color.NRGBA{R: 9, G: 9, B: 9, A: 255}, color.NRGBA{R: 200, G: 0, B: 0, A: 255}}
	img2 := image.NewPaletted(image.Rect(0, 0, 2, 4), changed)
	for i := range img2.Pix {
		img2.Pix[i] = 0
	}
	img2.Pix[1*img2.Stride+0] = 1
	img2.Pix[2*img2.Stride+0] = 1

	top, trimmed, ok := Trim(img2, changed, -1, bg)
	if !ok {
		t.Fatal("expected trim to keep the differing rows")
	}
	if top != 1 {
		t.Fatalf("expected top trim of 1, got %d", top)
	}
	if trimmed.Bounds().Dy() != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", trimmed.Bounds().Dy())
	}
}

func TestTrimDropsEntireFrameWhenFullyMatchingBackground(t *testing.T) {
	pal := color.Palette{color.NRGBA{R: 9, G: 9, B: 9, A: 255}}
	bg := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			bg.SetNRGBA(x, y, color.NRGBA{R: 9, G: 9, B: 9, A: 255})
		}
	}
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), pal)
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	_, _, ok := Trim(img, pal, -1, bg)
	if ok {
		t.Fatal("expected frame to be dropped entirely")
	}
}
