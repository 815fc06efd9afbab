package gifski

import (
	"image"
	"image/color"

	"github.com/Peterliu358/Gifski/internal/quant"
	"github.com/Peterliu358/Gifski/internal/screen"
)

// Disposal instructs the renderer what to do with a frame's pixels before
// the next frame is drawn.
type Disposal = screen.Disposal

const (
	// Keep leaves the frame's pixels on screen for the next frame.
	Keep = screen.Keep
	// Background restores the transparent background within the frame's
	// placement rectangle before the next frame is drawn.
	Background = screen.Background
)

// DiffFrame is one frame after dedup and importance-map computation.
type DiffFrame struct {
	Ordinal    int
	EndPTS     float64
	Disposal   Disposal
	Image      *image.NRGBA
	Importance []uint8
}

// QuantFrame is one frame after palette selection.
type QuantFrame struct {
	Ordinal  int
	EndPTS   float64
	Disposal Disposal
	Quant    *quant.Result
	Source   *image.NRGBA
}

// RemappedFrame is one frame after screen compositing, trimming, and
// disposal bookkeeping; it's ready for byte-level encoding.
type RemappedFrame struct {
	Ordinal int
	EndPTS  float64
	Frame   GIFFrame
}

// GIFFrame is the fully-prepared description of one encoded frame: an
// indexed image placed on the logical screen at (Left, Top), with its own
// local palette and disposal method.
type GIFFrame struct {
	Left, Top                 uint16
	ScreenWidth, ScreenHeight uint16
	Image                     *image.Paletted
	Palette                   color.Palette
	Disposal                  Disposal
	TransparentIndex          *uint8
}

// Encoder is the byte-level sink that a Writer drives, one frame at a time.
// gifenc.New provides the concrete default implementation.
type Encoder interface {
	WriteFrame(frame GIFFrame, delayHundredths uint16, settings Settings) error
	Finish() error
}
