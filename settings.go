package gifski

import "math"

// Repeat controls GIF looping metadata passed through to the Encoder sink.
type Repeat struct {
	// Infinite is true if the animation should loop forever. N is ignored.
	Infinite bool
	// N is the number of times to play the animation when Infinite is false.
	N uint16
}

// RepeatInfinite returns a Repeat that loops forever.
func RepeatInfinite() Repeat {
	return Repeat{Infinite: true}
}

// RepeatFinite returns a Repeat that plays the animation n times.
func RepeatFinite(n uint16) Repeat {
	return Repeat{N: n}
}

// Settings configures a single encoding run. Settings is immutable once
// passed to New and is shared read-only by every pipeline stage.
type Settings struct {
	// MaxWidth caps the output width; nil means unconstrained.
	MaxWidth *uint
	// MaxHeight caps the output height; nil means unconstrained.
	MaxHeight *uint
	// Quality is 1..100, but the useful range is 50..100. Recommended: 100.
	Quality int
	// Fast trades quality for encoding speed.
	Fast bool
	// Repeat sets the looping behavior of the encoded animation.
	Repeat Repeat
}

// ColorQuality is used for frame-difference thresholds and palette
// selection; it's deliberately higher than Quality because further loss
// (e.g. dithering, an optional external compressor) is applied after
// quantization.
func (s Settings) ColorQuality() int {
	q := s.Quality * 4 / 3
	if q > 100 {
		return 100
	}
	return q
}

// GifsicleLoss mirrors the loss dial of an external gifsicle-style
// post-compressor. No such compressor ships with this module (see
// DESIGN.md), but the derived value is kept for API parity with callers
// that bolt one on.
func (s Settings) GifsicleLoss() uint32 {
	x := 100.0/6.0 - float64(s.Quality)/6.0
	return uint32(math.Ceil(math.Pow(x, 1.75)))
}
