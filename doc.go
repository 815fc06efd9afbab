/*
Links:
	https://www.w3.org/Graphics/GIF/spec-gif89a.txt
	https://github.com/ImageOptim/gifski
	https://www.w3.org/TR/PNG/
*/

// Package gifski encodes a time-stamped sequence of RGBA raster frames into
// an animated, palettized GIF image stream.
//
// The package exposes a Collector/Writer pair: frames are pushed into the
// Collector (in any order, tagged by index) while the Writer drains them
// through a four-stage concurrent pipeline — diff, quantize, remap, write —
// and hands the result to a pluggable Encoder sink.
//
// [1]: https://www.w3.org/Graphics/GIF/spec-gif89a.txt
package gifski
