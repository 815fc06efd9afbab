// Package gifenc implements the default Encoder sink: a byte-level GIF89a
// writer built directly on bit/byte primitives rather than a decode-first
// image library, mirroring the teacher's own bit-level codec style.
package gifenc

import (
	"bytes"
	"compress/lzw"
	"image"
	"image/color"
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"

	gifski "github.com/Peterliu358/Gifski"
)

var gifSignature = []byte("GIF89a")

const (
	disposalKeep       = 1
	disposalBackground = 2
)

// Writer is the concrete default gifski.Encoder: it serializes each
// GIFFrame directly to GIF89a bytes on an underlying io.Writer.
type Writer struct {
	bw          bitio.Writer
	wroteHeader bool
}

// New wraps w as a gifski.Encoder. The first call to WriteFrame determines
// the logical screen size and writes the GIF header, logical screen
// descriptor, and looping application extension.
func New(w io.Writer) *Writer {
	return &Writer{bw: bitio.NewWriter(w)}
}

// WriteFrame implements gifski.Encoder.
func (enc *Writer) WriteFrame(frame gifski.GIFFrame, delayHundredths uint16, settings gifski.Settings) error {
	if !enc.wroteHeader {
		if err := enc.writeHeader(frame, settings); err != nil {
			return errutil.Err(err)
		}
		enc.wroteHeader = true
	}
	if err := enc.writeGraphicControl(frame, delayHundredths); err != nil {
		return errutil.Err(err)
	}
	if err := enc.writeImageDescriptor(frame); err != nil {
		return errutil.Err(err)
	}
	if err := enc.writeImageData(frame.Image); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// Finish implements gifski.Encoder, writing the GIF trailer byte.
func (enc *Writer) Finish() error {
	if !enc.wroteHeader {
		return nil // no frames were ever written; nothing to finish
	}
	if err := enc.bw.WriteByte(0x3b); err != nil {
		return errutil.Err(err)
	}
	_, err := enc.bw.Align()
	return errutil.Err(err)
}

func (enc *Writer) writeHeader(frame gifski.GIFFrame, settings gifski.Settings) error {
	bw := enc.bw
	if _, err := bw.Write(gifSignature); err != nil {
		return err
	}
	if err := writeUint16LE(bw, frame.ScreenWidth); err != nil {
		return err
	}
	if err := writeUint16LE(bw, frame.ScreenHeight); err != nil {
		return err
	}
	// Logical screen descriptor packed byte, one bit-field at a time: no
	// global color table, color resolution 7 (8 bits/channel), not sorted,
	// global table size 0.
	if err := bw.WriteBits(0, 1); err != nil { // global color table flag
		return err
	}
	if err := bw.WriteBits(7, 3); err != nil { // color resolution
		return err
	}
	if err := bw.WriteBits(0, 1); err != nil { // sort flag
		return err
	}
	if err := bw.WriteBits(0, 3); err != nil { // size of global color table
		return err
	}
	if err := bw.WriteByte(0); err != nil { // background color index
		return err
	}
	if err := bw.WriteByte(0); err != nil { // pixel aspect ratio
		return err
	}
	return enc.writeLoopExtension(settings.Repeat)
}

func (enc *Writer) writeLoopExtension(repeat gifski.Repeat) error {
	bw := enc.bw
	n := repeat.N
	if repeat.Infinite {
		n = 0
	}
	for _, b := range []byte{0x21, 0xff, 0x0b} {
		if err := bw.WriteByte(b); err != nil {
			return err
		}
	}
	if _, err := bw.Write([]byte("NETSCAPE2.0")); err != nil {
		return err
	}
	if err := bw.WriteByte(0x03); err != nil {
		return err
	}
	if err := bw.WriteByte(0x01); err != nil {
		return err
	}
	if err := writeUint16LE(bw, n); err != nil {
		return err
	}
	return bw.WriteByte(0x00)
}

func (enc *Writer) writeGraphicControl(frame gifski.GIFFrame, delayHundredths uint16) error {
	bw := enc.bw
	disposal := byte(disposalKeep)
	if frame.Disposal == gifski.Background {
		disposal = disposalBackground
	}
	transparentFlag := uint64(0)
	transparentIndex := byte(0)
	if frame.TransparentIndex != nil {
		transparentFlag = 1
		transparentIndex = *frame.TransparentIndex
	}

	if err := bw.WriteByte(0x21); err != nil {
		return err
	}
	if err := bw.WriteByte(0xf9); err != nil {
		return err
	}
	if err := bw.WriteByte(0x04); err != nil {
		return err
	}
	if err := bw.WriteBits(0, 3); err != nil { // reserved
		return err
	}
	if err := bw.WriteBits(uint64(disposal), 3); err != nil {
		return err
	}
	if err := bw.WriteBits(0, 1); err != nil { // user input flag
		return err
	}
	if err := bw.WriteBits(transparentFlag, 1); err != nil {
		return err
	}
	if err := writeUint16LE(bw, delayHundredths); err != nil {
		return err
	}
	if err := bw.WriteByte(transparentIndex); err != nil {
		return err
	}
	return bw.WriteByte(0x00)
}

func (enc *Writer) writeImageDescriptor(frame gifski.GIFFrame) error {
	bw := enc.bw
	b := frame.Image.Bounds()

	if err := bw.WriteByte(0x2c); err != nil {
		return err
	}
	if err := writeUint16LE(bw, frame.Left); err != nil {
		return err
	}
	if err := writeUint16LE(bw, frame.Top); err != nil {
		return err
	}
	if err := writeUint16LE(bw, uint16(b.Dx())); err != nil {
		return err
	}
	if err := writeUint16LE(bw, uint16(b.Dy())); err != nil {
		return err
	}

	bits := paletteBits(len(frame.Palette))
	if err := bw.WriteBits(1, 1); err != nil { // local color table flag
		return err
	}
	if err := bw.WriteBits(0, 1); err != nil { // interlace flag
		return err
	}
	if err := bw.WriteBits(0, 1); err != nil { // sort flag
		return err
	}
	if err := bw.WriteBits(0, 2); err != nil { // reserved
		return err
	}
	if err := bw.WriteBits(uint64(bits-1), 3); err != nil { // size of local color table
		return err
	}

	return writeColorTable(bw, frame.Palette, 1<<uint(bits))
}

func writeColorTable(bw bitio.Writer, pal color.Palette, size int) error {
	for i := 0; i < size; i++ {
		var r, g, b byte
		if i < len(pal) {
			cr, cg, cb, _ := pal[i].RGBA()
			r, g, b = byte(cr>>8), byte(cg>>8), byte(cb>>8)
		}
		if err := bw.WriteByte(r); err != nil {
			return err
		}
		if err := bw.WriteByte(g); err != nil {
			return err
		}
		if err := bw.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Writer) writeImageData(img *image.Paletted) error {
	bw := enc.bw
	bits := paletteBits(len(img.Palette))

	if err := bw.WriteByte(byte(bits)); err != nil {
		return err
	}

	var buf bytes.Buffer
	lw := lzw.NewWriter(&buf, lzw.LSB, bits)
	b := img.Bounds()
	if b.Dx() == img.Stride {
		if _, err := lw.Write(img.Pix); err != nil {
			return err
		}
	} else {
		row := make([]byte, b.Dx())
		for y := 0; y < b.Dy(); y++ {
			copy(row, img.Pix[y*img.Stride:y*img.Stride+b.Dx()])
			if _, err := lw.Write(row); err != nil {
				return err
			}
		}
	}
	if err := lw.Close(); err != nil {
		return err
	}

	data := buf.Bytes()
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		if err := bw.WriteByte(byte(n)); err != nil {
			return err
		}
		if _, err := bw.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return bw.WriteByte(0x00)
}

func writeUint16LE(bw bitio.Writer, v uint16) error {
	if err := bw.WriteByte(byte(v)); err != nil {
		return err
	}
	return bw.WriteByte(byte(v >> 8))
}

// paletteBits returns the minimum LZW code size for a palette of n colors:
// at least 2, and large enough that 2^bits >= n.
func paletteBits(n int) int {
	bits := 2
	for (1 << uint(bits)) < n {
		bits++
	}
	return bits
}
