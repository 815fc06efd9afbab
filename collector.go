package gifski

import (
	"image"
	"image/draw"
	"sync"

	"github.com/Peterliu358/Gifski/internal/ordqueue"
	"github.com/Peterliu358/Gifski/internal/resize"
)

// FrameDecoder decodes a source image from a path. It's the pluggable
// collaborator used by Collector.AddFrameDecoded so callers never have to
// hand this package a concrete image format dependency.
type FrameDecoder func(path string) (image.Image, error)

// decodedFrame is what flows through the ordered queue: a resized,
// alpha-binarized frame paired with its presentation timestamp in seconds.
type decodedFrame struct {
	Image *image.NRGBA
	PTS   float64
}

// Collector accepts frames out of order from any number of goroutines and
// feeds them, reordered by index, to the Writer side of the pipeline.
// Writing only finishes once Close has been called.
type Collector struct {
	settings Settings
	queue    *ordqueue.Queue[decodedFrame]

	mu        sync.Mutex
	wantSize  image.Point
	sizeKnown bool
}

const ordqueueCapacity = 4

func newCollector(settings Settings) (*Collector, *ordqueue.Queue[decodedFrame]) {
	q := ordqueue.New[decodedFrame](ordqueueCapacity)
	return &Collector{settings: settings, queue: q}, q
}

// AddFrame adds the image at presentation timestamp pts (seconds), keyed by
// its ordinal index. Frames may arrive out of order and from multiple
// goroutines; the Collector reorders them internally.
func (c *Collector) AddFrame(index int, img image.Image, pts float64) error {
	size := img.Bounds().Size()

	c.mu.Lock()
	if !c.sizeKnown {
		c.wantSize = size
		c.sizeKnown = true
	}
	want := c.wantSize
	c.mu.Unlock()

	if size != want {
		return &WrongSizeError{Ordinal: index, Got: size, Want: want}
	}

	nrgba := toNRGBA(img)
	maxW, maxH := intPtr(c.settings.MaxWidth), intPtr(c.settings.MaxHeight)
	tw, th := resize.DimensionsFor(size.X, size.Y, maxW, maxH)
	resized := resize.Resize(nrgba, tw, th)
	resize.BinarizeAlpha(resized)

	if err := c.queue.Push(uint64(index), decodedFrame{Image: resized, PTS: pts}); err != nil {
		if err == ordqueue.ErrConsumerGone {
			return ErrConsumerGone
		}
		return err
	}
	return nil
}

// AddFrameDecoded decodes the image at path using decode, then adds it like
// AddFrame. Decode failures are wrapped in DecodeFailedError.
func (c *Collector) AddFrameDecoded(index int, path string, decode FrameDecoder, pts float64) error {
	img, err := decode(path)
	if err != nil {
		return &DecodeFailedError{Path: path, Err: err}
	}
	return c.AddFrame(index, img, pts)
}

// Close signals that no more frames will be added. Writer.Write blocks
// until Close is called (directly, or via a goroutine feeding the
// Collector).
func (c *Collector) Close() {
	c.queue.Close()
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

func intPtr(u *uint) *int {
	if u == nil {
		return nil
	}
	v := int(*u)
	return &v
}
