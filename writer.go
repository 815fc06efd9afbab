package gifski

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"

	"github.com/Peterliu358/Gifski/internal/diffmap"
	"github.com/Peterliu358/Gifski/internal/ordqueue"
	"github.com/Peterliu358/Gifski/internal/quant"
	"github.com/Peterliu358/Gifski/internal/screen"
	"github.com/Peterliu358/Gifski/progress"
)

// Writer drives the decode-diff-quantize-remap-encode pipeline. Write
// blocks until the paired Collector is closed and every buffered frame has
// flowed through.
type Writer struct {
	settings Settings
	input    *ordqueue.Queue[decodedFrame]
}

// New creates a paired Collector and Writer for a single encoding run.
func New(settings Settings) (*Collector, *Writer, error) {
	if settings.Quality <= 0 || settings.Quality > 100 {
		return nil, nil, errors.Errorf("gifski: quality %d out of range [1,100]", settings.Quality)
	}
	c, q := newCollector(settings)
	w := &Writer{settings: settings, input: q}
	return c, w, nil
}

// Write runs the pipeline to completion, sending every surviving frame to
// sink and reporting progress to reporter. It returns the first error
// encountered by any stage.
func (w *Writer) Write(sink Encoder, reporter progress.Reporter) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	diffCh := make(chan DiffFrame, 4)
	quantCh := make(chan QuantFrame, 8)
	remapCh := make(chan RemappedFrame, 6)

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		once.Do(func() {
			firstErr = err
			cancel()
			w.input.CloseConsumer() // unblock producers waiting in AddFrame
		})
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		fail(wrapStage("diff", w.diffFrames(ctx, diffCh)))
	}()
	go func() {
		defer wg.Done()
		fail(wrapStage("quant", w.quantizeFrames(ctx, diffCh, quantCh)))
	}()
	go func() {
		defer wg.Done()
		fail(wrapStage("remap", w.remapFrames(ctx, quantCh, remapCh)))
	}()

	writeErr := w.writeFrames(ctx, remapCh, sink, reporter)
	fail(writeErr)

	wg.Wait()
	return firstErr
}

func wrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	if err == context.Canceled {
		return nil // some other stage already recorded the real error
	}
	return &ThreadError{Stage: stage, Err: err}
}

// diffFrames dedups consecutive identical frames and computes each
// surviving frame's importance map against the next frame in presentation
// order, using a one-frame sliding window.
func (w *Writer) diffFrames(ctx context.Context, out chan<- DiffFrame) error {
	defer close(out)

	first, ok := w.input.Next()
	if !ok {
		return ErrNoFrames
	}
	firstPTS := first.PTS
	firstHasTransparency := hasTransparency(first.Image)

	cur := first
	prevPTS := 0.0
	ordinal := 1

	for {
		next, hasNext := w.input.Next()
		curPTS := cur.PTS - firstPTS

		if hasNext {
			if next.Image.Bounds().Size() != cur.Image.Bounds().Size() {
				return &WrongSizeError{Ordinal: ordinal, Got: next.Image.Bounds().Size(), Want: cur.Image.Bounds().Size()}
			}
			if sameBytes(next.Image, cur.Image) {
				// Identical frames merge into one emitted frame spanning the
				// whole run of duplicates; track the run's end so the
				// eventual emission's span covers the full run, not just the
				// gap up to the first duplicate.
				prevPTS = next.PTS - firstPTS
				cur = next
				continue
			}
		}

		var imp []uint8
		var dispose Disposal = Keep
		if hasNext {
			var needsBG bool
			imp, needsBG = diffmap.Importance(cur.Image, next.Image)
			if needsBG {
				dispose = Background
			}
		} else {
			imp = make([]uint8, cur.Image.Bounds().Dx()*cur.Image.Bounds().Dy())
			for i := range imp {
				imp[i] = 255
			}
			if firstHasTransparency {
				dispose = Background
			}
		}

		var endPTS float64
		switch {
		case hasNext:
			endPTS = next.PTS - firstPTS
		case firstPTS > 1.0/100.0:
			endPTS = curPTS + firstPTS
		default:
			endPTS = curPTS + (curPTS - prevPTS)
		}

		df := DiffFrame{Ordinal: ordinal, EndPTS: endPTS, Disposal: dispose, Image: cur.Image, Importance: imp}
		select {
		case out <- df:
		case <-ctx.Done():
			return ctx.Err()
		}

		if !hasNext {
			return nil
		}
		prevPTS = curPTS
		cur = next
		ordinal++
	}
}

func hasTransparency(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] < 128 {
			return true
		}
	}
	return false
}

func sameBytes(a, b *image.NRGBA) bool {
	if len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

// quantizeFrames selects a palette for each frame, attenuating its
// importance map against the previous Keep-disposed frame so pixels that
// are visually unchanged don't compete for palette budget.
func (w *Writer) quantizeFrames(ctx context.Context, in <-chan DiffFrame, out chan<- QuantFrame) error {
	defer close(out)

	var prev *image.NRGBA
	q := uint32(100 - w.settings.ColorQuality())
	minDiff := 80 + q*q

	for {
		var df DiffFrame
		var ok bool
		select {
		case df, ok = <-in:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			return nil
		}

		imp := df.Importance
		if prev != nil {
			imp = attenuate(imp, prev, df.Image, minDiff)
		}

		notFirst := df.Ordinal > 1
		// The first frame is too important to ruin: it gets the full 256
		// colors. Later frames are capped in proportion to ColorQuality,
		// since palettor (unlike libimagequant) has no direct quality dial.
		maxColors := 256
		if notFirst {
			maxColors = 256 * w.settings.ColorQuality() / 100
			if maxColors < 2 {
				maxColors = 2
			}
		}
		opts := quant.Options{MaxColors: maxColors, FixedTransparent: notFirst, Fast: w.settings.Fast}
		res, err := quant.Select(df.Image, imp, opts)
		if err != nil {
			return &QuantizationFailedError{Ordinal: df.Ordinal, Err: err}
		}

		qf := QuantFrame{Ordinal: df.Ordinal, EndPTS: df.EndPTS, Disposal: df.Disposal, Quant: res, Source: df.Image}
		select {
		case out <- qf:
		case <-ctx.Done():
			return ctx.Err()
		}

		if df.Disposal == Keep {
			prev = df.Image
		} else {
			prev = nil
		}
	}
}

func attenuate(imp []uint8, bg, cur *image.NRGBA, minDiff uint32) []uint8 {
	b := cur.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, len(imp))
	copy(out, imp)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bo := bg.PixOffset(bg.Bounds().Min.X+x, bg.Bounds().Min.Y+y)
			co := cur.PixOffset(b.Min.X+x, b.Min.Y+y)
			diff := diffmap.ColorDiff(bg.Pix[bo], bg.Pix[bo+1], bg.Pix[bo+2], bg.Pix[bo+3],
				cur.Pix[co], cur.Pix[co+1], cur.Pix[co+2], cur.Pix[co+3])
			if diff < minDiff {
				out[i] = 0
			} else {
				t := diff / 32
				factor := t * t
				if factor > 256 {
					factor = 256
				}
				out[i] = uint8(factor * uint32(out[i]) / 256)
			}
			i++
		}
	}
	return out
}

// remapFrames composites each frame onto the virtual screen, consolidates
// palette transparency, trims rows that match the composited background,
// and applies this frame's disposal to the screen for the next iteration.
// It uses a one-frame lookahead since the last frame is never trimmed.
func (w *Writer) remapFrames(ctx context.Context, in <-chan QuantFrame, out chan<- RemappedFrame) error {
	defer close(out)

	cur, ok := recvQuant(ctx, in)
	if !ok {
		return ErrNoFrames
	}

	var scr *screen.Screen
	first := true
	ditherLevel := float64(w.settings.Quality) / 150.0

	for {
		next, hasNext := recvQuant(ctx, in)

		if scr == nil {
			b := cur.Source.Bounds()
			scr = screen.New(b.Dx(), b.Dy())
		}
		screenW, screenH := scr.Width(), scr.Height()
		afterDispose := scr.Dispose()

		var bg *image.NRGBA
		if !first {
			bg = afterDispose
		}
		paletted, pal := scr.Remap(cur.Quant, cur.Source, bg, ditherLevel)

		finalPal := pal
		transparentIdx := -1
		if newPal, idx, hasT := screen.ConsolidateTransparency(paletted, pal); hasT {
			finalPal = newPal
			transparentIdx = idx
		}

		left, top := 0, 0
		finalImg := paletted
		if !first && hasNext {
			t, trimmed, ok := screen.Trim(paletted, finalPal, transparentIdx, afterDispose)
			if !ok {
				// Frame contributes nothing new over the composited
				// background; drop it without blitting or advancing
				// "first", matching the original trimming algorithm.
				cur = next
				continue
			}
			top = t
			finalImg = trimmed
		}

		var transparentPtr *uint8
		if transparentIdx >= 0 {
			v := uint8(transparentIdx)
			transparentPtr = &v
		}

		scr.Blit(finalImg, finalPal, left, top, transparentIdx, cur.Disposal)

		frame := GIFFrame{
			Left: uint16(left), Top: uint16(top),
			ScreenWidth: uint16(screenW), ScreenHeight: uint16(screenH),
			Image: finalImg, Palette: finalPal,
			Disposal: cur.Disposal, TransparentIndex: transparentPtr,
		}
		rf := RemappedFrame{Ordinal: cur.Ordinal, EndPTS: cur.EndPTS, Frame: frame}
		select {
		case out <- rf:
		case <-ctx.Done():
			return ctx.Err()
		}

		first = false
		if !hasNext {
			return nil
		}
		cur = next
	}
}

func recvQuant(ctx context.Context, in <-chan QuantFrame) (QuantFrame, bool) {
	select {
	case v, ok := <-in:
		return v, ok
	case <-ctx.Done():
		return QuantFrame{}, false
	}
}

// minDelayUnits is the delay (1/100s) substituted for a single still frame
// whose own end-pts rounds to zero (e.g. a lone frame at pts 0): writing it
// with zero delay would mean skipping it entirely and producing an encoded
// stream with no frames at all.
const minDelayUnits = 1

// writeFrames converts each remapped frame's end-pts into a delay in
// hundredths of a second, skips zero-delay frames, and drives the Encoder
// sink and progress reporter.
func (w *Writer) writeFrames(ctx context.Context, in <-chan RemappedFrame, sink Encoder, reporter progress.Reporter) error {
	var ptsInDelayUnits uint64
	nDone := 0
	written := 0
	var lastFrame GIFFrame
	haveLast := false

	for {
		var rf RemappedFrame
		var ok bool
		select {
		case rf, ok = <-in:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			break
		}

		target := uint64(rf.EndPTS*100 + 0.5)
		var delay uint64
		if target > ptsInDelayUnits {
			delay = target - ptsInDelayUnits
		}
		if delay > 30000 {
			delay = 30000
		}
		ptsInDelayUnits += delay

		if delay != 0 {
			if err := sink.WriteFrame(rf.Frame, uint16(delay), w.settings); err != nil {
				return err
			}
			written++
		}
		lastFrame, haveLast = rf.Frame, true

		for nDone < rf.Ordinal {
			nDone++
			if !reporter.Increase() {
				return ErrAborted
			}
		}
	}

	if written == 0 && haveLast {
		// Every computed delay rounded to zero: write the last frame anyway
		// with a minimum delay so the stream isn't entirely empty.
		if err := sink.WriteFrame(lastFrame, minDelayUnits, w.settings); err != nil {
			return err
		}
	}

	return sink.Finish()
}
