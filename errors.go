package gifski

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// ErrNoFrames is returned when a Writer is driven without having received
// any frames from its Collector.
var ErrNoFrames = errors.New("gifski: no frames")

// ErrAborted is returned by Write when the ProgressReporter requests
// cancellation.
var ErrAborted = errors.New("gifski: aborted")

// ErrConsumerGone is returned by Collector.AddFrame once the Writer side of
// the pipeline has stopped consuming (e.g. after a fatal error downstream).
var ErrConsumerGone = errors.New("gifski: consumer gone")

// WrongSizeError reports a frame whose dimensions don't match its neighbor.
type WrongSizeError struct {
	Ordinal    int
	Got, Want image.Point
}

func (e *WrongSizeError) Error() string {
	return fmt.Sprintf("gifski: frame %d has wrong size (%dx%d, expected %dx%d)",
		e.Ordinal, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// DecodeFailedError wraps a failure from a pluggable FrameDecoder.
type DecodeFailedError struct {
	Path string
	Err  error
}

func (e *DecodeFailedError) Error() string {
	return fmt.Sprintf("gifski: decode failed for %q: %v", e.Path, e.Err)
}

func (e *DecodeFailedError) Unwrap() error { return e.Err }

// QuantizationFailedError wraps a palette-selection failure for one frame.
type QuantizationFailedError struct {
	Ordinal int
	Err     error
}

func (e *QuantizationFailedError) Error() string {
	return fmt.Sprintf("gifski: quantization failed for frame %d: %v", e.Ordinal, e.Err)
}

func (e *QuantizationFailedError) Unwrap() error { return e.Err }

// ResizeFailedError wraps a failure from the resize step of ingest.
type ResizeFailedError struct {
	Err error
}

func (e *ResizeFailedError) Error() string {
	return fmt.Sprintf("gifski: resize failed: %v", e.Err)
}

func (e *ResizeFailedError) Unwrap() error { return e.Err }

// ThreadError reports that a pipeline stage's goroutine returned an error.
// Stage is one of "diff", "quant", "remap".
type ThreadError struct {
	Stage string
	Err   error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("gifski: %s stage failed: %v", e.Stage, e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }
