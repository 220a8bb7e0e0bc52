package camera

import (
	"github.com/v4l2camerahal/camerahal/gralloc"
	"github.com/v4l2camerahal/camerahal/metadata"
)

// BufferStatus reports how a StreamBuffer came back to the framework.
type BufferStatus int

const (
	BufferStatusOK BufferStatus = iota
	BufferStatusError
)

// StreamBuffer is one output buffer referencing a graphics buffer handle,
// an acquire fence, and the stream it belongs to (spec.md §3).
type StreamBuffer struct {
	Stream       *Stream
	Handle       gralloc.Handle
	AcquireFence int
	ReleaseFence int
	Status       BufferStatus
}

// CaptureRequest is one unit of work: a frame number, output buffers, and
// a settings metadata block. There is never an input buffer in this core
// (spec.md §3, Non-goals).
type CaptureRequest struct {
	FrameNumber uint64
	Outputs     []StreamBuffer
	Settings    metadata.Block
}

// clone returns a deep-enough copy of req for the pipeline to persist past
// the originating call, per spec.md §3's request lifecycle.
func (req CaptureRequest) clone() CaptureRequest {
	outputs := make([]StreamBuffer, len(req.Outputs))
	copy(outputs, req.Outputs)
	var settings metadata.Block
	if req.Settings != nil {
		settings = req.Settings.Clone()
	}
	return CaptureRequest{FrameNumber: req.FrameNumber, Outputs: outputs, Settings: settings}
}
