// Package camera implements the capture pipeline state machine (spec.md
// §4.5) and the static-characteristics/template builder (spec.md §4.4)
// that sit on top of the V4L2 wrapper and metadata registry.
package camera

import (
	"fmt"

	"github.com/v4l2camerahal/camerahal/v4l2"
)

// Stream is a configured output surface (spec.md §3). Only rotation=0 is
// accepted; data-space is always forced to JFIF by the caller building the
// stream, so it is not modeled as a field here.
type Stream struct {
	Width       uint32
	Height      uint32
	PixelFormat v4l2.FourCCType
	Usage       uint32
	MaxBuffers  uint32
	Rotation    int
	// Reuse is set by configureStreams on streams whose params matched a
	// previously configured stream, so the caller knows not to recreate it.
	Reuse bool
}

// sameFormat reports whether two streams share pixel format and dimensions —
// this core's single-stream V4L2 limitation requires every stream in one
// configuration to agree on these (spec.md §4.5, §9).
func sameFormat(a, b Stream) bool {
	return a.PixelFormat == b.PixelFormat && a.Width == b.Width && a.Height == b.Height
}

// ValidateStreamSet checks a proposed stream configuration against this
// core's constraints: at least one output, input streams are entirely
// forbidden, rotation must be 0, and every stream must share one format.
func ValidateStreamSet(streams []Stream) error {
	if len(streams) == 0 {
		return fmt.Errorf("configure streams: at least one output stream required")
	}
	for i, s := range streams {
		if s.Rotation != 0 {
			return fmt.Errorf("configure streams: stream %d: rotation %d not accepted", i, s.Rotation)
		}
		if i > 0 && !sameFormat(streams[0], s) {
			return fmt.Errorf("configure streams: stream %d: format/size diverges from stream 0 (single V4L2 stream limitation)", i)
		}
	}
	return nil
}

// reconcileStreams marks each of newStreams as Reuse=true when an
// equivalent stream (by format and dimensions) exists in prior, mirroring
// configure_streams' "reuse existing streams whose params match" rule
// (spec.md §4.5). It never mutates prior.
func reconcileStreams(prior, newStreams []Stream) []Stream {
	out := make([]Stream, len(newStreams))
	copy(out, newStreams)
	for i := range out {
		for _, old := range prior {
			if sameFormat(old, out[i]) {
				out[i].Reuse = true
				break
			}
		}
	}
	return out
}
