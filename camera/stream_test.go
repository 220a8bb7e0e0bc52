package camera

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v4l2camerahal/camerahal/v4l2"
)

func TestValidateStreamSetRejectsEmpty(t *testing.T) {
	require.Error(t, ValidateStreamSet(nil))
}

func TestValidateStreamSetRejectsRotation(t *testing.T) {
	streams := []Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV, Rotation: 90}}
	require.Error(t, ValidateStreamSet(streams))
}

func TestValidateStreamSetRejectsDivergentFormats(t *testing.T) {
	streams := []Stream{
		{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV},
		{Width: 1280, Height: 720, PixelFormat: v4l2.PixelFmtYUYV},
	}
	require.Error(t, ValidateStreamSet(streams))
}

func TestValidateStreamSetAcceptsMatchingStreams(t *testing.T) {
	streams := []Stream{
		{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV},
		{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV},
	}
	require.NoError(t, ValidateStreamSet(streams))
}

func TestReconcileStreamsMarksReuse(t *testing.T) {
	prior := []Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV}}
	next := []Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV}}

	out := reconcileStreams(prior, next)
	require.Len(t, out, 1)
	require.True(t, out[0].Reuse)
	require.False(t, prior[0].Reuse, "reconcileStreams must not mutate prior")
}

func TestReconcileStreamsNoMatchLeavesReuseFalse(t *testing.T) {
	prior := []Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV}}
	next := []Stream{{Width: 1280, Height: 720, PixelFormat: v4l2.PixelFmtMJPEG}}

	out := reconcileStreams(prior, next)
	require.Len(t, out, 1)
	require.False(t, out[0].Reuse)
}
