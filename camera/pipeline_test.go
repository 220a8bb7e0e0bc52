package camera

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v4l2camerahal/camerahal/gralloc"
	"github.com/v4l2camerahal/camerahal/halerr"
	"github.com/v4l2camerahal/camerahal/metadata"
	"github.com/v4l2camerahal/camerahal/v4l2"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	dev := v4l2.NewDevice("/dev/null", gralloc.NewSoftwareHelper(), nil)
	reg := metadata.NewRegistry()
	static := &StaticInfo{FPSRanges: []FPSRange{{Min: 30, Max: 30}}}
	tc := NewTemplateCache(reg, static)
	return NewPipeline("test-cam", dev, reg, static, tc, nil, nil)
}

func TestOpenOnAlreadyOpenReturnsBusy(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateOpened

	err := p.Open()
	require.ErrorIs(t, err, halerr.ErrBusy)
}

func TestCloseOnClosedReturnsInvalidArgument(t *testing.T) {
	p := newTestPipeline(t)
	err := p.Close()
	require.ErrorIs(t, err, halerr.ErrInvalidArgument)
}

func TestConfigureStreamsRejectsFromStreaming(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateStreaming

	err := p.ConfigureStreams([]Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV}})
	require.ErrorIs(t, err, halerr.ErrBusy)
}

func TestConfigureStreamsRejectsInvalidSetPreservesPriorStreams(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateOpened
	prior := []Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV}}
	p.streams = prior

	err := p.ConfigureStreams(nil)
	require.ErrorIs(t, err, halerr.ErrInvalidArgument)
	require.Equal(t, prior, p.streams, "failed configure_streams must preserve the previous stream set")
}

func TestProcessCaptureRequestRequiresConfiguredOrStreaming(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateOpened

	err := p.ProcessCaptureRequest(CaptureRequest{FrameNumber: 1, Outputs: []StreamBuffer{{AcquireFence: -1}}})
	require.ErrorIs(t, err, halerr.ErrBusy)
}

func TestProcessCaptureRequestRejectsEmptyOutputs(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateConfigured

	err := p.ProcessCaptureRequest(CaptureRequest{FrameNumber: 1})
	require.ErrorIs(t, err, halerr.ErrInvalidArgument)
}

func TestProcessCaptureRequestRejectsEmptySettingsBeforeAnySet(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateConfigured

	err := p.ProcessCaptureRequest(CaptureRequest{FrameNumber: 1, Outputs: []StreamBuffer{{AcquireFence: -1}}})
	require.ErrorIs(t, err, halerr.ErrInvalidArgument)
}

func TestConstructDefaultRequestSettingsNilForUnsupportedTemplates(t *testing.T) {
	p := newTestPipeline(t)

	block, err := p.ConstructDefaultRequestSettings(metadata.TemplateZeroShutterLag)
	require.NoError(t, err)
	require.Nil(t, block)

	block, err = p.ConstructDefaultRequestSettings(metadata.TemplateManual)
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestFlushIsUnimplemented(t *testing.T) {
	p := newTestPipeline(t)
	require.ErrorIs(t, p.Flush(), ErrNotImplemented)
}

func TestWaitFenceNegativeIsAlreadySignaled(t *testing.T) {
	require.NoError(t, waitFence(-1, 0))
}

func TestDumpWritesStateAndStreams(t *testing.T) {
	p := newTestPipeline(t)
	p.state = StateConfigured
	p.streams = []Stream{{Width: 640, Height: 480, PixelFormat: v4l2.PixelFmtYUYV}}

	var buf bytes.Buffer
	p.Dump(&buf)

	out := buf.String()
	require.Contains(t, out, "test-cam")
	require.Contains(t, out, "configured")
	require.Contains(t, out, "640x480")
}
