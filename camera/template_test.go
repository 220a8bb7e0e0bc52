package camera

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v4l2camerahal/camerahal/metadata"
)

func TestTemplateCacheRejectsZeroShutterLagAndManual(t *testing.T) {
	tc := NewTemplateCache(metadata.NewRegistry(), &StaticInfo{FPSRanges: []FPSRange{{Min: 30, Max: 30}}})

	_, err := tc.Get(metadata.TemplateZeroShutterLag)
	require.Error(t, err)

	_, err = tc.Get(metadata.TemplateManual)
	require.Error(t, err)
}

func TestTemplateCacheRejectsOutOfRangeID(t *testing.T) {
	tc := NewTemplateCache(metadata.NewRegistry(), &StaticInfo{})
	_, err := tc.Get(metadata.TemplateID(0))
	require.Error(t, err)
	_, err = tc.Get(metadata.TemplateCount)
	require.Error(t, err)
}

func TestTemplateCacheCachesByID(t *testing.T) {
	tc := NewTemplateCache(metadata.NewRegistry(), &StaticInfo{FPSRanges: []FPSRange{{Min: 30, Max: 30}}})

	first, err := tc.Get(metadata.TemplatePreview)
	require.NoError(t, err)
	second, err := tc.Get(metadata.TemplatePreview)
	require.NoError(t, err)

	first.SetInt32(metadata.TagControlCaptureIntent, 999)
	intent, _ := second.Int32(metadata.TagControlCaptureIntent)
	require.Equal(t, int32(999), intent, "Get must return the same cached block on repeat calls")
}

func TestOverlayIntentSetsPerTemplateIntent(t *testing.T) {
	out := metadata.NewBlock()
	overlayIntent(out, metadata.TemplateStillCapture)
	v, ok := out.Int32(metadata.TagControlCaptureIntent)
	require.True(t, ok)
	require.Equal(t, intentStillCapture, v)
}

func TestOverlayFPSRangePrefersFlatForPreview(t *testing.T) {
	out := metadata.NewBlock()
	info := &StaticInfo{FPSRanges: []FPSRange{{Min: 5, Max: 30}, {Min: 30, Max: 30}}}
	overlayFPSRange(out, metadata.TemplatePreview, info)

	entry, ok := out.Get(metadata.TagControlAETargetFPSRange)
	require.True(t, ok)
	rng := entry.Value.([]int32)
	require.Equal(t, []int32{30, 30}, rng)
}

func TestOverlayFPSRangePrefersVariableForStillCapture(t *testing.T) {
	out := metadata.NewBlock()
	info := &StaticInfo{FPSRanges: []FPSRange{{Min: 5, Max: 30}, {Min: 30, Max: 30}}}
	overlayFPSRange(out, metadata.TemplateStillCapture, info)

	entry, ok := out.Get(metadata.TagControlAETargetFPSRange)
	require.True(t, ok)
	rng := entry.Value.([]int32)
	require.Equal(t, []int32{5, 30}, rng)
}
