package camera

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v4l2camerahal/camerahal/metadata"
	"github.com/v4l2camerahal/camerahal/v4l2"
)

func TestFractToNanos(t *testing.T) {
	require.Equal(t, int64(33_333_333), fractToNanos(v4l2.Fract{Numerator: 1, Denominator: 30}))
	require.Equal(t, int64(0), fractToNanos(v4l2.Fract{Numerator: 1, Denominator: 0}))
}

func TestNanosToFPS(t *testing.T) {
	require.Equal(t, int32(30), nanosToFPS(1_000_000_000/30))
	require.Equal(t, int32(0), nanosToFPS(0))
}

func TestFormatTaxonomyRecognizesRequiredFormats(t *testing.T) {
	require.Equal(t, HALFormatYCbCr420Flexible, formatTaxonomy[v4l2.PixelFmtYUYV])
	require.Equal(t, HALFormatBlob, formatTaxonomy[v4l2.PixelFmtJPEG])
	require.Equal(t, HALFormatBlob, formatTaxonomy[v4l2.PixelFmtMJPEG])

	_, ok := formatTaxonomy[v4l2.PixelFmtH264]
	require.False(t, ok, "unrecognized formats must be discarded, not mapped")
}

func TestBuildStaticCharacteristicsAppendsCharacteristicsKeys(t *testing.T) {
	reg := metadata.NewRegistry()
	reg.AddComponent(metadata.NewFixedProperty(metadata.TagLensFacing, metadata.TypeInt32, int32(2)))
	tc := NewTemplateCache(reg, &StaticInfo{FPSRanges: []FPSRange{{Min: 30, Max: 30}}})

	out, err := BuildStaticCharacteristics(reg, tc)
	require.NoError(t, err)
	require.True(t, out.Has(metadata.TagLensFacing))
	require.True(t, out.Has(metadata.TagRequestAvailableCharacteristicsKeys))
	require.True(t, out.Has(metadata.TagRequestAvailableRequestKeys))
	require.True(t, out.Has(metadata.TagRequestAvailableResultKeys))
}
