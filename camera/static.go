package camera

import (
	"fmt"
	"math"

	"github.com/v4l2camerahal/camerahal/config"
	"github.com/v4l2camerahal/camerahal/halerr"
	"github.com/v4l2camerahal/camerahal/metadata"
	"github.com/v4l2camerahal/camerahal/v4l2"
)

// HALFormat is the camera framework's format taxonomy, independent of the
// V4L2 FourCC that backs it (spec.md §4.4 item 1).
type HALFormat int

const (
	HALFormatUnknown HALFormat = iota
	HALFormatYCbCr420Flexible
	HALFormatBlob // JPEG
)

// formatTaxonomy maps recognized V4L2 FourCCs onto the HAL's format
// taxonomy; anything else is discarded during static-characteristics
// construction.
var formatTaxonomy = map[v4l2.FourCCType]HALFormat{
	v4l2.PixelFmtYUYV:  HALFormatYCbCr420Flexible,
	v4l2.PixelFmtMJPEG: HALFormatBlob,
	v4l2.PixelFmtJPEG:  HALFormatBlob,
}

// FrameDurationRange is a [min, max] pair of frame durations (nanoseconds)
// observed for one (format, size) combination.
type FrameDurationRange struct {
	MinNanos int64
	MaxNanos int64
}

// FPSRange is an inclusive frames-per-second range reported in static
// characteristics and matched against during template construction.
type FPSRange struct {
	Min int32
	Max int32
}

// StaticInfo is the fully assembled result of building a camera's static
// characteristics (spec.md §4.4).
type StaticInfo struct {
	SupportedFormats    map[v4l2.FourCCType]HALFormat
	MinYUVFrameDuration int64
	MaxFrameDuration    int64
	FPSRanges           []FPSRange
	Physical            config.Physical
	Characteristics      metadata.Block
}

// BuildStaticInfo implements the Static Builder (C4) steps 1-4. dev must
// already be connected. Step 5, the static characteristics block, is built
// separately by BuildStaticCharacteristics from the metadata registry.
func BuildStaticInfo(dev *v4l2.Device, phys config.Physical) (*StaticInfo, error) {
	formats, err := v4l2.GetAllFormatDescriptions(dev.Fd())
	if err != nil && len(formats) == 0 {
		return nil, halerr.NoDevice(err, "enumerate format descriptions")
	}

	supported := make(map[v4l2.FourCCType]HALFormat)
	for _, desc := range formats {
		if hf, ok := formatTaxonomy[desc.PixelFormat]; ok {
			supported[desc.PixelFormat] = hf
		}
	}

	hasYUV, hasBlob := false, false
	for _, hf := range supported {
		if hf == HALFormatYCbCr420Flexible {
			hasYUV = true
		}
		if hf == HALFormatBlob {
			hasBlob = true
		}
	}
	if !hasYUV || !hasBlob {
		return nil, halerr.NotSupported(nil, "device lacks required YCbCr_420_888 and/or JPEG (BLOB) format support")
	}

	minYUVDurationNanos := int64(math.MaxInt64)
	minMaxDurationNanos := int64(math.MaxInt64)
	var maxDurationNanos int64
	var maxYUVFPS int32

	for pixFmt, hf := range supported {
		sizes, err := v4l2.GetFormatFrameSizes(dev.Fd(), pixFmt)
		if err != nil && len(sizes) == 0 {
			continue
		}
		for _, size := range sizes {
			dr, fps, ferr := frameDurationRangeFor(dev, pixFmt, size)
			if ferr != nil {
				continue
			}
			if dr.MaxNanos > maxDurationNanos {
				maxDurationNanos = dr.MaxNanos
			}
			if dr.MaxNanos < minMaxDurationNanos {
				minMaxDurationNanos = dr.MaxNanos
			}
			if hf == HALFormatYCbCr420Flexible {
				if dr.MinNanos < minYUVDurationNanos {
					minYUVDurationNanos = dr.MinNanos
				}
				if fps > maxYUVFPS {
					maxYUVFPS = fps
				}
			}
		}
	}
	if minYUVDurationNanos == math.MaxInt64 {
		return nil, halerr.NotSupported(nil, "no usable YUV frame duration discovered")
	}

	minYUVFPS := nanosToFPS(minMaxDurationNanos)
	if minYUVFPS > 15 {
		return nil, halerr.NotSupported(nil, fmt.Sprintf("min_yuv_fps %d exceeds required ceiling of 15", minYUVFPS))
	}

	ranges := []FPSRange{
		{Min: minYUVFPS, Max: maxYUVFPS},
		{Min: maxYUVFPS, Max: maxYUVFPS},
	}
	if maxYUVFPS > 30 {
		ranges = append(ranges, FPSRange{Min: 30, Max: 30})
	}

	return &StaticInfo{
		SupportedFormats:    supported,
		MinYUVFrameDuration: minYUVDurationNanos,
		MaxFrameDuration:    maxDurationNanos,
		FPSRanges:           ranges,
		Physical:            phys,
	}, nil
}

// frameDurationRangeFor enumerates frame intervals for one (format, size)
// and returns the [min, max] duration range plus the FPS implied by the
// minimum duration.
func frameDurationRangeFor(dev *v4l2.Device, pixFmt v4l2.FourCCType, size v4l2.FrameSizeEnum) (FrameDurationRange, int32, error) {
	width, height := size.Size.MaxWidth, size.Size.MaxHeight
	if size.Type == v4l2.FrameSizeTypeDiscrete {
		width, height = size.Size.MinWidth, size.Size.MinHeight
	}

	var minNanos, maxNanos int64 = math.MaxInt64, 0
	for idx := uint32(0); ; idx++ {
		interval, err := v4l2.GetFormatFrameInterval(dev.Fd(), idx, pixFmt, width, height)
		if err != nil {
			break
		}
		nanos := fractToNanos(interval.Interval.Min)
		if nanos < minNanos {
			minNanos = nanos
		}
		maxNanos2 := fractToNanos(interval.Interval.Max)
		if maxNanos2 > maxNanos {
			maxNanos = maxNanos2
		}
		if interval.Type != v4l2.FrameIntervalTypeDiscrete {
			break
		}
	}
	if minNanos == math.MaxInt64 {
		return FrameDurationRange{}, 0, fmt.Errorf("no frame intervals reported")
	}
	return FrameDurationRange{MinNanos: minNanos, MaxNanos: maxNanos}, nanosToFPS(minNanos), nil
}

func fractToNanos(f v4l2.Fract) int64 {
	if f.Denominator == 0 {
		return 0
	}
	return int64(f.Numerator) * 1_000_000_000 / int64(f.Denominator)
}

func nanosToFPS(nanos int64) int32 {
	if nanos == 0 {
		return 0
	}
	return int32(1_000_000_000 / nanos)
}

// BuildStaticCharacteristics implements step 5: scans a successfully built
// default template to compute AVAILABLE_REQUEST_KEYS/AVAILABLE_RESULT_KEYS,
// then appends AVAILABLE_CHARACTERISTICS_KEYS to the characteristics block.
func BuildStaticCharacteristics(reg *metadata.Registry, tc *TemplateCache) (metadata.Block, error) {
	out := metadata.NewBlock()
	if err := reg.FillStatic(out); err != nil {
		return nil, err
	}

	defaultTemplate, err := tc.Get(metadata.TemplatePreview)
	if err != nil {
		return nil, fmt.Errorf("static characteristics: build default template: %w", err)
	}

	var requestKeys, resultKeys []any
	for _, c := range reg.Components() {
		for _, t := range c.ControlTags() {
			if defaultTemplate.Has(t) {
				requestKeys = append(requestKeys, int32(t))
			}
		}
		for _, t := range c.DynamicTags() {
			resultKeys = append(resultKeys, int32(t))
		}
	}
	out.Set(metadata.TagRequestAvailableRequestKeys, metadata.TypeInt32, requestKeys)
	out.Set(metadata.TagRequestAvailableResultKeys, metadata.TypeInt32, resultKeys)

	var characteristicsKeys []any
	for tag := range out {
		characteristicsKeys = append(characteristicsKeys, int32(tag))
	}
	out.Set(metadata.TagRequestAvailableCharacteristicsKeys, metadata.TypeInt32, characteristicsKeys)

	return out, nil
}
