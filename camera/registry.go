package camera

import (
	"github.com/v4l2camerahal/camerahal/config"
	"github.com/v4l2camerahal/camerahal/metadata"
	"github.com/v4l2camerahal/camerahal/v4l2"
)

// Metadata enum values used by the components below. These are the
// framework-facing values written into metadata blocks; they are mapped to
// V4L2 control values by each EnumControl, independent of V4L2's own
// numbering.
const (
	aeModeOff int32 = 1
	aeModeOn  int32 = 2

	awbModeOff  int32 = 1
	awbModeAuto int32 = 2

	afModeOff               int32 = 1
	afModeContinuousPicture int32 = 4

	flashModeOff int32 = 0

	lensFacingExternal int32 = 2

	aberrationModeOff int32 = 0
)

const defaultJPEGQuality int32 = 80

// BuildRegistry assembles the composable metadata registry for a connected
// device (spec.md §4.1, §4.4 item 4). Controls the device does not
// actually expose fall back to IgnoredControl so every camera still
// advertises a complete, self-consistent capability set.
func BuildRegistry(dev *v4l2.Device, phys config.Physical) *metadata.Registry {
	reg := metadata.NewRegistry()

	reg.AddComponent(metadata.NewFixedProperty(metadata.TagLensFacing, metadata.TypeInt32, lensFacingExternal))
	reg.AddComponent(metadata.NewFixedProperty(metadata.TagLensInfoAperture, metadata.TypeFloat, float32(phys.ApertureFNumber)))
	reg.AddComponent(metadata.NewFixedProperty(metadata.TagLensInfoFocalLengths, metadata.TypeFloat, []float32{float32(phys.FocalLengthMM)}))
	reg.AddComponent(metadata.NewFixedProperty(metadata.TagSensorInfoPhysicalSize, metadata.TypeFloat, []float32{float32(phys.SensorWidthMM), float32(phys.SensorHeightMM)}))

	reg.AddComponent(metadata.NewIgnoredControl(
		metadata.TagColorCorrectionAberrationMode,
		metadata.TagColorCorrectionAvailableAberrationModes,
		[]int32{aberrationModeOff},
		aberrationModeOff,
	))
	reg.AddComponent(metadata.NewIgnoredControl(
		metadata.TagFlashMode,
		metadata.TagFlashAvailableModes,
		[]int32{flashModeOff},
		flashModeOff,
	))

	aeCandidates := map[int32]int64{aeModeOn: int64(v4l2.ExposureAuto), aeModeOff: int64(v4l2.ExposureManual)}
	if ae, err := metadata.NewEnumControl(dev, v4l2.CtrlExposureAuto, metadata.TagControlAEMode, metadata.TagControlAEAvailableModes, aeCandidates); err == nil {
		reg.AddComponent(ae)
	} else {
		reg.AddComponent(metadata.NewIgnoredControl(metadata.TagControlAEMode, metadata.TagControlAEAvailableModes, []int32{aeModeOn}, aeModeOn))
	}

	awbCandidates := map[int32]int64{awbModeAuto: 1, awbModeOff: 0}
	if awb, err := metadata.NewEnumControl(dev, v4l2.CtrlAutoWhiteBalance, metadata.TagControlAWBMode, metadata.TagControlAWBAvailableModes, awbCandidates); err == nil {
		reg.AddComponent(awb)
	} else {
		reg.AddComponent(metadata.NewIgnoredControl(metadata.TagControlAWBMode, metadata.TagControlAWBAvailableModes, []int32{awbModeOff}, awbModeOff))
	}

	// V4L2_CID_FOCUS_AUTO is a plain boolean, so this component can only
	// round-trip two distinct AF modes; CONTINUOUS_PICTURE stands in as the
	// single "auto" state.
	afCandidates := map[int32]int64{afModeContinuousPicture: 1, afModeOff: 0}
	if af, err := metadata.NewEnumControl(dev, v4l2.CtrlFocusAuto, metadata.TagControlAFMode, metadata.TagControlAFAvailableModes, afCandidates); err == nil {
		reg.AddComponent(af)
	} else {
		reg.AddComponent(metadata.NewIgnoredControl(metadata.TagControlAFMode, metadata.TagControlAFAvailableModes, []int32{afModeOff}, afModeOff))
	}

	jpegQuality := metadata.NewTaggedDelegate(
		metadata.TagJPEGQuality, metadata.TagJPEGQuality, []int32{1, defaultJPEGQuality, 100},
		func() (int32, error) {
			v, err := dev.GetControl(v4l2.CtrlJpegCompressionQuality)
			if err != nil {
				return defaultJPEGQuality, nil
			}
			return int32(v), nil
		},
		func(v int32) error { return dev.SetControl(v4l2.CtrlJpegCompressionQuality, int64(v)) },
	)
	jpegQuality.IsSupported = func(v int32) bool { return v >= 1 && v <= 100 }
	reg.AddComponent(jpegQuality)

	return reg
}
