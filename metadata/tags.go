// Package metadata implements the composable metadata engine (spec.md §4.1,
// §4.2): a registry of independent partial components, each owning a
// disjoint set of metadata tags, aggregated into static characteristics,
// per-template defaults, and per-frame results.
package metadata

import "fmt"

// Tag identifies a single metadata entry. Tags are 32-bit identifiers
// partitioned into sections the way the Android camera metadata namespace
// is: color-correction, control, sensor, and so on. This core only defines
// the tags its partial components actually use.
type Tag uint32

// Section boundaries, spaced the way the reference namespace spaces them,
// so adding a tag to a section never collides with its neighbor.
const (
	sectionColorCorrection Tag = 0x0001_0000 * iota
	sectionControl
	sectionSensor
	sectionLens
	sectionFlash
	sectionJPEG
	sectionRequest
	sectionScaler
)

// Tags used by this core's partial components and capture pipeline.
const (
	TagColorCorrectionAberrationMode          Tag = sectionColorCorrection + 1
	TagColorCorrectionAvailableAberrationModes Tag = sectionColorCorrection + 2

	TagControlAEMode           Tag = sectionControl + 1
	TagControlAEAvailableModes Tag = sectionControl + 9
	TagControlAWBMode          Tag = sectionControl + 2
	TagControlAWBAvailableModes Tag = sectionControl + 3
	TagControlAFMode           Tag = sectionControl + 4
	TagControlAFAvailableModes Tag = sectionControl + 5
	TagControlAETargetFPSRange Tag = sectionControl + 6
	TagControlAEAvailableFPSRanges Tag = sectionControl + 7
	TagControlCaptureIntent    Tag = sectionControl + 8

	TagFlashMode          Tag = sectionFlash + 1
	TagFlashAvailableModes Tag = sectionFlash + 2

	TagSensorTimestamp       Tag = sectionSensor + 1
	TagSensorInfoPhysicalSize Tag = sectionSensor + 2

	TagLensFacing       Tag = sectionLens + 1
	TagLensInfoAperture Tag = sectionLens + 2
	TagLensInfoFocalLengths Tag = sectionLens + 3

	TagJPEGQuality Tag = sectionJPEG + 1

	TagScalerAvailableFormats Tag = sectionScaler + 1

	TagRequestAvailableRequestKeys        Tag = sectionRequest + 1
	TagRequestAvailableResultKeys         Tag = sectionRequest + 2
	TagRequestAvailableCharacteristicsKeys Tag = sectionRequest + 3
)

// Type identifies the wire shape of a metadata entry's value.
type Type int

const (
	TypeByte Type = iota
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDouble
	TypeRational
)

// Rational mirrors the framework's rational metadata value: a fraction
// used for frame durations and FPS ranges expressed as exact ratios.
type Rational struct {
	Numerator, Denominator int32
}

func (t Tag) String() string {
	return fmt.Sprintf("tag(0x%08x)", uint32(t))
}
