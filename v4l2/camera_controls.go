package v4l2

/*
#cgo linux CFLAGS: -I ${SRCDIR}/../include/
#include <linux/videodev2.h>
*/
import "C"

// Camera, flash, and JPEG class controls. The metadata registry backs its
// AE, AF, and JPEG-quality components with CtrlExposureAuto, CtrlFocusAuto,
// and CtrlJpegCompressionQuality; CtrlExposureAutoPriority and
// CtrlFlashLedMode are not used by it. These classes live outside the
// user-control class the rest of control_values.go enumerates, but are
// queried and set through the same VIDIOC_G/S_CTRL and extended-control
// ioctls.
const (
	// CtrlExposureAuto selects auto/manual/shutter-priority/aperture-priority
	// exposure mode. It is an integer-menu control in V4L2's taxonomy.
	CtrlExposureAuto CtrlID = C.V4L2_CID_EXPOSURE_AUTO
	// CtrlExposureAutoPriority lets the driver dynamically vary frame rate
	// when CtrlExposureAuto is set to auto.
	CtrlExposureAutoPriority CtrlID = C.V4L2_CID_EXPOSURE_AUTO_PRIORITY
	// CtrlFocusAuto toggles continuous autofocus.
	CtrlFocusAuto CtrlID = C.V4L2_CID_FOCUS_AUTO
	// CtrlFlashLedMode selects the flash LED's mode (off/flash/torch).
	CtrlFlashLedMode CtrlID = C.V4L2_CID_FLASH_LED_MODE
	// CtrlJpegCompressionQuality sets the JPEG encoder's quality factor.
	CtrlJpegCompressionQuality CtrlID = C.V4L2_CID_JPEG_COMPRESSION_QUALITY
)

// Values for CtrlExposureAuto (v4l2_exposure_auto_type).
const (
	ExposureAuto             = C.V4L2_EXPOSURE_AUTO
	ExposureManual           = C.V4L2_EXPOSURE_MANUAL
	ExposureShutterPriority  = C.V4L2_EXPOSURE_SHUTTER_PRIORITY
	ExposureAperturePriority = C.V4L2_EXPOSURE_APERTURE_PRIORITY
)
