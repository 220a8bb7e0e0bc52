package v4l2

/*
#cgo linux CFLAGS: -I ${SRCDIR}/../include/
#include <linux/videodev2.h>
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

// ExtControl is the normalized shape this wrapper returns for both the
// extended (VIDIOC_QUERY_EXT_CTRL) and legacy (VIDIOC_QUERYCTRL) control
// query paths, so callers never need to know which ioctl a given driver
// actually answered.
type ExtControl struct {
	ID       CtrlID
	Type     CtrlType
	Name     string
	ElemSize uint32
	Minimum  int64
	Maximum  int64
	Step     int64
	Default  int64
	Flags    uint32
}

// QueryExtControl queries a single control's metadata, preferring the
// extended ioctl and falling back to the legacy one when the driver
// doesn't implement it (ENOTTY). Legacy results are normalized into the
// same 64-bit shape; BITMASK-typed values are zero-extended rather than
// sign-extended, since a set high bit in a 32-bit mask is not a negative
// number.
func QueryExtControl(fd uintptr, id CtrlID) (ExtControl, error) {
	ext, err := queryExtControlNew(fd, id)
	if err == nil {
		return ext, nil
	}
	if !errors.Is(err, ErrorUnsupported) {
		return ExtControl{}, fmt.Errorf("query ext control: id %d: %w", id, err)
	}

	legacy, err := QueryControlInfo(fd, id)
	if err != nil {
		return ExtControl{}, fmt.Errorf("query ext control: fallback: id %d: %w", id, err)
	}
	return normalizeLegacyControl(legacy), nil
}

func queryExtControlNew(fd uintptr, id CtrlID) (ExtControl, error) {
	var qryCtrl C.struct_v4l2_query_ext_ctrl
	qryCtrl.id = C.uint(id)

	if err := send(fd, C.VIDIOC_QUERY_EXT_CTRL, uintptr(unsafe.Pointer(&qryCtrl))); err != nil {
		return ExtControl{}, err
	}
	return ExtControl{
		ID:       uint32(qryCtrl.id),
		Type:     CtrlType(qryCtrl._type),
		Name:     C.GoString((*C.char)(unsafe.Pointer(&qryCtrl.name[0]))),
		ElemSize: uint32(qryCtrl.elem_size),
		Minimum:  int64(qryCtrl.minimum),
		Maximum:  int64(qryCtrl.maximum),
		Step:     int64(qryCtrl.step),
		Default:  int64(qryCtrl.default_value),
		Flags:    uint32(qryCtrl.flags),
	}, nil
}

// normalizeLegacyControl widens a 32-bit VIDIOC_QUERYCTRL result to the
// extended shape. BITMASK maximum/default values carry a bit pattern, not
// a signed magnitude, so widening through uint32 avoids sign-extending a
// high bit into a huge negative int64.
func normalizeLegacyControl(c Control) ExtControl {
	ext := ExtControl{
		ID:       c.ID,
		Type:     c.Type,
		Name:     c.Name,
		ElemSize: 4,
		Step:     int64(c.Step),
		Flags:    c.flags,
	}
	if c.Type == CtrlTypeBitMask {
		ext.Minimum = int64(uint32(c.Minimum))
		ext.Maximum = int64(uint32(c.Maximum))
		ext.Default = int64(uint32(c.Default))
	} else {
		ext.Minimum = int64(c.Minimum)
		ext.Maximum = int64(c.Maximum)
		ext.Default = int64(c.Default)
	}
	return ext
}

// GetExtControlValue retrieves the value for an extended control with the specified id.
// See https://linuxtv.org/downloads/v4l-dvb-apis-new/userspace-api/v4l/extended-controls.html
func GetExtControlValue(fd uintptr, ctrlID CtrlID) (CtrlValue, error) {
	var v4l2Ctrl C.struct_v4l2_ext_control
	v4l2Ctrl.id = C.uint(ctrlID)
	v4l2Ctrl.size = 0
	if err := send(fd, C.VIDIOC_G_EXT_CTRLS, uintptr(unsafe.Pointer(&v4l2Ctrl))); err != nil {
		return 0, fmt.Errorf("get ext controls: %w", err)
	}
	return *(*CtrlValue)(unsafe.Pointer(&v4l2Ctrl.anon0[0])), nil
}

// SetExtControlValue saves the value for an extended control with the specified id.
func SetExtControlValue(fd uintptr, id CtrlID, val CtrlValue) error {
	ext, err := QueryExtControl(fd, id)
	if err != nil {
		return fmt.Errorf("set ext control value: id %d: %w", id, err)
	}
	if int64(val) < ext.Minimum || int64(val) > ext.Maximum {
		return fmt.Errorf("set ext control value: out-of-range: val %d: expected [%d, %d]", val, ext.Minimum, ext.Maximum)
	}

	var v4l2Ctrl C.struct_v4l2_ext_control
	v4l2Ctrl.id = C.uint(id)
	*(*C.int)(unsafe.Pointer(&v4l2Ctrl.anon0[0])) = *(*C.int)(unsafe.Pointer(&val))

	if err := send(fd, C.VIDIOC_S_CTRL, uintptr(unsafe.Pointer(&v4l2Ctrl))); err != nil {
		return fmt.Errorf("set ext control value: id %d: %w", id, err)
	}

	return nil
}

// GetExtControl retrieves metadata and the current value for the specified control.
func GetExtControl(fd uintptr, id CtrlID) (ExtControl, CtrlValue, error) {
	ext, err := QueryExtControl(fd, id)
	if err != nil {
		return ExtControl{}, 0, fmt.Errorf("get ext control: %w", err)
	}

	val, err := GetExtControlValue(fd, id)
	if err != nil {
		return ExtControl{}, 0, fmt.Errorf("get ext control: id %d: %w", id, err)
	}

	return ext, val, nil
}

// QueryAllExtControls walks every control the driver exposes via
// V4L2_CTRL_FLAG_NEXT_CTRL, falling back per-id to VIDIOC_QUERYCTRL's own
// next-control iteration if the extended ioctl is unsupported entirely.
func QueryAllExtControls(fd uintptr) (result []ExtControl, err error) {
	cid := uint32(C.V4L2_CTRL_FLAG_NEXT_CTRL)
	useLegacy := false
	for {
		var ext ExtControl
		var qErr error
		if !useLegacy {
			ext, qErr = queryExtControlNew(fd, cid)
			if qErr != nil && errors.Is(qErr, ErrorUnsupported) && len(result) == 0 {
				useLegacy = true
			}
		}
		if useLegacy {
			var legacy Control
			legacy, qErr = QueryControlInfo(fd, cid)
			if qErr == nil {
				ext = normalizeLegacyControl(legacy)
			}
		}
		if qErr != nil {
			if errors.Is(qErr, ErrorBadArgument) && len(result) > 0 {
				break
			}
			if errors.Is(qErr, ErrorBadArgument) {
				break
			}
			return result, fmt.Errorf("query all ext controls: %w", qErr)
		}
		result = append(result, ext)
		cid = ext.ID | uint32(C.V4L2_CTRL_FLAG_NEXT_CTRL)
	}

	return result, nil
}
