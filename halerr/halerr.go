// Package halerr defines the error taxonomy shared by the V4L2 wrapper,
// metadata registry, and capture pipeline (see spec.md §7).
//
// The registry and V4L2 wrapper never recover internally from these errors;
// they only report them. The capture pipeline recovers fence timeouts at
// the request level, never device-level errors.
package halerr

import (
	"syscall"

	"github.com/pkg/errors"
)

// Kind identifies one of the abstract error categories from spec.md §7.
type Kind int

const (
	// KindBusy is returned when an operation conflicts with already-active state,
	// e.g. opening a camera that is already open.
	KindBusy Kind = iota
	// KindInvalidArgument is returned for bad stream configs or unsupported values.
	KindInvalidArgument
	// KindNoDevice is returned when a V4L2 ioctl fails on a critical path.
	KindNoDevice
	// KindIoError is returned when a file descriptor read/write fails.
	KindIoError
	// KindTimeout is returned when a fence wait exceeds its deadline.
	KindTimeout
	// KindNotSupported is returned when a template or option has no default.
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindBusy:
		return "busy"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNoDevice:
		return "no device"
	case KindIoError:
		return "io error"
	case KindTimeout:
		return "timeout"
	case KindNotSupported:
		return "not supported"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged error. Use errors.Is against the sentinel
// Err* values below to classify an Error without inspecting its message.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Kind reports the taxonomy kind for this error.
func (e *Error) Kind() Kind { return e.kind }

// Errno maps this error's kind onto the negative-errno exit codes from
// spec.md §6.
func (e *Error) Errno() syscall.Errno {
	switch e.kind {
	case KindBusy:
		return syscall.EBUSY
	case KindInvalidArgument:
		return syscall.EINVAL
	case KindNoDevice:
		return syscall.ENODEV
	case KindIoError:
		return syscall.EIO
	case KindTimeout:
		return syscall.ETIME
	case KindNotSupported:
		return syscall.EINVAL
	default:
		return syscall.EINVAL
	}
}

// Sentinel errors for use with errors.Is. Wrap(kind, err) produces an
// *Error whose Is(target) matches the corresponding sentinel.
var (
	ErrBusy            = &Error{kind: KindBusy}
	ErrInvalidArgument = &Error{kind: KindInvalidArgument}
	ErrNoDevice        = &Error{kind: KindNoDevice}
	ErrIoError         = &Error{kind: KindIoError}
	ErrTimeout         = &Error{kind: KindTimeout}
	ErrNotSupported    = &Error{kind: KindNotSupported}
)

// Is lets errors.Is(err, halerr.ErrBusy) succeed for any *Error of the same kind,
// regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

// Wrap builds a taxonomy error of the given kind around cause, annotated with msg.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return &Error{kind: kind, cause: errors.New(msg)}
	}
	return &Error{kind: kind, cause: errors.WithMessage(cause, msg)}
}

// New builds a taxonomy error of the given kind with no underlying cause.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, cause: errors.New(msg)}
}

// Busy wraps cause as a KindBusy error.
func Busy(cause error, msg string) error { return Wrap(KindBusy, cause, msg) }

// InvalidArgument wraps cause as a KindInvalidArgument error.
func InvalidArgument(cause error, msg string) error { return Wrap(KindInvalidArgument, cause, msg) }

// NoDevice wraps cause as a KindNoDevice error.
func NoDevice(cause error, msg string) error { return Wrap(KindNoDevice, cause, msg) }

// IoError wraps cause as a KindIoError error.
func IoError(cause error, msg string) error { return Wrap(KindIoError, cause, msg) }

// Timeout wraps cause as a KindTimeout error.
func Timeout(cause error, msg string) error { return Wrap(KindTimeout, cause, msg) }

// NotSupported wraps cause as a KindNotSupported error.
func NotSupported(cause error, msg string) error { return Wrap(KindNotSupported, cause, msg) }
