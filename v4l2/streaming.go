package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// Streaming with Buffers
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/buffer.html
//
// This wrapper speaks V4L2_MEMORY_USERPTR exclusively: the core never asks
// the kernel to mmap device memory, it hands the driver a pointer into a
// buffer it already owns (typically locked through a gralloc.Helper) and
// the driver DMAs frame data directly into it. This matches how a HAL
// layered over a graphics-buffer allocator is expected to move frames
// without an extra copy through driver-owned mmap regions.

// BufType (v4l2_buf_type)
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/buffer.html?highlight=v4l2_buf_type#c.V4L.v4l2_buf_type
type BufType = uint32

const (
	BufTypeVideoCapture BufType = C.V4L2_BUF_TYPE_VIDEO_CAPTURE
	BufTypeVideoOutput  BufType = C.V4L2_BUF_TYPE_VIDEO_OUTPUT
	BufTypeOverlay      BufType = C.V4L2_BUF_TYPE_VIDEO_OVERLAY
)

// StreamType (v4l2_memory)
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/mmap.html?highlight=v4l2_memory_mmap
type StreamType = uint32

const (
	StreamTypeMMAP    StreamType = C.V4L2_MEMORY_MMAP
	StreamTypeUserPtr StreamType = C.V4L2_MEMORY_USERPTR
	StreamTypeOverlay StreamType = C.V4L2_MEMORY_OVERLAY
	StreamTypeDMABuf  StreamType = C.V4L2_MEMORY_DMABUF
)

// RequestBuffers (v4l2_requestbuffers) requests the driver to prepare for
// streaming IO. For USERPTR streams the count only tells the driver how
// many concurrent buffers to expect; no memory is allocated by this call.
type RequestBuffers struct {
	Count        uint32
	StreamType   uint32
	Memory       uint32
	Capabilities uint32
	_            [1]uint32
}

// Buffer (v4l2_buffer) carries a single buffer's bookkeeping between
// application and driver once streaming IO is set up.
type Buffer struct {
	Index      uint32
	StreamType uint32
	BytesUsed  uint32
	Flags      uint32
	Field      uint32
	Timestamp  sys.Timeval
	Sequence   uint32
	Memory     uint32
	UserPtr    uintptr
	Length     uint32
}

func makeBuffer(v4l2Buf C.struct_v4l2_buffer) Buffer {
	return Buffer{
		Index:      uint32(v4l2Buf.index),
		StreamType: uint32(v4l2Buf._type),
		BytesUsed:  uint32(v4l2Buf.bytesused),
		Flags:      uint32(v4l2Buf.flags),
		Field:      uint32(v4l2Buf.field),
		Timestamp:  *(*sys.Timeval)(unsafe.Pointer(&v4l2Buf.timestamp)),
		Sequence:   uint32(v4l2Buf.sequence),
		Memory:     uint32(v4l2Buf.memory),
		UserPtr:    *(*uintptr)(unsafe.Pointer(&v4l2Buf.m[0])),
		Length:     uint32(v4l2Buf.length),
	}
}

// StreamOn requests streaming to be turned on for capture that uses
// user-pointer buffers.
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-streamon.html
func StreamOn(fd uintptr) error {
	bufType := BufTypeVideoCapture
	if err := send(fd, C.VIDIOC_STREAMON, uintptr(unsafe.Pointer(&bufType))); err != nil {
		return fmt.Errorf("stream on: %w", err)
	}
	return nil
}

// StreamOff requests streaming to be turned off. The driver implicitly
// dequeues and releases ownership of every outstanding buffer.
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-streamon.html
func StreamOff(fd uintptr) error {
	bufType := BufTypeVideoCapture
	if err := send(fd, C.VIDIOC_STREAMOFF, uintptr(unsafe.Pointer(&bufType))); err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

// RequestUserPtrBuffers issues VIDIOC_REQBUFS for V4L2_MEMORY_USERPTR,
// telling the driver how many buffers to keep track of. The count the
// driver actually grants may exceed what was asked, never less than 1.
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-reqbufs.html
func RequestUserPtrBuffers(fd uintptr, count uint32) (RequestBuffers, error) {
	var req C.struct_v4l2_requestbuffers
	req.count = C.uint(count)
	req._type = C.uint(BufTypeVideoCapture)
	req.memory = C.uint(StreamTypeUserPtr)

	if err := send(fd, C.VIDIOC_REQBUFS, uintptr(unsafe.Pointer(&req))); err != nil {
		return RequestBuffers{}, fmt.Errorf("request buffers: %w", err)
	}
	if req.count < 1 {
		return RequestBuffers{}, errors.New("request buffers: driver granted zero buffers")
	}

	return RequestBuffers{
		Count:      uint32(req.count),
		StreamType: uint32(req._type),
		Memory:     uint32(req.memory),
	}, nil
}

// QueueUserPtrBuffer enqueues a user-owned buffer at index, backed by the
// memory at ptr of the given length, for the driver to fill on the next
// capture.
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-qbuf.html
func QueueUserPtrBuffer(fd uintptr, index uint32, ptr uintptr, length uint32) (Buffer, error) {
	var v4l2Buf C.struct_v4l2_buffer
	v4l2Buf._type = C.uint(BufTypeVideoCapture)
	v4l2Buf.memory = C.uint(StreamTypeUserPtr)
	v4l2Buf.index = C.uint(index)
	v4l2Buf.length = C.uint(length)
	*(*uintptr)(unsafe.Pointer(&v4l2Buf.m[0])) = ptr

	if err := send(fd, C.VIDIOC_QBUF, uintptr(unsafe.Pointer(&v4l2Buf))); err != nil {
		return Buffer{}, fmt.Errorf("buffer queue: %w", err)
	}

	return makeBuffer(v4l2Buf), nil
}

// DequeueBuffer retrieves the next filled buffer from the driver. The
// returned Buffer.Index identifies which previously-queued userptr slot
// was filled, and BytesUsed is how much of it the driver actually wrote.
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-qbuf.html
func DequeueBuffer(fd uintptr) (Buffer, error) {
	var v4l2Buf C.struct_v4l2_buffer
	v4l2Buf._type = C.uint(BufTypeVideoCapture)
	v4l2Buf.memory = C.uint(StreamTypeUserPtr)

	if err := send(fd, C.VIDIOC_DQBUF, uintptr(unsafe.Pointer(&v4l2Buf))); err != nil {
		return Buffer{}, fmt.Errorf("buffer dequeue: %w", err)
	}

	return makeBuffer(v4l2Buf), nil
}

// WaitForDeviceRead blocks until fd is ready to be read or the timeout elapses.
func WaitForDeviceRead(fd uintptr, timeout time.Duration) error {
	timeval := sys.NsecToTimeval(timeout.Nanoseconds())
	var fdsRead sys.FdSet
	fdsRead.Set(int(fd))
	for {
		n, err := sys.Select(int(fd+1), &fdsRead, nil, nil, &timeval)
		switch n {
		case -1:
			if err == sys.EINTR {
				continue
			}
			return err
		case 0:
			return ErrorTimeout
		default:
			return nil
		}
	}
}
