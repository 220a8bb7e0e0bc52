// Package gralloc describes the contract this core depends on for locking
// opaque graphics-buffer handles into addressable memory (spec.md §1, §4.3,
// §9). The gralloc allocator itself is an external collaborator; this
// package defines its interface only, plus a software-backed
// implementation suitable for local development and tests.
package gralloc

import (
	"fmt"
	"sync"
	"unsafe"
)

// Handle identifies an opaque graphics buffer owned by the framework. Its
// concrete representation is defined by the gralloc implementation; the
// core never inspects it beyond equality.
type Handle interface{}

// Helper locks and unlocks graphics buffers for CPU access. StreamOff on
// the V4L2 wrapper unlocks each buffer it has queued, and Disconnect calls
// ReleaseAll (spec.md §4.3).
type Helper interface {
	// Lock maps handle for CPU read/write and returns a user-space pointer
	// and its length in bytes, sized for a width x height buffer under the
	// given usage flags.
	Lock(handle Handle, width, height, usage uint32) (ptr uintptr, length uint32, err error)
	// Unlock releases a previously locked handle. Unlocking a handle that
	// was never locked, or was already unlocked, is a no-op.
	Unlock(handle Handle) error
	// ReleaseAll unlocks every buffer currently locked by this helper. The
	// V4L2 wrapper calls it on disconnect, since driver semantics return all
	// queued buffers to the application at that point.
	ReleaseAll() error
}

// SoftwareHelper is an in-process Helper backed by plain Go byte slices. It
// stands in for a real gralloc/ION-backed implementation: production HALs
// replace this with a helper that commands the platform's graphics
// allocator; this one exists so the V4L2 wrapper and capture pipeline can
// be exercised without a real framework attached.
type SoftwareHelper struct {
	mu      sync.Mutex
	buffers map[Handle][]byte
}

// NewSoftwareHelper constructs an empty SoftwareHelper.
func NewSoftwareHelper() *SoftwareHelper {
	return &SoftwareHelper{buffers: make(map[Handle][]byte)}
}

// Lock allocates (on first use) or reuses a byte slice for handle and
// returns its backing pointer and length. The allocated length is
// width*height*4, a conservative upper bound independent of pixel format —
// real gralloc implementations size buffers precisely from usage and
// format; this stand-in does not need to.
func (s *SoftwareHelper) Lock(handle Handle, width, height, usage uint32) (uintptr, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := width * height * 4
	buf, ok := s.buffers[handle]
	if !ok || uint32(len(buf)) < length {
		buf = make([]byte, length)
		s.buffers[handle] = buf
	}
	if length == 0 {
		return 0, 0, fmt.Errorf("gralloc: lock: zero-sized buffer requested")
	}
	return uintptr(unsafe.Pointer(&buf[0])), length, nil
}

// Unlock removes the handle's entry from the locked set. The backing slice
// is left for garbage collection; the next Lock of the same handle
// reallocates.
func (s *SoftwareHelper) Unlock(handle Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, handle)
	return nil
}

// ReleaseAll unlocks every buffer currently tracked.
func (s *SoftwareHelper) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers = make(map[Handle][]byte)
	return nil
}

// Locked reports how many handles are currently locked. Test-only helper.
func (s *SoftwareHelper) Locked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}
