// Package mm defines the page and frame types shared by the physical and
// virtual memory managers.
package mm

import (
	"math"

	"kestrel/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Addresses that are not page-aligned are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(AlignDown(physAddr) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Addresses that are not page-aligned are rounded down.
func PageFromAddress(virtAddr uintptr) Page {
	return Page(AlignDown(virtAddr) >> PageShift)
}

// AlignDown rounds addr down to the nearest page boundary.
func AlignDown(addr uintptr) uintptr {
	return addr &^ (PageSize - 1)
}

// AlignUp rounds addr up to the nearest page boundary. Addresses within the
// last page of the address space wrap around to 0.
func AlignUp(addr uintptr) uintptr {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// FrameAllocator is implemented by physical frame allocators.
type FrameAllocator interface {
	// AllocFrame reserves and returns a physical frame.
	AllocFrame() (Frame, *kernel.Error)
}

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// AllocFrame implements FrameAllocator.
func (fn FrameAllocatorFn) AllocFrame() (Frame, *kernel.Error) { return fn() }

var (
	// frameAllocator points to a frame allocator function registered using
	// SetFrameAllocator.
	frameAllocator FrameAllocatorFn

	errNoFrameAllocator = &kernel.Error{Module: "mm", Message: "no frame allocator registered"}
)

// SetFrameAllocator registers the system-wide frame allocator.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// AllocFrame allocates a new physical frame using the currently active
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) {
	if frameAllocator == nil {
		return InvalidFrame, errNoFrameAllocator
	}
	return frameAllocator()
}

// SystemAllocator is a FrameAllocator backed by the system-wide allocator
// registered via SetFrameAllocator.
var SystemAllocator FrameAllocator = FrameAllocatorFn(AllocFrame)
