// Package mmio provides bounds-checked access to memory-mapped hardware
// structures such as the VGA text buffer and page tables.
package mmio

import (
	"unsafe"

	"kestrel/kernel"
	"kestrel/kernel/kfmt"
)

var (
	errOutOfBounds = &kernel.Error{Module: "mmio", Message: "access outside of mapped region"}

	// panicFn is mocked by tests.
	panicFn = kfmt.Panic
)

// Region is a view over size bytes of memory starting at a fixed virtual
// address. Every access is checked against the region bounds; an access that
// falls outside the region is a kernel panic.
type Region struct {
	base uintptr
	size uintptr
}

// NewRegion returns a Region covering [base, base+size).
func NewRegion(base, size uintptr) Region {
	return Region{base: base, size: size}
}

// Base returns the virtual address where the region begins.
func (r Region) Base() uintptr { return r.base }

// Size returns the region size in bytes.
func (r Region) Size() uintptr { return r.size }

func (r Region) addr(offset, width uintptr) uintptr {
	if offset > r.size || r.size-offset < width {
		panicFn(errOutOfBounds)
	}
	return r.base + offset
}

// Read8 returns the byte at the supplied offset.
func (r Region) Read8(offset uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(r.addr(offset, 1)))
}

// Write8 stores a byte at the supplied offset.
func (r Region) Write8(offset uintptr, v uint8) {
	*(*uint8)(unsafe.Pointer(r.addr(offset, 1))) = v
}

// Read16 returns the 16-bit word at the supplied offset.
func (r Region) Read16(offset uintptr) uint16 {
	return *(*uint16)(unsafe.Pointer(r.addr(offset, 2)))
}

// Write16 stores a 16-bit word at the supplied offset.
func (r Region) Write16(offset uintptr, v uint16) {
	*(*uint16)(unsafe.Pointer(r.addr(offset, 2))) = v
}

// Read64 returns the 64-bit word at the supplied offset.
func (r Region) Read64(offset uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(r.addr(offset, 8)))
}

// Write64 stores a 64-bit word at the supplied offset.
func (r Region) Write64(offset uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(r.addr(offset, 8))) = v
}

// Copy moves size bytes from srcOffset to dstOffset inside the region. The
// ranges may overlap.
func (r Region) Copy(dstOffset, srcOffset, size uintptr) {
	if size == 0 {
		return
	}
	kernel.Memcopy(r.addr(srcOffset, size), r.addr(dstOffset, size), size)
}

// Fill16 stores count copies of v starting at offset.
func (r Region) Fill16(offset uintptr, v uint16, count uintptr) {
	if count == 0 {
		return
	}
	words := unsafe.Slice((*uint16)(unsafe.Pointer(r.addr(offset, count*2))), count)
	for i := range words {
		words[i] = v
	}
}

// Zero clears the entire region.
func (r Region) Zero() {
	kernel.Memset(r.base, 0, r.size)
}
