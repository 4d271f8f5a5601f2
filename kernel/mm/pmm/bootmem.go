package pmm

import (
	"kestrel/kernel"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/mm"
)

// maxReservedRanges is the number of physical ranges that can be carved out
// of the usable regions.
const maxReservedRanges = 4

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
	errTooManyReservations  = &kernel.Error{Module: "boot_mem_alloc", Message: "too many reserved ranges"}
)

// frameRange is the range of frames [start, end).
type frameRange struct {
	start, end mm.Frame
}

// BootMemAllocator implements a rudimentary physical memory allocator which
// is used to bootstrap the kernel.
//
// The allocator walks the usable regions in the order they are reported by
// its RegionSource and hands out the frames of each region in ascending
// address order. Allocations are tracked by a cursor made of the index of
// the current region and the next candidate frame inside it; the cursor never
// moves backwards so a frame is never handed out twice as long as the
// reported regions do not overlap. As a consequence, frames cannot be freed.
// Memory maps are not required to be sorted.
//
// Each call rescans the region list from the start which makes allocations
// O(regions). This is acceptable for the handful of frames needed while the
// kernel boots.
//
// BootMemAllocator is not safe for concurrent use and must not be called
// from interrupt handlers.
type BootMemAllocator struct {
	source RegionSource

	// Physical ranges (e.g. the kernel image) that the bootloader reports
	// as usable RAM but are already in use.
	reserved      [maxReservedRanges]frameRange
	reservedCount int

	// regionIndex is the position (in reporting order) of the region that
	// the last frame was allocated from and next is the lowest frame of
	// that region that may be returned by AllocFrame.
	regionIndex int
	next        mm.Frame

	// allocCount tracks the total number of allocated frames.
	allocCount uint64
}

// Init resets the allocator state and binds it to source.
func (alloc *BootMemAllocator) Init(source RegionSource) {
	*alloc = BootMemAllocator{source: source}
}

// Reserve excludes the physical range [start, end) from future allocations.
// The range is expanded outwards to page boundaries.
func (alloc *BootMemAllocator) Reserve(start, end uintptr) *kernel.Error {
	if end <= start {
		return nil
	}

	if alloc.reservedCount == maxReservedRanges {
		return errTooManyReservations
	}

	alloc.reserved[alloc.reservedCount] = frameRange{
		start: mm.FrameFromAddress(start),
		end:   mm.FrameFromAddress(mm.AlignUp(end)),
	}
	alloc.reservedCount++
	return nil
}

// AllocFrame reserves the next available free frame. It returns an error if
// no more memory can be allocated.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	var (
		frame      = mm.InvalidFrame
		frameIndex int
		index      = -1
	)

	alloc.source.VisitRegions(func(region MemoryRegion) bool {
		index++
		if region.Kind != RegionUsable || index < alloc.regionIndex {
			return true
		}

		regionStart, regionEnd := region.frames()

		candidate := regionStart
		if index == alloc.regionIndex && alloc.next > candidate {
			candidate = alloc.next
		}

		if candidate = alloc.skipReserved(candidate); candidate >= regionEnd {
			return true
		}

		frame, frameIndex = candidate, index
		return false
	})

	if !frame.Valid() {
		return mm.InvalidFrame, errBootAllocOutOfMemory
	}

	alloc.regionIndex = frameIndex
	alloc.next = frame + 1
	alloc.allocCount++
	return frame, nil
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// skipReserved returns the first frame >= f that does not belong to a
// reserved range.
func (alloc *BootMemAllocator) skipReserved(f mm.Frame) mm.Frame {
	for moved := true; moved; {
		moved = false
		for i := 0; i < alloc.reservedCount; i++ {
			if r := alloc.reserved[i]; f >= r.start && f < r.end {
				f, moved = r.end, true
			}
		}
	}
	return f
}

// printMemoryMap prints out the system's memory map and the ranges excluded
// from allocation.
func (alloc *BootMemAllocator) printMemoryMap() {
	var totalUsable mm.Size

	kfmt.Printf("[boot_mem_alloc] system memory map:\n")
	alloc.source.VisitRegions(func(region MemoryRegion) bool {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.Start, region.End, region.Size(), region.Kind.String())

		if region.Kind == RegionUsable {
			totalUsable += mm.Size(region.Size())
		}
		return true
	})
	kfmt.Printf("[boot_mem_alloc] available memory: %dKb\n", uint64(totalUsable/mm.Kb))

	for i := 0; i < alloc.reservedCount; i++ {
		r := alloc.reserved[i]
		kfmt.Printf("[boot_mem_alloc] reserved: [0x%10x - 0x%10x], pages: %d\n", r.start.Address(), r.end.Address(), uint64(r.end-r.start))
	}
}
