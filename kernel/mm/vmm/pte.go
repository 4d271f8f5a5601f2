package vmm

import "kestrel/kernel/mm"

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uintptr

// pageTableEntry encodes a physical frame address and a set of flags.
type pageTableEntry uintptr

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte pageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uintptr(*pte) | uintptr(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uintptr(*pte) &^ uintptr(flags))
}

// Frame returns the physical frame that this entry points to.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.Frame((uintptr(pte) & ptePhysPageMask) >> mm.PageShift)
}

// SetFrame points the entry at the given physical frame, keeping its flags.
func (pte *pageTableEntry) SetFrame(frame mm.Frame) {
	*pte = (pageTableEntry)((uintptr(*pte) &^ ptePhysPageMask) | frame.Address())
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & (mm.PageSize - 1)
}

// tableIndex returns the index into the page table at the given level that
// corresponds to virtAddr.
func tableIndex(virtAddr uintptr, level uint8) uintptr {
	return (virtAddr >> pageLevelShifts[level]) & (entriesPerTable - 1)
}
