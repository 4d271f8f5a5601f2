// Package vmm maintains the 4-level amd64 page table hierarchy installed in
// CR3. Page tables are reached through a fixed physical memory offset: the
// table stored in physical frame F lives at virtual address
// F.Address()+offset.
//
// A Mapper is neither reentrant nor safe for concurrent use. Callers that
// map pages from more than one context must serialize access themselves.
package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/mm"
	"kestrel/kernel/mmio"
)

var (
	// activePDTFn is used by tests to override calls to cpu.ActivePDT
	// which will cause a fault if called in user-mode.
	activePDTFn = cpu.ActivePDT

	// flushTLBEntryFn is used by tests to override calls to
	// cpu.FlushTLBEntry which will cause a fault if called in user-mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// kernelMapper is the mapper returned by Init.
	kernelMapper Mapper

	// ErrInvalidMapping is returned when trying to lookup a virtual
	// address that is not mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrAlreadyMapped is returned by MapTo when the page already has a
	// present leaf entry.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped"}

	// ErrPageNotReserved is returned by MapTo when the page does not lie
	// inside a range claimed with Reserve.
	ErrPageNotReserved = &kernel.Error{Module: "vmm", Message: "page does not belong to a reserved virtual range"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// Mapper edits the page table hierarchy rooted at a P4 table.
type Mapper struct {
	// offset is the virtual address where physical address 0 is mapped.
	offset uintptr

	// p4 is the physical frame holding the top-level table.
	p4 mm.Frame

	reserved      [maxReservedRanges]pageRange
	reservedCount int
}

// Init returns a Mapper for the page table hierarchy that is currently
// installed in CR3. The physicalMemoryOffset argument specifies the virtual
// address where the bootloader mapped the complete physical memory.
func Init(physicalMemoryOffset uintptr) *Mapper {
	kernelMapper = Mapper{
		offset: physicalMemoryOffset,
		p4:     mm.FrameFromAddress(activePDTFn()),
	}

	return &kernelMapper
}

// PhysicalMemoryOffset returns the virtual address where physical address 0
// is mapped.
func (m *Mapper) PhysicalMemoryOffset() uintptr {
	return m.offset
}

// table returns a view of the page table stored in frame.
func (m *Mapper) table(frame mm.Frame) mmio.Region {
	return mmio.NewRegion(frame.Address()+m.offset, mm.PageSize)
}

// pageTableWalker is invoked by walk for each visited page level. The entry
// lives at byte offset entryOffset of table. Returning false aborts the walk.
type pageTableWalker func(level uint8, table mmio.Region, entryOffset uintptr) bool

// walk visits the page table entries that translate virtAddr starting at P4.
// Each step reads the entry after walkFn returns so the callback may install
// a missing table before the walk descends into it.
func (m *Mapper) walk(virtAddr uintptr, walkFn pageTableWalker) {
	frame := m.p4
	for level := uint8(0); level < pageLevels; level++ {
		table := m.table(frame)
		entryOffset := tableIndex(virtAddr, level) << mm.PointerShift

		if !walkFn(level, table, entryOffset) {
			return
		}

		frame = readEntry(table, entryOffset).Frame()
	}
}

func readEntry(table mmio.Region, entryOffset uintptr) pageTableEntry {
	return pageTableEntry(table.Read64(entryOffset))
}

func writeEntry(table mmio.Region, entryOffset uintptr, pte pageTableEntry) {
	table.Write64(entryOffset, uint64(pte))
}

// MapTo maps page to frame using the supplied entry flags. Missing
// intermediate tables are allocated from alloc, cleared and linked with
// present and writable permissions. The TLB entry for page is flushed once
// the leaf entry has been written.
func (m *Mapper) MapTo(page mm.Page, frame mm.Frame, flags PageTableEntryFlag, alloc mm.FrameAllocator) *kernel.Error {
	if !m.isReserved(page) {
		return ErrPageNotReserved
	}

	var err *kernel.Error
	m.walk(page.Address(), func(level uint8, table mmio.Region, entryOffset uintptr) bool {
		pte := readEntry(table, entryOffset)

		if level == pageLevels-1 {
			if pte.HasFlags(FlagPresent) {
				err = ErrAlreadyMapped
				return false
			}

			pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags)
			writeEntry(table, entryOffset, pte)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		if !pte.HasFlags(FlagPresent) {
			var tableFrame mm.Frame
			if tableFrame, err = alloc.AllocFrame(); err != nil {
				return false
			}
			m.table(tableFrame).Zero()

			pte = 0
			pte.SetFrame(tableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
			writeEntry(table, entryOffset, pte)
		}

		return true
	})

	return err
}

// CreateMapping maps page to frame as a present, writable page.
func (m *Mapper) CreateMapping(page mm.Page, frame mm.Frame, alloc mm.FrameAllocator) *kernel.Error {
	return m.MapTo(page, frame, FlagPresent|FlagRW, alloc)
}

// Unmap clears the present flag of the leaf entry for page and flushes its
// TLB entry. Page tables are never released.
func (m *Mapper) Unmap(page mm.Page) *kernel.Error {
	var err *kernel.Error

	m.walk(page.Address(), func(level uint8, table mmio.Region, entryOffset uintptr) bool {
		pte := readEntry(table, entryOffset)
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if level == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			writeEntry(table, entryOffset, pte)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return err
}

// Translate returns the physical address that virtAddr maps to or
// ErrInvalidMapping if the address is not mapped.
func (m *Mapper) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		err  *kernel.Error
		leaf pageTableEntry
	)

	m.walk(virtAddr, func(level uint8, table mmio.Region, entryOffset uintptr) bool {
		pte := readEntry(table, entryOffset)
		switch {
		case !pte.HasFlags(FlagPresent):
			err = ErrInvalidMapping
			return false
		case level < pageLevels-1 && pte.HasFlags(FlagHugePage):
			err = errNoHugePageSupport
			return false
		}

		leaf = pte
		return true
	})

	if err != nil {
		return 0, err
	}

	return leaf.Frame().Address() + PageOffset(virtAddr), nil
}
