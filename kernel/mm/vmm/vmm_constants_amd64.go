package vmm

const (
	// pageLevels indicates the number of page levels supported by the amd64 architecture.
	pageLevels = 4

	// entriesPerTable is the number of 64-bit entries in each page table.
	entriesPerTable = 512

	// ptePhysPageMask extracts the physical frame address from a page
	// table entry. Bits 12-51 hold the address on amd64.
	ptePhysPageMask = uintptr(0x000ffffffffff000)
)

// pageLevelShifts defines the shift required to extract the table index for
// each page level from a virtual address. Each level consumes 9 bits.
var pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}

const (
	// FlagPresent is set when the page is available in memory.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching selects write-through caching when set and
	// write-back caching when cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set on P3/P2 entries that map 1G/2M pages directly.
	FlagHugePage

	// FlagGlobal keeps the TLB entry for this page across CR3 reloads.
	FlagGlobal

	// FlagNoExecute marks a page as non-executable.
	FlagNoExecute = 1 << 63
)
