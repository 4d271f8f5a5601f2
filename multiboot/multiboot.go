// Package multiboot parses the multiboot2 information block that the
// bootloader hands to the kernel.
package multiboot

import "unsafe"

var (
	infoData uintptr
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
	tagElfSymbols
	tagApmTable
)

// info describes the multiboot info section header.
type info struct {
	// Total size of multiboot info section.
	totalSize uint32

	// Always set to zero; reserved for future use
	reserved uint32
}

// tagHeader describes the header that precedes each tag.
type tagHeader struct {
	// The type of the tag
	tagType tagType

	// The size of the tag including the header but *not* including any
	// padding. According to the spec, each tag starts at a 8-byte aligned
	// address.
	size uint32
}

// mmapHeader describes the header for a memory map specification.
type mmapHeader struct {
	// The size of each entry.
	entrySize uint32

	// The version of the entries that follow.
	entryVersion uint32
}

// FramebufferType defines the type of the initialized framebuffer.
type FramebufferType uint8

const (
	// FramebufferTypeIndexed specifies a 256-color palette.
	FramebufferTypeIndexed FramebufferType = iota

	// FramebufferTypeRGB specifies direct RGB mode.
	FramebufferTypeRGB

	// FramebufferTypeEGA specifies EGA text mode.
	FramebufferTypeEGA
)

// FramebufferInfo provides information about the initialized framebuffer.
type FramebufferInfo struct {
	// The framebuffer physical address.
	PhysAddr uint64

	// Row pitch in bytes.
	Pitch uint32

	// Width and height in pixels (or characters if Type = FramebufferTypeEGA)
	Width, Height uint32

	// Bits per pixel (non EGA modes only).
	Bpp uint8

	// Framebuffer type.
	Type FramebufferType

	reserved uint16
}

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// MemRegionVisitor defines a visitor function that gets invoked by VisitMemRegions
// for each memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

// InfoRange returns the physical address range [start, end) occupied by the
// multiboot info block.
func InfoRange() (uintptr, uintptr) {
	if infoData == 0 {
		return 0, 0
	}
	return infoData, infoData + uintptr((*info)(unsafe.Pointer(infoData)).totalSize)
}

// VisitMemRegions will invoke the supplied visitor for each memory region that
// is defined by the multiboot info data that we received from the bootloader.
func VisitMemRegions(visitor MemRegionVisitor) {
	curPtr, size := findTagByType(tagMemoryMap)
	if size == 0 {
		return
	}

	// curPtr points to the memory map header (2 dwords long)
	ptrMapHeader := (*mmapHeader)(unsafe.Pointer(curPtr))
	endPtr := curPtr + uintptr(size)
	curPtr += 8

	var entry *MemoryMapEntry
	for curPtr != endPtr {
		entry = (*MemoryMapEntry)(unsafe.Pointer(curPtr))

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type > memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(entry) {
			return
		}

		curPtr += uintptr(ptrMapHeader.entrySize)
	}
}

// GetFramebufferInfo returns information about the framebuffer initialized by the
// bootloader. This function returns nil if no framebuffer info is available.
func GetFramebufferInfo() *FramebufferInfo {
	var info *FramebufferInfo

	curPtr, size := findTagByType(tagFramebufferInfo)
	if size != 0 {
		info = (*FramebufferInfo)(unsafe.Pointer(curPtr))
	}

	return info
}

// CmdLine returns the kernel command line passed by the bootloader. The
// returned string aliases the multiboot info block; no memory is allocated.
func CmdLine() string {
	return cString(findTagByType(tagBootCmdLine))
}

// BootLoaderName returns the name of the bootloader that started the kernel
// or an empty string if it was not provided.
func BootLoaderName() string {
	return cString(findTagByType(tagBootLoaderName))
}

// CmdLineValue looks up a "key=value" pair in the kernel command line and
// returns its value. Keys without a value ("key") are reported as present
// with an empty value. The lookup does not allocate memory.
func CmdLineValue(key string) (string, bool) {
	cmdLine := CmdLine()

	for len(cmdLine) != 0 {
		var field string
		field, cmdLine = nextField(cmdLine)

		name, value := field, ""
		for i := 0; i < len(field); i++ {
			if field[i] == '=' {
				name, value = field[:i], field[i+1:]
				break
			}
		}

		if name == key {
			return value, true
		}
	}

	return "", false
}

// HasCmdLineFlag returns true if key appears on the kernel command line.
func HasCmdLineFlag(key string) bool {
	_, found := CmdLineValue(key)
	return found
}

// nextField splits off the first space-delimited field of s.
func nextField(s string) (string, string) {
	start := 0
	for start < len(s) && s[start] == ' ' {
		start++
	}

	end := start
	for end < len(s) && s[end] != ' ' {
		end++
	}

	return s[start:end], s[end:]
}

// cString returns a string that aliases the NULL-terminated C-style string
// stored in a tag payload of the given size.
func cString(ptr uintptr, size uint32) string {
	if size == 0 {
		return ""
	}

	length := uintptr(0)
	for ; length < uintptr(size) && *(*byte)(unsafe.Pointer(ptr + length)) != 0; length++ {
	}

	if length == 0 {
		return ""
	}

	return unsafe.String((*byte)(unsafe.Pointer(ptr)), length)
}

// findTagByType scans the multiboot info data looking for the first tag of
// the specified type. It returns a pointer to the tag contents and the
// content length excluding the tag header, or (0, 0) if no such tag exists.
func findTagByType(tagType tagType) (uintptr, uint32) {
	if infoData == 0 {
		return 0, 0
	}

	var (
		curPtr = infoData + 8
		endPtr = infoData + uintptr((*info)(unsafe.Pointer(infoData)).totalSize)
	)

	for curPtr+8 <= endPtr {
		ptrTagHeader := (*tagHeader)(unsafe.Pointer(curPtr))
		if ptrTagHeader.tagType == tagMbSectionEnd || ptrTagHeader.size < 8 {
			break
		}

		if ptrTagHeader.tagType == tagType {
			return curPtr + 8, ptrTagHeader.size - 8
		}

		// Tags are aligned at 8-byte aligned addresses
		curPtr += uintptr((ptrTagHeader.size + 7) &^ 7)
	}

	return 0, 0
}
