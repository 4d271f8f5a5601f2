package pmm

import (
	"kestrel/kernel/mm"
	"kestrel/multiboot"
)

// RegionKind classifies a physical memory region.
type RegionKind uint8

const (
	// RegionUsable marks RAM that is free for the kernel to use.
	RegionUsable RegionKind = iota

	// RegionReserved marks memory that must not be touched.
	RegionReserved

	// RegionACPIReclaimable marks memory holding ACPI tables that can be
	// reused once the tables have been parsed.
	RegionACPIReclaimable

	// RegionNVS marks memory that must be preserved across hibernation.
	RegionNVS
)

// String implements fmt.Stringer for RegionKind.
func (k RegionKind) String() string {
	switch k {
	case RegionUsable:
		return "usable"
	case RegionACPIReclaimable:
		return "ACPI (reclaimable)"
	case RegionNVS:
		return "NVS"
	default:
		return "reserved"
	}
}

// MemoryRegion describes the physical address range [Start, End).
type MemoryRegion struct {
	Start uintptr
	End   uintptr
	Kind  RegionKind
}

// Size returns the region length in bytes.
func (r MemoryRegion) Size() uintptr {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// frames returns the range [start, end) of frames that lie entirely within
// the region. Region bounds that are not page-aligned are rounded inwards.
func (r MemoryRegion) frames() (mm.Frame, mm.Frame) {
	start := mm.AlignUp(r.Start)
	end := mm.AlignDown(r.End)
	if r.End <= r.Start || (start == 0 && r.Start != 0) || end <= start {
		return 0, 0
	}
	return mm.FrameFromAddress(start), mm.FrameFromAddress(end)
}

// RegionVisitor is invoked for each region reported by a RegionSource. The
// visitor returns false to stop the scan.
type RegionVisitor func(MemoryRegion) bool

// RegionSource enumerates the physical memory regions of the system. Regions
// may be reported in any order but must not overlap.
type RegionSource interface {
	VisitRegions(RegionVisitor)
}

// RegionList is a RegionSource backed by a static list of regions.
type RegionList []MemoryRegion

// VisitRegions implements RegionSource.
func (l RegionList) VisitRegions(visitor RegionVisitor) {
	for _, region := range l {
		if !visitor(region) {
			return
		}
	}
}

// MultibootRegions is a RegionSource backed by the memory map that the
// bootloader passed to the kernel.
type MultibootRegions struct{}

// VisitRegions implements RegionSource.
func (MultibootRegions) VisitRegions(visitor RegionVisitor) {
	multiboot.VisitMemRegions(func(entry *multiboot.MemoryMapEntry) bool {
		region := MemoryRegion{
			Start: uintptr(entry.PhysAddress),
			End:   uintptr(entry.PhysAddress + entry.Length),
		}

		switch entry.Type {
		case multiboot.MemAvailable:
			region.Kind = RegionUsable
		case multiboot.MemAcpiReclaimable:
			region.Kind = RegionACPIReclaimable
		case multiboot.MemNvs:
			region.Kind = RegionNVS
		default:
			region.Kind = RegionReserved
		}

		return visitor(region)
	})
}
