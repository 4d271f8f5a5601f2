package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/mm"
)

// maxReservedRanges is the capacity of the per-mapper reservation table.
const maxReservedRanges = 16

var (
	errEmptyReservation    = &kernel.Error{Module: "vmm", Message: "reservation must span at least one page"}
	errReservationWraps    = &kernel.Error{Module: "vmm", Message: "reservation wraps around the end of the address space"}
	errTooManyReservations = &kernel.Error{Module: "vmm", Message: "virtual range reservation table is full"}

	// ErrReservationOverlap is returned by Reserve when the requested range
	// intersects a range that has already been reserved.
	ErrReservationOverlap = &kernel.Error{Module: "vmm", Message: "virtual range overlaps an existing reservation"}
)

// pageRange describes the half-open page interval [start, end).
type pageRange struct {
	start, end mm.Page
}

func (r pageRange) contains(page mm.Page) bool {
	return page >= r.start && page < r.end
}

func (r pageRange) overlaps(other pageRange) bool {
	return r.start < other.end && other.start < r.end
}

// Reserve claims the virtual range of pageCount pages starting at start.
// Only pages inside a reserved range can be mapped by MapTo.
func (m *Mapper) Reserve(start mm.Page, pageCount uintptr) *kernel.Error {
	if pageCount == 0 {
		return errEmptyReservation
	}

	end := start + mm.Page(pageCount)
	if end < start || end.Address()>>mm.PageShift != uintptr(end) {
		return errReservationWraps
	}

	req := pageRange{start: start, end: end}
	for i := 0; i < m.reservedCount; i++ {
		if m.reserved[i].overlaps(req) {
			return ErrReservationOverlap
		}
	}

	if m.reservedCount == maxReservedRanges {
		return errTooManyReservations
	}

	m.reserved[m.reservedCount] = req
	m.reservedCount++
	return nil
}

// isReserved returns true if page lies inside a reserved range.
func (m *Mapper) isReserved(page mm.Page) bool {
	for i := 0; i < m.reservedCount; i++ {
		if m.reserved[i].contains(page) {
			return true
		}
	}
	return false
}
