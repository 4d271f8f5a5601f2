package kmain

import (
	"io"

	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/hal"
	"kestrel/kernel/irq"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/ktest"
	"kestrel/kernel/mm"
	"kestrel/kernel/mmio"
)

const (
	// selfTestPageAddr is the virtual page used by the mapping test.
	selfTestPageAddr = uintptr(0x444400000000)

	// maxTimerWaits bounds the number of HLTs the timer test waits for a
	// tick.
	maxTimerWaits = 100
)

var (
	errFrameReturnedTwice = &kernel.Error{Module: "ktest", Message: "frame allocator returned the same frame twice"}
	errMapperDisabled     = &kernel.Error{Module: "ktest", Message: "page mapper not initialized"}
	errMappingMismatch    = &kernel.Error{Module: "ktest", Message: "value written through mapping not visible in physical frame"}
	errTranslateMismatch  = &kernel.Error{Module: "ktest", Message: "Translate returned the wrong physical address"}
	errNoTimerTicks       = &kernel.Error{Module: "ktest", Message: "timer interrupt never fired"}

	// breakpointFn is used by tests.
	breakpointFn = cpu.Breakpoint
)

func registerSelfTests() {
	ktest.Register("serial_println", testPrintln)
	ktest.Register("breakpoint_resumes", testBreakpointResumes)
	ktest.Register("frame_allocator_distinct", testFrameAllocatorDistinct)
	ktest.Register("page_mapping_roundtrip", testPageMappingRoundTrip)
	ktest.Register("timer_ticks", testTimerTicks)
}

// selfTestOutput returns the serial port when available so the host harness
// can follow the test run.
func selfTestOutput() io.Writer {
	if w := hal.ActiveSerial(); w != nil {
		return w
	}
	return kfmt.Output()
}

func testPrintln() *kernel.Error {
	kfmt.Printf("test_println output\n")
	return nil
}

func testBreakpointResumes() *kernel.Error {
	breakpointFn()

	// Reaching this point means the handler returned via IRETQ.
	return nil
}

func testFrameAllocatorDistinct() *kernel.Error {
	first, err := mm.AllocFrame()
	if err != nil {
		return err
	}

	second, err := mm.AllocFrame()
	if err != nil {
		return err
	}

	if second == first {
		return errFrameReturnedTwice
	}
	return nil
}

func testPageMappingRoundTrip() *kernel.Error {
	if mapper == nil {
		return errMapperDisabled
	}

	frame, err := mm.AllocFrame()
	if err != nil {
		return err
	}

	page := mm.PageFromAddress(selfTestPageAddr)
	if err = mapper.Reserve(page, 1); err != nil {
		return err
	}
	if err = mapper.CreateMapping(page, frame, mm.SystemAllocator); err != nil {
		return err
	}

	const magic = uint64(0x6b65737472656c21)
	mmio.NewRegion(page.Address(), mm.PageSize).Write64(8, magic)

	physView := mmio.NewRegion(frame.Address()+mapper.PhysicalMemoryOffset(), mm.PageSize)
	if physView.Read64(8) != magic {
		return errMappingMismatch
	}

	physAddr, err := mapper.Translate(page.Address() + 8)
	if err != nil {
		return err
	}
	if physAddr != frame.Address()+8 {
		return errTranslateMismatch
	}

	return mapper.Unmap(page)
}

func testTimerTicks() *kernel.Error {
	start := irq.Ticks()
	for i := 0; i < maxTimerWaits; i++ {
		cpu.Halt()
		if irq.Ticks() != start {
			return nil
		}
	}
	return errNoTimerTicks
}
