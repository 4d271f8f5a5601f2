// Package kmain contains the kernel entry point that the rt0 code jumps to.
package kmain

import (
	"kestrel/device/video/console"
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/gate"
	"kestrel/kernel/gdt"
	"kestrel/kernel/hal"
	"kestrel/kernel/halt"
	"kestrel/kernel/irq"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/ktest"
	"kestrel/kernel/mm"
	"kestrel/kernel/mm/pmm"
	"kestrel/kernel/mm/vmm"
	"kestrel/kernel/mmio"
	"kestrel/kernel/pic"
	"kestrel/multiboot"
)

const (
	// physmemOffsetKey is the boot command line key that specifies the
	// virtual address where the bootloader mapped all physical memory.
	physmemOffsetKey = "physmem_offset"

	// selfTestFlag on the boot command line runs the self tests instead
	// of the interactive demo.
	selfTestFlag = "ktest"

	// demoPageAddr is mapped to the VGA text buffer frame at boot.
	demoPageAddr = uintptr(0xdeadbeaf000)

	// vgaTextBufferAddr is the physical address of the EGA text buffer.
	vgaTextBufferAddr = uintptr(0xb8000)

	// demoCellOffset selects row 20, column 0 of the 80x25 text buffer.
	demoCellOffset = 400 * 8

	// demoCells encodes "New!" in white on black.
	demoCells = uint64(0xf021f077f065f04e)
)

var (
	errKmainReturned    = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errBadPhysmemOffset = &kernel.Error{Module: "kmain", Message: "physmem_offset must be a hex address"}

	// mapper is set once the page mapper is initialized.
	mapper *vmm.Mapper
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked after the rt0 code sets up a minimal
// stack and passes the address of the multiboot info payload provided by the
// bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	hal.DetectHardware()
	printBanner()

	initCPU()

	var err *kernel.Error
	if err = pmm.Init(kernelStart, kernelEnd); err != nil {
		kfmt.Panic(err)
	} else if err = initPaging(); err != nil {
		kfmt.Panic(err)
	}

	if multiboot.HasCmdLineFlag(selfTestFlag) {
		registerSelfTests()
		ktest.Run(selfTestOutput())
	} else {
		printStyleSamples()
	}

	halt.Loop()

	// kfmt.Panic is also the redirect target of runtime.gopanic; calling
	// it directly keeps the linker from eliminating it as dead code.
	kfmt.Panic(errKmainReturned)
}

// initCPU installs the descriptor tables and interrupt handlers, remaps the
// interrupt controllers and enables interrupts.
func initCPU() {
	gdt.Init()

	irq.SetKeyEcho(hal.EchoKey)
	if err := irq.Init(); err != nil {
		kfmt.Panic(err)
	}
	gate.Load()

	pic.Init()
	cpu.EnableInterrupts()

	vendor := "unknown"
	if cpu.IsIntel() {
		vendor = "GenuineIntel"
	}
	kfmt.Printf("[kmain] cpu vendor: %s; interrupts enabled\n", vendor)
}

// initPaging sets up the page mapper when the bootloader reports the
// physical memory offset and installs the demo mapping.
func initPaging() *kernel.Error {
	value, ok := multiboot.CmdLineValue(physmemOffsetKey)
	if !ok {
		kfmt.Printf("[kmain] %s not set; page mapper disabled\n", physmemOffsetKey)
		return nil
	}

	offset, ok := parseAddr(value)
	if !ok {
		return errBadPhysmemOffset
	}

	mapper = vmm.Init(offset)
	kfmt.Printf("[kmain] physical memory mapped at 0x%16x\n", offset)

	return mapDemoPage(mapper, mm.SystemAllocator)
}

// mapDemoPage maps demoPageAddr to the VGA text buffer and writes a message
// through the new mapping.
func mapDemoPage(m *vmm.Mapper, alloc mm.FrameAllocator) *kernel.Error {
	page := mm.PageFromAddress(demoPageAddr)
	if err := m.Reserve(page, 1); err != nil {
		return err
	}

	if err := m.CreateMapping(page, mm.FrameFromAddress(vgaTextBufferAddr), alloc); err != nil {
		return err
	}

	mmio.NewRegion(page.Address(), mm.PageSize).Write64(demoCellOffset, demoCells)
	return nil
}

// parseAddr parses a hex address with an optional 0x prefix.
func parseAddr(s string) (uintptr, bool) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}

	if len(s) == 0 || len(s) > 16 {
		return 0, false
	}

	var addr uintptr
	for i := 0; i < len(s); i++ {
		var digit byte
		switch ch := s[i]; {
		case ch >= '0' && ch <= '9':
			digit = ch - '0'
		case ch >= 'a' && ch <= 'f':
			digit = ch - 'a' + 10
		case ch >= 'A' && ch <= 'F':
			digit = ch - 'A' + 10
		default:
			return 0, false
		}
		addr = addr<<4 | uintptr(digit)
	}

	return addr, true
}

func printBanner() {
	cons := hal.ActiveConsole()
	if cons == nil {
		kfmt.Printf("Initializing kestrel...\n")
		return
	}

	cons.Printf(console.White, console.Black, "Initializing ")
	cons.Printf(console.Blue, console.Black, "kestrel")
	cons.Printf(console.White, console.Black, "...\n")
}

func printStyleSamples() {
	cons := hal.ActiveConsole()
	if cons == nil {
		return
	}

	samples := [...]struct {
		style console.Style
		text  string
	}{
		{console.Normal, "Standard"},
		{console.Success, "Success"},
		{console.Warning, "Warning"},
		{console.Fail, "Fail"},
		{console.Critical, "Critical"},
		{console.Fatal, "Fatal"},
	}

	for _, sample := range samples {
		cons.Printf(sample.style.Fg, sample.style.Bg, "%s\n", sample.text)
	}
	cons.SetColors(console.Normal.Fg, console.Normal.Bg)
}
