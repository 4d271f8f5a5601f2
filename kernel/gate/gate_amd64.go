// Package gate installs the interrupt descriptor table and routes every
// exception and hardware interrupt to a Go handler according to an explicit
// per-vector dispatch policy.
package gate

import (
	"io"
	"unsafe"

	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/gdt"
	"kestrel/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an exception or
// interrupt occurs. Its layout matches the stack frame built by the assembly
// entry stubs.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Vector is the number of the interrupt being serviced.
	Vector uint64

	// Info contains the error code pushed by the CPU for exceptions that
	// provide one; it is zero for everything else.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "VEC = %16x ERR = %16x\n", r.Vector, r.Info)
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// Debug occurs when a debug trap or fault condition is detected.
	Debug = InterruptNumber(1)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems. It may also be
	// raised by the CPU when a watchdog timer is enabled.
	NMI = InterruptNumber(2)

	// Breakpoint occurs when the CPU executes an INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// Overflow occurs when an overflow occurs (e.g result of division
	// cannot fit into the registers used).
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable occurs when the CPU attempts to execute an
	// FPU/MMX/SSE instruction while no FPU is available or while
	// FPU/MMX/SSE support has been disabled by manipulating the CR0
	// register.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when the CPU attempts to invoke a present
	// gate with an invalid stack segment selector.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when attempting to push/pop from a
	// non-canonical stack address or when the stack base/limit (set in
	// GDT) checks fail.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException occurs while invoking an FP instruction while:
	//  - CR0.NE = 1 OR
	//  - an unmasked FP exception is pending
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligmed memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = InterruptNumber(18)

	// SIMDFloatingPointException occurs when an unmasked SSE exception
	// occurs while CR4.OSXMMEXCPT is set to 1. If the OSXMMEXCPT bit is
	// not set, SIMD FP exceptions cause InvalidOpcode exceptions instead.
	SIMDFloatingPointException = InterruptNumber(19)
)

// Policy describes how the dispatcher treats a vector.
type Policy uint8

const (
	// Unhandled vectors have no registered handler. Receiving one logs a
	// diagnostic and halts the CPU.
	Unhandled Policy = iota

	// Recoverable vectors run their handler and resume the interrupted
	// code.
	Recoverable

	// Fatal vectors run their handler (which is expected to log
	// diagnostics) and then halt the CPU.
	Fatal
)

// Handler is invoked by the dispatcher with a pointer to the registers saved
// by the entry stub. Handlers run with interrupts disabled and must neither
// block nor allocate memory.
type Handler func(*Registers)

// dispatchEntry is a slot of the dispatch table.
type dispatchEntry struct {
	policy  Policy
	ist     uint8
	handler Handler
}

// gateDescriptor is a 64-bit IDT entry.
type gateDescriptor struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

const (
	// present, ring 0, 64-bit interrupt gate (IF cleared on entry)
	interruptGateAttr = uint8(0x8e)

	maxIST = uint8(7)
)

var (
	loadIDTFn        = cpu.LoadIDT
	gateEntryTableFn = gateEntryTable
	panicFn          = kfmt.Panic

	dispatchTable [256]dispatchEntry
	idt           [256]gateDescriptor
	idtr          [10]byte
	loaded        bool

	errTableLoaded        = &kernel.Error{Module: "gate", Message: "interrupt table is already loaded"}
	errInvalidPolicy      = &kernel.Error{Module: "gate", Message: "handlers must be registered as recoverable or fatal"}
	errMissingHandler     = &kernel.Error{Module: "gate", Message: "nil handler"}
	errInvalidIST         = &kernel.Error{Module: "gate", Message: "interrupt stack table index out of range"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
	errFatalInterrupt     = &kernel.Error{Module: "gate", Message: "fatal exception"}
)

// HandleInterrupt registers handler for the supplied vector with the given
// dispatch policy. The value of the ist argument specifies the index in the
// interrupt stack table of the stack that the CPU switches to before
// invoking the handler (if 0 then the current stack is used).
//
// Handlers can only be registered before Load is called.
func HandleInterrupt(vec InterruptNumber, ist uint8, policy Policy, handler Handler) *kernel.Error {
	switch {
	case loaded:
		return errTableLoaded
	case policy != Recoverable && policy != Fatal:
		return errInvalidPolicy
	case handler == nil:
		return errMissingHandler
	case ist > maxIST:
		return errInvalidIST
	}

	dispatchTable[vec] = dispatchEntry{policy: policy, ist: ist, handler: handler}
	return nil
}

// Load points every IDT entry to its assembly entry stub and loads the IDT
// into the CPU. All vectors, including the unhandled ones, get a present
// gate so that stray interrupts are reported instead of escalating to a
// triple fault. Once loaded the dispatch table becomes immutable.
func Load() {
	entries := gateEntryTableFn()
	for vec := range idt {
		idt[vec].set(entries[vec], dispatchTable[vec].ist)
	}

	*(*uint16)(unsafe.Pointer(&idtr[0])) = uint16(unsafe.Sizeof(idt) - 1)
	*(*uint64)(unsafe.Pointer(&idtr[2])) = uint64(uintptr(unsafe.Pointer(&idt)))
	loadIDTFn(uintptr(unsafe.Pointer(&idtr)))

	loaded = true
}

func (d *gateDescriptor) set(entry uintptr, ist uint8) {
	d.offsetLow = uint16(entry)
	d.selector = gdt.KernelCodeSelector
	d.ist = ist
	d.typeAttr = interruptGateAttr
	d.offsetMid = uint16(entry >> 16)
	d.offsetHigh = uint32(entry >> 32)
	d.reserved = 0
}

// dispatchInterrupt is invoked by the common assembly entry code to route an
// incoming interrupt to its handler.
func dispatchInterrupt(regs *Registers) {
	entry := &dispatchTable[uint8(regs.Vector)]

	switch entry.policy {
	case Recoverable:
		entry.handler(regs)
	case Fatal:
		entry.handler(regs)
		kfmt.Printf("\nfatal exception (vector %d)\n", regs.Vector)
		regs.DumpTo(kfmt.Output())
		panicFn(errFatalInterrupt)
	default:
		kfmt.Printf("\nunhandled interrupt (vector %d, error code 0x%x)\n", regs.Vector, regs.Info)
		regs.DumpTo(kfmt.Output())
		panicFn(errUnhandledInterrupt)
	}
}

// gateEntryTable returns the address of a table with the entry stub address
// of every vector. It is implemented in gate_amd64.s.
func gateEntryTable() *[256]uintptr
