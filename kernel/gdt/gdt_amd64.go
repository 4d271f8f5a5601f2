// Package gdt installs the global descriptor table used by the kernel
// together with a task-state segment that provides a dedicated stack for
// the double-fault handler.
//
// Segmentation is largely disabled in 64-bit mode but the CPU still needs a
// code and data descriptor and a TSS to locate interrupt stacks.
package gdt

import (
	"encoding/binary"
	"unsafe"

	"kestrel/kernel/cpu"
)

// Descriptor slots. The TSS descriptor spans two slots with the upper 32
// bits of the TSS address stored in the second one.
const (
	_ = iota
	slotKernelCode
	slotKernelData
	slotTSS
	slotTSSHigh
	slotCount
)

const (
	// KernelCodeSelector is the ring 0 code segment selector.
	KernelCodeSelector = uint16(slotKernelCode << 3)

	// KernelDataSelector is the ring 0 data segment selector.
	KernelDataSelector = uint16(slotKernelData << 3)

	// TSSSelector is the selector of the task-state segment.
	TSSSelector = uint16(slotTSS << 3)

	// DoubleFaultIST is the interrupt stack table index reserved for the
	// double-fault handler.
	DoubleFaultIST = uint8(1)

	// DoubleFaultStackSize is the size of the dedicated double-fault stack.
	DoubleFaultStackSize = 5 * 4096
)

// Descriptor values for flat 64-bit segments:
//
//	code: present, ring 0, executable/readable, long mode, 4K granularity
//	data: present, ring 0, writable, 4K granularity
const (
	kernelCodeDescriptor = uint64(0x00af9b000000ffff)
	kernelDataDescriptor = uint64(0x00cf93000000ffff)

	// present, ring 0, available 64-bit TSS
	tssAccessByte = uint64(0x89)
)

// taskState mirrors the 104-byte amd64 TSS layout.
type taskState [26]uint32

// setIST points interrupt stack table entry idx (1-based) to addr.
func (t *taskState) setIST(idx uint8, addr uintptr) {
	t[7+2*uintptr(idx)] = uint32(addr)
	t[7+2*uintptr(idx)+1] = uint32(addr >> 32)
}

// ist returns the address stored in interrupt stack table entry idx.
func (t *taskState) ist(idx uint8) uintptr {
	return uintptr(t[7+2*uintptr(idx)]) | uintptr(t[7+2*uintptr(idx)+1])<<32
}

var (
	loadGDTFn          = cpu.LoadGDT
	reloadSegmentsFn   = cpu.ReloadSegments
	loadTaskRegisterFn = cpu.LoadTaskRegister

	descriptors      [slotCount]uint64
	tss              taskState
	doubleFaultStack [DoubleFaultStackSize]byte

	// gdtr holds the 10-byte pseudo-descriptor (16-bit limit followed by
	// the 64-bit table address) passed to LGDT.
	gdtr [10]byte
)

// Init builds the descriptor table and the TSS, loads them into the CPU and
// reloads the segment registers. It must be called exactly once during boot
// and before any interrupt gates are installed.
func Init() {
	tss.setIST(DoubleFaultIST, doubleFaultStackTop())

	// An I/O map base past the TSS limit means no I/O permission bitmap.
	tssSize := uintptr(unsafe.Sizeof(tss))
	tss[25] = uint32(tssSize) << 16

	descriptors[slotKernelCode] = kernelCodeDescriptor
	descriptors[slotKernelData] = kernelDataDescriptor
	descriptors[slotTSS], descriptors[slotTSSHigh] = tssDescriptor(uintptr(unsafe.Pointer(&tss)), tssSize-1)

	binary.LittleEndian.PutUint16(gdtr[0:], uint16(unsafe.Sizeof(descriptors)-1))
	binary.LittleEndian.PutUint64(gdtr[2:], uint64(uintptr(unsafe.Pointer(&descriptors))))

	loadGDTFn(uintptr(unsafe.Pointer(&gdtr)))
	reloadSegmentsFn(KernelCodeSelector, KernelDataSelector)
	loadTaskRegisterFn(TSSSelector)
}

// doubleFaultStackTop returns the 16-byte aligned top of the double-fault
// stack. Stacks grow downwards.
func doubleFaultStackTop() uintptr {
	top := uintptr(unsafe.Pointer(&doubleFaultStack)) + DoubleFaultStackSize
	return top &^ 15
}

// tssDescriptor encodes the two 64-bit words of a TSS system descriptor.
func tssDescriptor(base, limit uintptr) (uint64, uint64) {
	low := uint64(limit&0xffff) |
		uint64(base&0xffffff)<<16 |
		tssAccessByte<<40 |
		uint64((limit>>16)&0xf)<<48 |
		uint64((base>>24)&0xff)<<56

	return low, uint64(base >> 32)
}
