// Package pmm manages the allocation of physical memory frames.
package pmm

import (
	"kestrel/kernel"
	"kestrel/kernel/mm"
	"kestrel/multiboot"
)

var (
	// bootMemAllocator is the frame allocator used while the kernel runs.
	bootMemAllocator BootMemAllocator

	multibootInfoRangeFn = multiboot.InfoRange
)

// Init sets up the physical frame allocator using the memory map supplied by
// the bootloader and registers it as the system-wide frame allocator. The
// physical ranges occupied by the kernel image and the multiboot info block
// are excluded from allocation.
func Init(kernelStart, kernelEnd uintptr) *kernel.Error {
	return initAllocator(MultibootRegions{}, kernelStart, kernelEnd)
}

func initAllocator(source RegionSource, kernelStart, kernelEnd uintptr) *kernel.Error {
	bootMemAllocator.Init(source)

	if err := bootMemAllocator.Reserve(kernelStart, kernelEnd); err != nil {
		return err
	}

	if err := bootMemAllocator.Reserve(multibootInfoRangeFn()); err != nil {
		return err
	}

	bootMemAllocator.printMemoryMap()
	mm.SetFrameAllocator(earlyAllocFrame)
	return nil
}

func earlyAllocFrame() (mm.Frame, *kernel.Error) {
	return bootMemAllocator.AllocFrame()
}
