package console

import (
	"kestrel/device"
	"kestrel/kernel/mmio"
	"kestrel/multiboot"
)

var (
	// getFramebufferInfoFn is used by tests to supply a fake framebuffer.
	getFramebufferInfoFn = multiboot.GetFramebufferInfo

	// vgaConsole is the writer returned by the probe function. The EGA
	// framebuffer lives in the identity-mapped first megabyte.
	vgaConsole Writer
)

// probeForVgaTextConsole checks whether the bootloader left the display in
// EGA text mode.
func probeForVgaTextConsole() device.Driver {
	fbInfo := getFramebufferInfoFn()
	if fbInfo == nil || fbInfo.Type != multiboot.FramebufferTypeEGA {
		return nil
	}

	fbSize := uintptr(fbInfo.Width) * uintptr(fbInfo.Height) * cellSize
	vgaConsole.Init(mmio.NewRegion(uintptr(fbInfo.PhysAddr), fbSize), fbInfo.Width, fbInfo.Height)
	return &vgaConsole
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForVgaTextConsole,
	})
}
