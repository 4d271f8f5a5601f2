// Package hal probes for the hardware the kernel needs for diagnostics and
// wires the detected output devices to kfmt.
package hal

import (
	"io"
	"sort"

	"kestrel/device"
	"kestrel/device/serial"
	"kestrel/device/video/console"
	"kestrel/kernel/kfmt"
)

// maxActiveDrivers bounds the number of drivers the HAL keeps track of.
const maxActiveDrivers = 8

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole console.Device
	activeSerial  *serial.Port

	// activeDrivers tracks all initialized device drivers.
	activeDrivers     [maxActiveDrivers]device.Driver
	activeDriverCount int
}

var (
	devices managedDevices

	// probeWriter prefixes driver init output with the driver name.
	probeWriter kfmt.PrefixWriter

	// driverListFn is used by tests to supply a fake driver list.
	driverListFn = device.DriverList
)

// ActiveConsole returns the console selected as the kernel output sink or nil
// if no console was detected.
func ActiveConsole() console.Device {
	return devices.activeConsole
}

// ActiveSerial returns the serial port detected by the HAL or nil.
func ActiveSerial() io.Writer {
	if devices.activeSerial == nil {
		return nil
	}
	return devices.activeSerial
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := driverListFn()
	sort.Sort(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		major, minor, patch := drv.DriverVersion()
		probeWriter.Sink = kfmt.Output()
		probeWriter.SetPrefix("[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)

		if err := drv.DriverInit(&probeWriter); err != nil {
			kfmt.Fprintf(&probeWriter, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&probeWriter, "initialized\n")
		onDriverInit(drv)

		if devices.activeDriverCount < maxActiveDrivers {
			devices.activeDrivers[devices.activeDriverCount] = drv
			devices.activeDriverCount++
		}
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized. The first console becomes the output sink; a
// serial port is only used as the sink when no console is present.
func onDriverInit(drv device.Driver) {
	switch drvImpl := drv.(type) {
	case console.Device:
		if devices.activeConsole != nil {
			return
		}

		devices.activeConsole = drvImpl
		kfmt.SetOutputSink(drvImpl)
	case *serial.Port:
		if devices.activeSerial != nil {
			return
		}

		devices.activeSerial = drvImpl
		if devices.activeConsole == nil {
			kfmt.SetOutputSink(drvImpl)
		}
	}
}

// EchoKey writes a character typed on the keyboard to the active console
// using white on black.
func EchoKey(r rune) {
	if devices.activeConsole == nil {
		return
	}

	devices.activeConsole.Printf(console.White, console.Black, "%c", r)
}
