// Package device defines the interface implemented by hardware drivers and a
// registry that the hal package uses to probe for hardware.
package device

import (
	"io"

	"kestrel/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprintf.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when a driver is probed relative to other drivers.
type DetectOrder int8

// The supported detection orders. Drivers with a lower order are probed first.
const (
	// DetectOrderEarly is used by output drivers that the rest of the
	// kernel needs for diagnostics.
	DetectOrderEarly DetectOrder = -128 + iota

	// DetectOrderBeforeACPI is used by drivers that must run before any
	// firmware-table based detection.
	DetectOrderBeforeACPI

	// DetectOrderACPI is reserved for firmware-table based detection.
	DetectOrderACPI = DetectOrder(0)

	// DetectOrderLast is used by drivers that depend on everything else.
	DetectOrderLast = DetectOrder(127)
)

// DriverInfo describes a registered driver.
type DriverInfo struct {
	// Order controls when the driver is probed.
	Order DetectOrder

	// Probe checks for the hardware and returns a driver for it or nil.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface ordering entries by their DetectOrder.
type DriverInfoList []*DriverInfo

// Len returns the number of entries in the list.
func (l DriverInfoList) Len() int { return len(l) }

// Less returns true if entry i should be probed before entry j.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

// Swap exchanges entries i and j.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// maxDrivers is the capacity of the driver registry.
const maxDrivers = 16

var (
	registeredDrivers     [maxDrivers]*DriverInfo
	registeredDriverCount int
)

// RegisterDriver adds info to the driver registry. Drivers register
// themselves from init blocks; registrations past the registry capacity are
// ignored.
func RegisterDriver(info *DriverInfo) {
	if registeredDriverCount == maxDrivers {
		return
	}

	registeredDrivers[registeredDriverCount] = info
	registeredDriverCount++
}

// DriverList returns the registered drivers. The returned list shares storage
// with the registry.
func DriverList() DriverInfoList {
	return registeredDrivers[:registeredDriverCount]
}
