// Package halt provides the terminal states of the kernel: an idle halt loop
// and an exit path for emulators exposing an isa-debug-exit device.
package halt

import "kestrel/kernel/cpu"

// ExitCode is a status value written to the debug-exit port. The emulator
// terminates with status (code << 1) | 1.
type ExitCode uint32

const (
	// ExitSuccess signals that all self-tests passed.
	ExitSuccess = ExitCode(0x10)

	// ExitFailed signals a self-test failure or a kernel panic while
	// running self-tests.
	ExitFailed = ExitCode(0x11)

	// debugExitPort is the I/O port of the isa-debug-exit device.
	debugExitPort = uint16(0xf4)
)

var (
	cpuHaltFn         = cpu.Halt
	portWriteDwordFn  = cpu.PortWriteDword
	disableInterrupts = cpu.DisableInterrupts

	// loopForever is cleared by tests so Loop returns after one iteration.
	loopForever = true
)

// Loop halts the CPU until the next interrupt arrives, forever. Interrupt
// handlers still run while the CPU sits in this loop.
func Loop() {
	for {
		cpuHaltFn()
		if !loopForever {
			return
		}
	}
}

// Stop disables interrupts and halts the CPU for good.
func Stop() {
	disableInterrupts()
	Loop()
}

// DebugExit writes code to the debug-exit port. When the kernel runs inside
// an emulator configured with an isa-debug-exit device this terminates the
// emulator; on real hardware the write is ignored and execution continues.
func DebugExit(code ExitCode) {
	portWriteDwordFn(debugExitPort, uint32(code))
}
