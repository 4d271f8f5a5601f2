// Package irq installs the kernel's CPU exception and hardware interrupt
// handlers.
package irq

import (
	"sync/atomic"

	"kestrel/device/keyboard"
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/gate"
	"kestrel/kernel/gdt"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/pic"
)

// keyboardDataPort is the PS/2 controller data port.
const keyboardDataPort = 0x60

var (
	// The following functions are mocked by tests.
	handleInterruptFn = gate.HandleInterrupt
	readCR2Fn         = cpu.ReadCR2
	portReadByteFn    = cpu.PortReadByte
	acknowledgeFn     = pic.Acknowledge

	ticks           uint64
	keyboardDecoder keyboard.Decoder

	// echoFn receives the characters decoded by the keyboard handler.
	echoFn func(rune)
)

// Init registers the kernel exception and IRQ handlers with the gate
// package. It must be called before gate.Load.
func Init() *kernel.Error {
	handlers := [...]struct {
		vec     gate.InterruptNumber
		ist     uint8
		policy  gate.Policy
		handler gate.Handler
	}{
		{gate.Breakpoint, 0, gate.Recoverable, breakpointHandler},
		{gate.DoubleFault, gdt.DoubleFaultIST, gate.Fatal, doubleFaultHandler},
		{gate.GPFException, 0, gate.Fatal, generalProtectionFaultHandler},
		{gate.PageFaultException, 0, gate.Fatal, pageFaultHandler},
		{gate.InterruptNumber(pic.TimerVector), 0, gate.Recoverable, timerHandler},
		{gate.InterruptNumber(pic.KeyboardVector), 0, gate.Recoverable, keyboardHandler},
	}

	for _, h := range handlers {
		if err := handleInterruptFn(h.vec, h.ist, h.policy, h.handler); err != nil {
			return err
		}
	}

	return nil
}

// SetKeyEcho registers fn as the receiver of characters typed on the
// keyboard. Passing nil disables echoing.
func SetKeyEcho(fn func(rune)) {
	echoFn = fn
}

// Ticks returns the number of timer interrupts serviced since boot.
func Ticks() uint64 {
	return atomic.LoadUint64(&ticks)
}

func breakpointHandler(regs *gate.Registers) {
	kfmt.Printf("\nbreakpoint at RIP 0x%16x\n", regs.RIP)
	regs.DumpTo(kfmt.Output())
}

func doubleFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\ndouble fault (error code 0x%x)\n", regs.Info)
}

func generalProtectionFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\ngeneral protection fault (selector 0x%x)\n", regs.Info)
}

// Page fault error code bits.
const (
	pfProtection  = 1 << 0
	pfWrite       = 1 << 1
	pfUser        = 1 << 2
	pfReservedBit = 1 << 3
	pfInstrFetch  = 1 << 4
)

func pageFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\npage fault while accessing address: 0x%16x\nreason: ", readCR2Fn())

	switch {
	case regs.Info&pfReservedBit != 0:
		kfmt.Printf("page table has reserved bit set")
	case regs.Info&pfInstrFetch != 0:
		kfmt.Printf("instruction fetch from ")
		printPageState(regs.Info)
	case regs.Info&pfWrite != 0:
		kfmt.Printf("write to ")
		printPageState(regs.Info)
	default:
		kfmt.Printf("read from ")
		printPageState(regs.Info)
	}

	if regs.Info&pfUser != 0 {
		kfmt.Printf(" (user mode)")
	}
	kfmt.Printf("\n")
}

func printPageState(errorCode uint64) {
	if errorCode&pfProtection != 0 {
		kfmt.Printf("protected page")
		return
	}
	kfmt.Printf("non-present page")
}

func timerHandler(_ *gate.Registers) {
	atomic.AddUint64(&ticks, 1)
	acknowledgeFn(pic.TimerVector)
}

func keyboardHandler(_ *gate.Registers) {
	key := keyboardDecoder.Feed(portReadByteFn(keyboardDataPort))
	if key.Kind == keyboard.KeyUnicode && echoFn != nil {
		echoFn(key.Char)
	}

	acknowledgeFn(pic.KeyboardVector)
}
