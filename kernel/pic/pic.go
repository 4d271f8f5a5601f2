// Package pic drives the pair of cascaded 8259 programmable interrupt
// controllers that deliver legacy hardware interrupts.
package pic

import (
	"kestrel/kernel/cpu"
	"kestrel/kernel/sync"
)

const (
	// PrimaryOffset is the vector that IRQ0 is remapped to. The default
	// BIOS mapping (vectors 8-15) overlaps CPU exceptions.
	PrimaryOffset = uint8(32)

	// SecondaryOffset is the vector that IRQ8 is remapped to.
	SecondaryOffset = PrimaryOffset + 8

	// TimerVector is the vector raised by the programmable interval timer
	// (IRQ0).
	TimerVector = PrimaryOffset

	// KeyboardVector is the vector raised by the PS/2 keyboard (IRQ1).
	KeyboardVector = PrimaryOffset + 1
)

const (
	primaryCommandPort   = uint16(0x20)
	primaryDataPort      = uint16(0x21)
	secondaryCommandPort = uint16(0xa0)
	secondaryDataPort    = uint16(0xa1)

	// Writing to this unused port takes long enough for the controllers
	// to process the previous command on older hardware.
	ioWaitPort = uint16(0x80)

	cmdInit        = uint8(0x11) // ICW1: edge triggered, cascade, expect ICW4
	cmdEndOfIntr   = uint8(0x20)
	mode8086       = uint8(0x01) // ICW4
	cascadeIRQLine = uint8(2)

	// Masks applied after init: only IRQ0 (timer) and IRQ1 (keyboard)
	// are unmasked on the primary; the secondary is fully masked.
	primaryMask   = uint8(0xfc)
	secondaryMask = uint8(0xff)
)

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// controller is a single 8259 chip.
type controller struct {
	offset      uint8
	commandPort uint16
	dataPort    uint16
}

// handlesInterrupt returns true if vec falls within the 8 vectors served by
// this controller.
func (c *controller) handlesInterrupt(vec uint8) bool {
	return vec >= c.offset && vec < c.offset+8
}

func (c *controller) endOfInterrupt() {
	portWriteByteFn(c.commandPort, cmdEndOfIntr)
}

// ChainedPICs models the primary and secondary controllers wired in cascade
// through IRQ2 of the primary.
type ChainedPICs struct {
	lock      sync.IRQSpinlock
	primary   controller
	secondary controller
}

// Init remaps both controllers to their offsets, wires the cascade and
// masks every line except the timer and the keyboard.
func (p *ChainedPICs) Init() {
	p.lock.Acquire()
	defer p.lock.Release()

	ioWait := func() { portWriteByteFn(ioWaitPort, 0) }

	// ICW1: start the initialization sequence
	portWriteByteFn(p.primary.commandPort, cmdInit)
	ioWait()
	portWriteByteFn(p.secondary.commandPort, cmdInit)
	ioWait()

	// ICW2: vector offsets
	portWriteByteFn(p.primary.dataPort, p.primary.offset)
	ioWait()
	portWriteByteFn(p.secondary.dataPort, p.secondary.offset)
	ioWait()

	// ICW3: the primary gets a bitmask of the line the secondary is wired
	// to; the secondary gets its cascade identity.
	portWriteByteFn(p.primary.dataPort, 1<<cascadeIRQLine)
	ioWait()
	portWriteByteFn(p.secondary.dataPort, cascadeIRQLine)
	ioWait()

	// ICW4: 8086 mode
	portWriteByteFn(p.primary.dataPort, mode8086)
	ioWait()
	portWriteByteFn(p.secondary.dataPort, mode8086)
	ioWait()

	portWriteByteFn(p.primary.dataPort, primaryMask)
	portWriteByteFn(p.secondary.dataPort, secondaryMask)
}

// HandlesInterrupt returns true if vec is delivered by either controller.
func (p *ChainedPICs) HandlesInterrupt(vec uint8) bool {
	return p.primary.handlesInterrupt(vec) || p.secondary.handlesInterrupt(vec)
}

// Acknowledge signals the end of the interrupt with vector vec. It must be
// called exactly once per serviced interrupt; otherwise the controllers stop
// delivering interrupts of equal or lower priority. Interrupts raised by the
// secondary controller must be acknowledged on both chips, secondary first.
// Vectors that are not owned by either controller are ignored.
func (p *ChainedPICs) Acknowledge(vec uint8) {
	if !p.HandlesInterrupt(vec) {
		return
	}

	p.lock.Acquire()
	if p.secondary.handlesInterrupt(vec) {
		p.secondary.endOfInterrupt()
	}
	p.primary.endOfInterrupt()
	p.lock.Release()
}

// Masks returns the interrupt masks currently programmed into the primary
// and secondary controllers.
func (p *ChainedPICs) Masks() (uint8, uint8) {
	p.lock.Acquire()
	defer p.lock.Release()
	return portReadByteFn(p.primary.dataPort), portReadByteFn(p.secondary.dataPort)
}

// Chained is the system-wide controller pair.
var Chained = &ChainedPICs{
	primary:   controller{offset: PrimaryOffset, commandPort: primaryCommandPort, dataPort: primaryDataPort},
	secondary: controller{offset: SecondaryOffset, commandPort: secondaryCommandPort, dataPort: secondaryDataPort},
}

// Init initializes the system-wide controller pair. It must be called with
// interrupts disabled, after the IDT is loaded.
func Init() { Chained.Init() }

// Acknowledge signals the end of interrupt vec to the system-wide
// controller pair.
func Acknowledge(vec uint8) { Chained.Acknowledge(vec) }
