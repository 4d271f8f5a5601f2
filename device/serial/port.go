// Package serial implements a polled driver for 16550-compatible UARTs.
package serial

import (
	"io"

	"kestrel/device"
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/sync"
)

// COM1Base is the I/O port base of the first serial port.
const COM1Base = uint16(0x3f8)

// Register offsets relative to the port base.
const (
	regData          = 0
	regIntEnable     = 1
	regFIFOControl   = 2
	regLineControl   = 3
	regModemControl  = 4
	regLineStatus    = 5
	regDivisorLow    = 0
	regDivisorHigh   = 1
	lineControlDLAB  = 0x80
	lineControl8N1   = 0x03
	fifoEnableClear  = 0xc7
	modemDTRRTSOut2  = 0x0b
	intEnableRecv    = 0x01
	lineStatusTxIdle = 0x20

	// baudDivisor selects 38400 baud (115200 / 3).
	baudDivisor = 3

	// maxTransmitWait bounds the number of line status polls before a
	// byte is dropped.
	maxTransmitWait = 1 << 16
)

var (
	// The following functions are used by tests to mock port I/O.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	errTransmitTimeout = &kernel.Error{Module: "serial", Message: "timed out waiting for the transmit holding register"}

	// COM1 is the first serial port.
	COM1 = Port{base: COM1Base}
)

// Port is a polled 16550 UART. Writes are serialized with an IRQSpinlock so
// the port can be used from interrupt handlers.
type Port struct {
	lock sync.IRQSpinlock
	base uint16
}

// NewPort returns a Port for the UART at the given I/O base.
func NewPort(base uint16) Port {
	return Port{base: base}
}

// Init programs the UART for 38400 baud, 8 data bits, no parity and one
// stop bit with FIFOs enabled.
func (p *Port) Init() {
	p.lock.Acquire()
	portWriteByteFn(p.base+regIntEnable, 0)
	portWriteByteFn(p.base+regLineControl, lineControlDLAB)
	portWriteByteFn(p.base+regDivisorLow, baudDivisor&0xff)
	portWriteByteFn(p.base+regDivisorHigh, baudDivisor>>8)
	portWriteByteFn(p.base+regLineControl, lineControl8N1)
	portWriteByteFn(p.base+regFIFOControl, fifoEnableClear)
	portWriteByteFn(p.base+regModemControl, modemDTRRTSOut2)
	portWriteByteFn(p.base+regIntEnable, intEnableRecv)
	p.lock.Release()
}

// WriteByte implements io.ByteWriter. Backspace and DEL are sent as a
// destructive backspace sequence.
func (p *Port) WriteByte(b byte) error {
	p.lock.Acquire()
	err := p.writeByte(b)
	p.lock.Release()

	if err != nil {
		return err
	}
	return nil
}

// Write implements io.Writer. The lock is held for the whole write so output
// from interrupt handlers is never interleaved with b.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.Acquire()
	defer p.lock.Release()

	for i, ch := range b {
		if err := p.writeByte(ch); err != nil {
			return i, err
		}
	}
	return len(b), nil
}

func (p *Port) writeByte(b byte) *kernel.Error {
	switch b {
	case '\b', 0x7f:
		for _, ch := range [3]byte{'\b', ' ', '\b'} {
			if err := p.send(ch); err != nil {
				return err
			}
		}
		return nil
	default:
		return p.send(b)
	}
}

// send waits until the transmit holding register is empty and writes b.
func (p *Port) send(b byte) *kernel.Error {
	for wait := 0; portReadByteFn(p.base+regLineStatus)&lineStatusTxIdle == 0; wait++ {
		if wait == maxTransmitWait {
			return errTransmitTimeout
		}
	}

	portWriteByteFn(p.base+regData, b)
	return nil
}

// DriverName returns the name of this driver.
func (p *Port) DriverName() string {
	return "serial_16550"
}

// DriverVersion returns the version of this driver.
func (p *Port) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes the UART.
func (p *Port) DriverInit(w io.Writer) *kernel.Error {
	p.Init()
	kfmt.Fprintf(w, "port 0x%x configured for 38400 8N1\n", p.base)
	return nil
}

func probeForCOM1() device.Driver {
	// A floating bus reads back 0xff from the line status register.
	if portReadByteFn(COM1Base+regLineStatus) == 0xff {
		return nil
	}
	return &COM1
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderBeforeACPI,
		Probe: probeForCOM1,
	})
}
