// Package kfmt implements a formatted-print front end that is safe to use
// before the Go allocator is available and from interrupt context.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	lowerDigits = []byte("0123456789abcdef")
	upperDigits = []byte("0123456789ABCDEF")

	// earlyPrintBuffer is a ring buffer that stores Printf output before the
	// console and serial drivers are initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Output returns the writer that Printf currently sends its output to.
func Output() io.Writer {
	if outputSink == nil {
		return &earlyPrintBuffer
	}
	return outputSink
}

// Printf provides a minimal Printf implementation that can be safely used
// before the Go runtime has been properly initialized. This implementation
// does not allocate any memory and keeps all of its scratch state on the
// stack so it can be re-entered by an interrupt handler.
//
// The following subset of formatting verbs is supported:
//
// Strings:
//
//	%s the uninterpreted bytes of the string or byte slice
//	%c a single ASCII character (byte or rune)
//
// Integers:
//
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//	%X base 16, with upper-case letters for A-F
//
// Booleans:
//
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes.
//
// Arguments are never checked for io.Stringer or error support and pointers
// (%p) are not supported as both would pull in reflect.
//
// The output of Printf is written to the active output sink. If no sink is
// available, then the output is buffered into a ring-buffer and replayed when
// a sink is registered via SetOutputSink.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// printer holds the per-call formatting state.
type printer struct {
	w       io.Writer
	scratch [maxBufSize]byte
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		p       = printer{w: w}
		argIdx  int
		padLen  int
		i       int
		fmtLen  = len(format)
		gotVerb bool
	)

	for i < fmtLen {
		if format[i] != '%' {
			p.writeByte(format[i])
			i++
			continue
		}

		padLen, gotVerb = 0, false
		for i++; i < fmtLen && !gotVerb; i++ {
			ch := format[i]
			switch {
			case ch == '%':
				p.writeByte('%')
				gotVerb = true
			case ch >= '0' && ch <= '9':
				padLen = padLen*10 + int(ch-'0')
			case isVerb(ch):
				gotVerb = true
				if argIdx >= len(args) {
					p.write(errMissingArg)
					break
				}
				p.fmtArg(ch, args[argIdx], padLen)
				argIdx++
			default:
				// Not a verb; report it and skip the offending byte
				p.write(errNoVerb)
				gotVerb = true
			}
		}

		if !gotVerb {
			p.write(errNoVerb)
		}
	}

	for ; argIdx < len(args); argIdx++ {
		p.write(errExtraArg)
	}
}

func isVerb(ch byte) bool {
	switch ch {
	case 'd', 'o', 'x', 'X', 's', 'c', 't':
		return true
	}
	return false
}

func (p *printer) fmtArg(verb byte, arg interface{}, padLen int) {
	switch verb {
	case 'o':
		p.fmtInt(arg, 8, padLen, lowerDigits)
	case 'd':
		p.fmtInt(arg, 10, padLen, lowerDigits)
	case 'x':
		p.fmtInt(arg, 16, padLen, lowerDigits)
	case 'X':
		p.fmtInt(arg, 16, padLen, upperDigits)
	case 's':
		p.fmtString(arg, padLen)
	case 'c':
		p.fmtChar(arg, padLen)
	case 't':
		p.fmtBool(arg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func (p *printer) fmtBool(v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		p.write(errWrongArgType)
	case b:
		p.write(trueValue)
	default:
		p.write(falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func (p *printer) fmtString(v interface{}, padLen int) {
	switch s := v.(type) {
	case string:
		p.repeat(' ', padLen-len(s))
		// converting the string to a byte slice triggers a memory
		// allocation so we need to do this one byte at a time.
		for i := 0; i < len(s); i++ {
			p.writeByte(s[i])
		}
	case []byte:
		p.repeat(' ', padLen-len(s))
		p.write(s)
	default:
		p.write(errWrongArgType)
	}
}

// fmtChar prints a single ASCII character. Runes outside the ASCII range are
// printed as '?'.
func (p *printer) fmtChar(v interface{}, padLen int) {
	var ch byte
	switch c := v.(type) {
	case byte:
		ch = c
	case rune:
		ch = '?'
		if c >= 0 && c < 0x80 {
			ch = byte(c)
		}
	default:
		p.write(errWrongArgType)
		return
	}

	p.repeat(' ', padLen-1)
	p.writeByte(ch)
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. All built-in signed and unsigned integer
// types are supported.
func (p *printer) fmtInt(v interface{}, base uint64, padLen int, digits []byte) {
	var (
		uval uint64
		neg  bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		neg, uval = abs(int64(n))
	case int16:
		neg, uval = abs(int64(n))
	case int32:
		neg, uval = abs(int64(n))
	case int64:
		neg, uval = abs(n)
	case int:
		neg, uval = abs(int64(n))
	default:
		p.write(errWrongArgType)
		return
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	// Digits are emitted right-to-left starting at the end of scratch
	pos := len(p.scratch)
	for {
		pos--
		p.scratch[pos] = digits[uval%base]
		uval /= base
		if uval == 0 {
			break
		}
	}

	for len(p.scratch)-pos < padLen {
		pos--
		p.scratch[pos] = padCh
	}

	// The sign replaces the blank closest to the digits if space padding
	// was applied; otherwise it is prepended.
	if neg {
		if p.scratch[pos] == ' ' {
			signPos := pos
			for p.scratch[signPos+1] == ' ' {
				signPos++
			}
			p.scratch[signPos] = '-'
		} else {
			pos--
			p.scratch[pos] = '-'
		}
	}

	p.write(p.scratch[pos:])
}

func abs(v int64) (bool, uint64) {
	if v < 0 {
		return true, uint64(-v)
	}
	return false, uint64(v)
}

// repeat writes count bytes with value ch.
func (p *printer) repeat(ch byte, count int) {
	for ; count > 0; count-- {
		p.writeByte(ch)
	}
}

func (p *printer) writeByte(b byte) {
	p.scratch[0] = b
	doWrite(p.w, p.scratch[:1])
}

func (p *printer) write(b []byte) {
	doWrite(p.w, b)
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without this hack, the compiler cannot properly
// detect that p does not escape (due to the call to the yet unknown output
// io.Writer) and plays it safe by flagging it as escaping. This would move
// every printer to the heap, crashing the kernel if Printf is called before
// the Go allocator is initialized.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
