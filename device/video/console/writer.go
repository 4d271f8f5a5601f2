package console

import (
	"image/color"
	"io"

	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/mmio"
	"kestrel/kernel/sync"
)

const (
	// placeholderGlyph (a small square) replaces bytes outside the
	// printable ASCII range.
	placeholderGlyph = 0xfe

	// blankGlyph is used for clearing rows.
	blankGlyph = ' '

	// cellSize is the size in bytes of a character cell: the glyph
	// followed by its attribute.
	cellSize = 2

	dacIndexPort = 0x3c8
	dacDataPort  = 0x3c9
)

var (
	// portWriteByteFn is used by tests to capture palette updates.
	portWriteByteFn = cpu.PortWriteByte
)

// Writer implements an EGA-compatible text console that behaves like a
// teletype: text is always written to the bottom row and a line feed or a
// full row scrolls the screen up by one line.
//
// All methods are safe to call from interrupt handlers; the writer state is
// protected by an IRQSpinlock.
type Writer struct {
	lock sync.IRQSpinlock

	fb            mmio.Region
	width, height uintptr

	column  uintptr
	attr    uint8
	scrolls uint64

	palette [16]color.RGBA
}

// Init points the writer at a framebuffer with the given dimensions in
// characters. The active colors are reset to white on black.
func (w *Writer) Init(fb mmio.Region, columns, rows uint32) {
	w.lock.Acquire()
	w.fb = fb
	w.width, w.height = uintptr(columns), uintptr(rows)
	w.column = 0
	w.scrolls = 0
	w.attr = Attribute(Normal.Fg, Normal.Bg)
	w.palette = egaPalette
	w.lock.Release()
}

// Dimensions returns the console width and height in characters.
func (w *Writer) Dimensions() (uint32, uint32) {
	return uint32(w.width), uint32(w.height)
}

// SetColors selects the attribute used by subsequent writes.
func (w *Writer) SetColors(fg, bg Color) {
	w.lock.Acquire()
	w.attr = Attribute(fg, bg)
	w.lock.Release()
}

// WriteByte implements io.ByteWriter.
func (w *Writer) WriteByte(b byte) error {
	w.lock.Acquire()
	w.writeByte(b)
	w.lock.Release()
	return nil
}

// Write implements io.Writer. The lock is held for the whole write so that
// output from interrupt handlers is never interleaved with p.
func (w *Writer) Write(p []byte) (int, error) {
	w.lock.Acquire()
	for _, b := range p {
		w.writeByte(b)
	}
	w.lock.Release()
	return len(p), nil
}

// Printf selects the supplied colors and writes the formatted output while
// holding the writer lock. The colors remain active after the call.
func (w *Writer) Printf(fg, bg Color, format string, args ...interface{}) {
	w.lock.Acquire()
	w.attr = Attribute(fg, bg)
	kfmt.Fprintf(unlockedWriter{w}, format, args...)
	w.lock.Release()
}

// Styled is a shorthand for Printf(style.Fg, style.Bg, format, args...).
func (w *Writer) Styled(style Style, format string, args ...interface{}) {
	w.Printf(style.Fg, style.Bg, format, args...)
}

// Clear blanks the screen using the active colors and moves the cursor to the
// start of the bottom row.
func (w *Writer) Clear() {
	w.lock.Acquire()
	w.fb.Fill16(0, w.blankCell(), w.width*w.height)
	w.column = 0
	w.lock.Release()
}

// Cell returns the glyph and colors stored at the given zero-based
// coordinates.
func (w *Writer) Cell(row, col uint32) (byte, Color, Color) {
	w.lock.Acquire()
	v := w.fb.Read16(w.cellOffset(uintptr(row), uintptr(col)))
	w.lock.Release()

	fg, bg := SplitAttribute(uint8(v >> 8))
	return byte(v), fg, bg
}

// Column returns the cursor column in the bottom row.
func (w *Writer) Column() uint32 {
	w.lock.Acquire()
	defer w.lock.Release()
	return uint32(w.column)
}

// Scrolls returns the number of times the screen scrolled since Init.
func (w *Writer) Scrolls() uint64 {
	w.lock.Acquire()
	defer w.lock.Release()
	return w.scrolls
}

// SetPaletteColor updates the color definition for the specified palette
// index and loads it into the DAC.
func (w *Writer) SetPaletteColor(index Color, rgba color.RGBA) {
	if int(index) >= len(w.palette) {
		return
	}

	w.lock.Acquire()
	w.palette[index] = rgba

	// The DAC expects 6-bit color components.
	portWriteByteFn(dacIndexPort, uint8(index))
	portWriteByteFn(dacDataPort, rgba.R>>2)
	portWriteByteFn(dacDataPort, rgba.G>>2)
	portWriteByteFn(dacDataPort, rgba.B>>2)
	w.lock.Release()
}

// PaletteColor returns the color definition for the specified palette index.
func (w *Writer) PaletteColor(index Color) color.RGBA {
	return w.palette[index&0xf]
}

// writeByte must be called while holding the writer lock.
func (w *Writer) writeByte(b byte) {
	if b == '\n' {
		w.newLine()
		return
	}

	if b < 0x20 || b > 0x7e {
		b = placeholderGlyph
	}

	if w.column >= w.width {
		w.newLine()
	}

	w.fb.Write16(w.cellOffset(w.height-1, w.column), uint16(w.attr)<<8|uint16(b))
	w.column++
}

// newLine scrolls the screen up by one row and clears the bottom row.
func (w *Writer) newLine() {
	rowBytes := w.width * cellSize
	w.fb.Copy(0, rowBytes, (w.height-1)*rowBytes)
	w.fb.Fill16((w.height-1)*rowBytes, w.blankCell(), w.width)
	w.column = 0
	w.scrolls++
}

func (w *Writer) blankCell() uint16 {
	return uint16(w.attr)<<8 | blankGlyph
}

func (w *Writer) cellOffset(row, col uintptr) uintptr {
	return (row*w.width + col) * cellSize
}

// unlockedWriter writes to a Writer whose lock is already held.
type unlockedWriter struct {
	w *Writer
}

func (u unlockedWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		u.w.writeByte(b)
	}
	return len(p), nil
}

// DriverName returns the name of this driver.
func (w *Writer) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (w *Writer) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit clears the screen.
func (w *Writer) DriverInit(out io.Writer) *kernel.Error {
	w.Clear()
	kfmt.Fprintf(out, "%dx%d text framebuffer at 0x%x\n", w.width, w.height, w.fb.Base())
	return nil
}
