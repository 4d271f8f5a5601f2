// Package console implements a VGA text-mode framebuffer writer.
package console

import "io"

// Device is implemented by consoles that the hal package can use as the
// kernel output sink.
type Device interface {
	io.Writer
	io.ByteWriter

	// Dimensions returns the console width and height in characters.
	Dimensions() (width, height uint32)

	// SetColors selects the attribute used by subsequent writes.
	SetColors(fg, bg Color)

	// Printf writes formatted output using the supplied colors. The
	// colors remain active after the call returns.
	Printf(fg, bg Color, format string, args ...interface{})
}
