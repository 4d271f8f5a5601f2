package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"kestrel/device/video/console"

	"github.com/fogleman/gg"
)

const (
	cellWidth  = 9
	cellHeight = 16

	// glyphBaseline is the baseline offset of the default 7x13 face within
	// a cell.
	glyphBaseline = 12

	// placeholderGlyph matches the byte the console writer emits for
	// unprintable input.
	placeholderGlyph = 0xfe
)

var errDumpSize = errors.New("dump size does not match the requested text mode")

// cell is a decoded text mode cell.
type cell struct {
	ch     byte
	fg, bg console.Color
}

// decodeCells splits a raw text buffer dump into cols*rows cells.
func decodeCells(dump []byte, cols, rows int) ([]cell, error) {
	if cols <= 0 || rows <= 0 || len(dump) != cols*rows*2 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", errDumpSize, len(dump), cols, rows)
	}

	cells := make([]cell, cols*rows)
	for i := range cells {
		fg, bg := console.SplitAttribute(dump[2*i+1])
		cells[i] = cell{ch: dump[2*i], fg: fg, bg: bg}
	}
	return cells, nil
}

// render draws the decoded cells into an image using palette to resolve
// colors.
func render(cells []cell, cols int, palette color.Palette) image.Image {
	rows := len(cells) / cols
	dc := gg.NewContext(cols*cellWidth, rows*cellHeight)

	for i, c := range cells {
		x := float64((i % cols) * cellWidth)
		y := float64((i / cols) * cellHeight)

		dc.SetColor(palette[c.bg])
		dc.DrawRectangle(x, y, cellWidth, cellHeight)
		dc.Fill()

		dc.SetColor(palette[c.fg])
		switch {
		case c.ch == placeholderGlyph:
			dc.DrawRectangle(x+2, y+5, cellWidth-4, cellHeight-10)
			dc.Fill()
		case c.ch > ' ' && c.ch < 0x7f:
			dc.DrawString(string(rune(c.ch)), x+1, y+glyphBaseline)
		}
	}

	return dc.Image()
}
