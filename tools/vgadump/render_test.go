package main

import (
	"errors"
	"image/color"
	"testing"

	"kestrel/device/video/console"
)

func TestDecodeCells(t *testing.T) {
	dump := []byte{
		'K', console.Attribute(console.White, console.Black),
		'!', console.Attribute(console.Yellow, console.Blue),
		placeholderGlyph, console.Attribute(console.White, console.Red),
		' ', console.Attribute(console.Green, console.Black),
	}

	cells, err := decodeCells(dump, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	exp := []cell{
		{'K', console.White, console.Black},
		{'!', console.Yellow, console.Blue},
		{placeholderGlyph, console.White, console.Red},
		{' ', console.Green, console.Black},
	}
	for i := range exp {
		if cells[i] != exp[i] {
			t.Errorf("[cell %d] expected %+v; got %+v", i, exp[i], cells[i])
		}
	}
}

func TestDecodeCellsSizeMismatch(t *testing.T) {
	specs := []struct {
		size, cols, rows int
	}{
		{3999, 80, 25},
		{4000, 80, 24},
		{0, 0, 25},
	}

	for specIndex, spec := range specs {
		if _, err := decodeCells(make([]byte, spec.size), spec.cols, spec.rows); !errors.Is(err, errDumpSize) {
			t.Errorf("[spec %d] expected errDumpSize; got %v", specIndex, err)
		}
	}
}

func TestRenderBackground(t *testing.T) {
	cells := []cell{
		{' ', console.White, console.Blue},
		{' ', console.White, console.Red},
		{'A', console.Yellow, console.Black},
	}

	palette := console.DefaultPalette()
	img := render(cells, 3, palette)

	if got := img.Bounds().Dx(); got != 3*cellWidth {
		t.Fatalf("expected image width %d; got %d", 3*cellWidth, got)
	}
	if got := img.Bounds().Dy(); got != cellHeight {
		t.Fatalf("expected image height %d; got %d", cellHeight, got)
	}

	specs := []struct {
		x, y int
		exp  color.Color
	}{
		{0, 0, palette[console.Blue]},
		{cellWidth - 1, cellHeight - 1, palette[console.Blue]},
		{cellWidth + 4, 1, palette[console.Red]},
		{2 * cellWidth, 0, palette[console.Black]},
	}

	for specIndex, spec := range specs {
		if !sameColor(img.At(spec.x, spec.y), spec.exp) {
			t.Errorf("[spec %d] expected pixel (%d, %d) to be %v; got %v", specIndex, spec.x, spec.y, spec.exp, img.At(spec.x, spec.y))
		}
	}
}

func TestRenderPlaceholder(t *testing.T) {
	cells := []cell{{placeholderGlyph, console.Yellow, console.Black}}

	palette := console.DefaultPalette()
	img := render(cells, 1, palette)

	if !sameColor(img.At(cellWidth/2, cellHeight/2), palette[console.Yellow]) {
		t.Errorf("expected placeholder square to be drawn in the foreground color; got %v", img.At(cellWidth/2, cellHeight/2))
	}
	if !sameColor(img.At(0, 0), palette[console.Black]) {
		t.Errorf("expected cell corner to keep the background color; got %v", img.At(0, 0))
	}
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}
