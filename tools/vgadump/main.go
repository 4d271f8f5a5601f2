// Command vgadump converts a raw dump of the VGA text buffer into a PNG image.
//
// A dump can be captured from the QEMU monitor with:
//
//	pmemsave 0xb8000 4000 screen.bin
package main

import (
	"flag"
	"image/png"
	"log"
	"os"

	"kestrel/device/video/console"
)

var (
	input  = flag.String("in", "screen.bin", "raw text buffer dump")
	output = flag.String("out", "screen.png", "output PNG file")
	cols   = flag.Int("cols", 80, "text mode columns")
	rows   = flag.Int("rows", 25, "text mode rows")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("vgadump: ")

	dump, err := os.ReadFile(*input)
	if err != nil {
		log.Fatal(err)
	}

	cells, err := decodeCells(dump, *cols, *rows)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if err = png.Encode(f, render(cells, *cols, console.DefaultPalette())); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %dx%d screen to %s", *cols, *rows, *output)
}
