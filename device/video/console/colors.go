package console

import "image/color"

// Color is an index into the 16-entry EGA palette.
type Color uint8

// The EGA palette colors.
const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	Pink
	Yellow
	White
)

// Attribute packs a foreground and background color into a VGA attribute
// byte. Only the low 4 bits of each color are used.
func Attribute(fg, bg Color) uint8 {
	return uint8(bg&0xf)<<4 | uint8(fg&0xf)
}

// SplitAttribute returns the foreground and background colors encoded in
// attr.
func SplitAttribute(attr uint8) (fg, bg Color) {
	return Color(attr & 0xf), Color(attr >> 4)
}

// Style is a foreground/background color pair.
type Style struct {
	Fg, Bg Color
}

// Predefined styles for kernel diagnostics.
var (
	Normal   = Style{White, Black}
	Success  = Style{Green, Black}
	Warning  = Style{Yellow, Black}
	Fail     = Style{Red, Black}
	Critical = Style{Magenta, Black}
	Fatal    = Style{White, Red}
)

// egaPalette holds the standard EGA colors indexed by Color.
var egaPalette = [16]color.RGBA{
	{R: 0, G: 0, B: 0, A: 255},       /* black */
	{R: 0, G: 0, B: 170, A: 255},     /* blue */
	{R: 0, G: 170, B: 0, A: 255},     /* green */
	{R: 0, G: 170, B: 170, A: 255},   /* cyan */
	{R: 170, G: 0, B: 0, A: 255},     /* red */
	{R: 170, G: 0, B: 170, A: 255},   /* magenta */
	{R: 170, G: 85, B: 0, A: 255},    /* brown */
	{R: 170, G: 170, B: 170, A: 255}, /* light gray */
	{R: 85, G: 85, B: 85, A: 255},    /* dark gray */
	{R: 85, G: 85, B: 255, A: 255},   /* light blue */
	{R: 85, G: 255, B: 85, A: 255},   /* light green */
	{R: 85, G: 255, B: 255, A: 255},  /* light cyan */
	{R: 255, G: 85, B: 85, A: 255},   /* light red */
	{R: 255, G: 85, B: 255, A: 255},  /* pink */
	{R: 255, G: 255, B: 85, A: 255},  /* yellow */
	{R: 255, G: 255, B: 255, A: 255}, /* white */
}

// DefaultPalette returns the standard EGA palette.
func DefaultPalette() color.Palette {
	palette := make(color.Palette, len(egaPalette))
	for i, c := range egaPalette {
		palette[i] = c
	}
	return palette
}
