package plot

import "image/color"

// palette is indexed by a season's position in sorted order.
var palette = []color.RGBA{
	{R: 0xe6, G: 0x19, B: 0x4b, A: 0xff},
	{R: 0x3c, G: 0xb4, B: 0x4b, A: 0xff},
	{R: 0x43, G: 0x63, B: 0xd8, A: 0xff},
	{R: 0xf5, G: 0x82, B: 0x31, A: 0xff},
	{R: 0x91, G: 0x1e, B: 0xb4, A: 0xff},
	{R: 0x42, G: 0xd4, B: 0xf4, A: 0xff},
	{R: 0xf0, G: 0x32, B: 0xe6, A: 0xff},
	{R: 0xbf, G: 0xef, B: 0x45, A: 0xff},
	{R: 0x46, G: 0x99, B: 0x90, A: 0xff},
	{R: 0x9a, G: 0x63, B: 0x24, A: 0xff},
	{R: 0x80, G: 0x00, B: 0x00, A: 0xff},
	{R: 0x80, G: 0x80, B: 0x00, A: 0xff},
	{R: 0x00, G: 0x00, B: 0x75, A: 0xff},
	{R: 0xff, G: 0xd8, B: 0xb1, A: 0xff},
	{R: 0xdc, G: 0xbe, B: 0xff, A: 0xff},
	{R: 0xaa, G: 0xff, B: 0xc3, A: 0xff},
}

func SeasonColor(index int) color.RGBA {
	if index < 0 {
		index = -index
	}
	return palette[index%len(palette)]
}

var (
	background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gridMajor  = color.RGBA{R: 0xd8, G: 0xd8, B: 0xd8, A: 0xff}
	gridMinor  = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
)
