package vga

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
)

// SnapshotPNG renders the current framebuffer to a PNG file at path,
// for interactive debugging of a VGA test failure. It is never called
// from the dispatch/INT handler hot path.
func (c *Controller) SnapshotPNG(path string) error {
	fb := c.Framebuffer()
	if fb.Width == 0 || fb.Height == 0 {
		return fmt.Errorf("vga: snapshot requested before a mode was set")
	}

	dc := gg.NewContext(fb.Width, fb.Height)
	for y := 0; y < fb.Height; y++ {
		for x := 0; x < fb.Width; x++ {
			px := fb.Pixels[y*fb.Width+x]
			r := uint8(px >> 16)
			g := uint8(px >> 8)
			b := uint8(px)
			dc.SetColor(color.RGBA{R: r, G: g, B: b, A: 0xFF})
			dc.SetPixel(x, y)
		}
	}
	return dc.SavePNG(path)
}
