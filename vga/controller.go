package vga

import (
	"microbios/glyph"
)

const (
	textBufferSize = 32 * 1024 // 0xB8000 aperture
)

// Framebuffer is a (width, height, pixels) triple of 32-bit BGRX
// values, resized on mode switch.
type Framebuffer struct {
	Width, Height int
	Pixels        []uint32
}

func (f *Framebuffer) resize(w, h int) {
	if f.Width == w && f.Height == h {
		return
	}
	f.Width, f.Height = w, h
	f.Pixels = make([]uint32, w*h)
}

func (f *Framebuffer) clear() {
	for i := range f.Pixels {
		f.Pixels[i] = 0
	}
}

// Controller is the full VGA state machine: register files, planar
// memory, text buffer, and the current mode/framebuffer.
type Controller struct {
	Seq  Seq
	CRTC CRTC
	GC   GC
	ATC  ATC
	DAC  DAC

	planes  Planes
	textRAM [textBufferSize]byte

	miscOutput uint8
	sts1       uint8

	mode uint8
	fb   Framebuffer

	font *glyph.Font

	// displayPage selects which of the text buffer's pages is
	// rendered, set via the VIDEO/DISPLAY_PAGE command.
	displayPage int
}

// NewController returns a VGA controller initialized to mode 03h with
// the default mode-13h palette loaded.
func NewController(font *glyph.Font) *Controller {
	c := &Controller{font: font}
	c.DAC.InitDefaultPalette()
	_ = c.SwitchMode(0x03)
	return c
}

// InReset implements the real (non-dead-code) reset gate: the
// framebuffer is blanked and rendering suppressed when the sequencer
// holds the CPU in async or sync reset, the screen is off, or the CRTC
// is not timing-enabled. This supersedes the original's unconditional
// `return 0` per the mandated redesign.
func (c *Controller) InReset() bool {
	return c.Seq.ScreenOff() ||
		!c.Seq.ResetAsyncSet() ||
		!c.Seq.ResetSyncSet() ||
		!c.CRTC.TimingEnabled()
}

// SwitchMode sets the current video mode. Only 03h/12h/13h are
// supported; any other value returns ErrBadMode and leaves Controller
// state untouched (a correctness fix over the original, which mutated
// gc_width/height/bpp even on the rejected path).
func (c *Controller) SwitchMode(mode uint8) error {
	var w, h int
	switch mode {
	case 0x03:
		w, h = 640, 400
	case 0x12:
		w, h = 640, 480
	case 0x13:
		w, h = 320, 200
	default:
		return ErrBadMode
	}
	c.mode = mode
	c.fb.resize(w, h)
	return nil
}

// Mode returns the current video mode.
func (c *Controller) Mode() uint8 { return c.mode }

// SetDisplayPage selects the text page rendered by Render.
func (c *Controller) SetDisplayPage(page int) { c.displayPage = page }

// WriteTextChar writes one character+attribute cell directly into the
// text buffer, mirroring the ROM's own INT 10h write-through into
// 0xB8000 (spec §4.8): the command path only ever carries mode/page/
// palette sub-commands, never the character write itself, except when
// mode != 03h, in which case VIDEO/WRITE_CHAR drives this method so the
// glyph still reaches the graphics framebuffer.
func (c *Controller) WriteTextChar(page, row, col int, cell uint16) {
	off := page*(80*25*2) + row*(80*2) + col*2
	if off+1 >= len(c.textRAM) {
		return
	}
	c.textRAM[off] = byte(cell)
	c.textRAM[off+1] = byte(cell >> 8)
}

// TextChars returns the character byte of each of the 25x80 cells on
// the given display page, in row-major order, skipping the attribute
// byte of each cell, for a screen-scrape consumer like textcons.
func (c *Controller) TextChars(page int) []byte {
	base := page * (80 * 25 * 2)
	out := make([]byte, 25*80)
	for i := range out {
		off := base + i*2
		if off >= len(c.textRAM) {
			break
		}
		out[i] = c.textRAM[off]
	}
	return out
}

// Render redraws the framebuffer from the current mode and register
// state. While InReset, the framebuffer is cleared and no mode-specific
// rendering happens.
func (c *Controller) Render() error {
	if c.InReset() {
		c.fb.clear()
		return nil
	}
	if c.mode != 0x03 {
		return c.renderGraphics()
	}
	return c.renderText()
}

func (c *Controller) renderGraphics() error {
	if c.mode == 0x12 {
		c.renderMode12()
		return nil
	}
	plane0 := c.planes.plane(0)
	for i := 0; i < c.fb.Width*c.fb.Height; i++ {
		c.fb.Pixels[i] = c.DAC.RGB(plane0[i])
	}
	return nil
}

func (c *Controller) renderMode12() {
	vram := c.planes.flat()
	i := 0
	idx := 0
	for y := 0; y < c.fb.Height; y++ {
		for x := 0; x < c.fb.Width; x += 2 {
			px := vram[i]
			c.fb.Pixels[idx] = Colors4bpp[px&0xF]
			idx++
			c.fb.Pixels[idx] = Colors4bpp[(px>>4)&0xF]
			idx++
			i++
		}
	}
}

func (c *Controller) renderText() error {
	if c.font == nil {
		return nil
	}
	base := c.displayPage * (80 * 25 * 2)
	out := make([]uint32, 16*80*8)
	for row := 0; row < 25; row++ {
		cells := make([]uint16, 80)
		rowBase := base + row*80*2
		for col := 0; col < 80; col++ {
			off := rowBase + col*2
			if off+1 >= len(c.textRAM) {
				break
			}
			cells[col] = uint16(c.textRAM[off]) | uint16(c.textRAM[off+1])<<8
		}
		if err := glyph.RenderLine(c.font, cells, 80, out); err != nil {
			return err
		}
		copyGlyphRows(c.fb.Pixels, out, row, c.fb.Width)
	}
	return nil
}

func copyGlyphRows(dst []uint32, rows []uint32, textRow, fbWidth int) {
	for scan := 0; scan < 16; scan++ {
		dstY := textRow*16 + scan
		if dstY >= len(dst)/fbWidth {
			return
		}
		copy(dst[dstY*fbWidth:dstY*fbWidth+fbWidth], rows[scan*fbWidth:scan*fbWidth+fbWidth])
	}
}

// Framebuffer exposes the current rendered image.
func (c *Controller) Framebuffer() *Framebuffer { return &c.fb }
