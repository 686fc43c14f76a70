package glyph_test

import (
	"testing"

	"microbios/glyph"
)

func testFont() *glyph.Font {
	var f glyph.Font
	// glyph 'A' (index 0x41): first scanline all set bits for an easy check
	f[0x41][0] = 0xFF
	f[0x41][1] = 0x81
	return &f
}

func TestRenderLineDimensions(t *testing.T) {
	font := testFont()
	cols := 10
	cells := make([]uint16, cols)
	out := make([]uint32, 16*cols*8)

	if err := glyph.RenderLine(font, cells, cols, out); err != nil {
		t.Fatalf("RenderLine: %v", err)
	}
}

func TestRenderLineTooWide(t *testing.T) {
	font := testFont()
	cells := make([]uint16, 81)
	out := make([]uint32, 16*81*8)
	if err := glyph.RenderLine(font, cells, 81, out); err != glyph.ErrTooManyColumns {
		t.Errorf("RenderLine(81 cols) = %v, want ErrTooManyColumns", err)
	}
}

func TestRenderLinePixelColors(t *testing.T) {
	font := testFont()
	cells := []uint16{0x0141} // glyph 'A', fg=1, bg=0
	out := make([]uint32, 16*1*8)

	if err := glyph.RenderLine(font, cells, 1, out); err != nil {
		t.Fatalf("RenderLine: %v", err)
	}

	fg := glyph.Palette[1]
	bg := glyph.Palette[0]

	// scanline 0: 0xFF -> all 8 pixels foreground
	for i := 0; i < 8; i++ {
		if out[i] != fg {
			t.Errorf("scan0 pixel %d = %#x, want fg %#x", i, out[i], fg)
		}
	}

	// scanline 1: 0x81 -> bit7 and bit0 set, rest background
	row1 := out[8:16]
	want := []bool{true, false, false, false, false, false, false, true}
	for i, wantFg := range want {
		got := row1[i] == fg
		if got != wantFg {
			t.Errorf("scan1 pixel %d = %#x, want fg=%v", i, row1[i], wantFg)
		}
	}
	_ = bg
}
