package vga_test

import (
	"testing"

	"microbios/glyph"
	"microbios/vga"
)

func newTestController() *vga.Controller {
	var font glyph.Font
	return vga.NewController(&font)
}

func unreset(c *vga.Controller) {
	// Sequencer reset bits set (not held in reset), screen on, CRTC
	// timing-enabled: the conditions under which Render actually draws.
	c.Seq.SetReset(0x03)
	c.Seq.SetClockMode(0x00)
	c.CRTC.SetModeCtrl(0x80)
}

func TestSwitchModeRejectsUnsupported(t *testing.T) {
	c := newTestController()
	if err := c.SwitchMode(0x99); err != vga.ErrBadMode {
		t.Fatalf("SwitchMode(0x99) = %v, want ErrBadMode", err)
	}
	// state from the earlier successful 03h switch must be untouched.
	if c.Mode() != 0x03 {
		t.Errorf("Mode() = %#x after rejected switch, want unchanged 0x03", c.Mode())
	}
}

func TestSwitchModeDimensions(t *testing.T) {
	c := newTestController()
	cases := []struct {
		mode          uint8
		width, height int
	}{
		{0x03, 640, 400},
		{0x12, 640, 480},
		{0x13, 320, 200},
	}
	for _, tc := range cases {
		if err := c.SwitchMode(tc.mode); err != nil {
			t.Fatalf("SwitchMode(%#x): %v", tc.mode, err)
		}
		fb := c.Framebuffer()
		if fb.Width != tc.width || fb.Height != tc.height {
			t.Errorf("mode %#x: got %dx%d, want %dx%d", tc.mode, fb.Width, fb.Height, tc.width, tc.height)
		}
	}
}

func TestInResetByDefault(t *testing.T) {
	c := newTestController()
	// Freshly constructed registers are all zero, which the real reset
	// gate (not the original's dead-code shortcut) must report as "in
	// reset": async/sync reset bits clear and CRTC not timing-enabled.
	if !c.InReset() {
		t.Error("InReset() = false for zeroed registers, want true")
	}
}

func TestInResetClearedAfterUnreset(t *testing.T) {
	c := newTestController()
	unreset(c)
	if c.InReset() {
		t.Error("InReset() = true after unreset, want false")
	}
}

func TestPlanarWriteReplaceAllPlanes(t *testing.T) {
	c := newTestController()
	unreset(c)
	if err := c.SwitchMode(0x12); err != nil {
		t.Fatalf("SwitchMode: %v", err)
	}

	c.Seq.SetMapMask(0x0F)
	c.GC.SetSetReset(0x0F)
	c.GC.SetEnableSetReset(0x0F)
	if err := c.GC.SetMisc(0x01); err != nil { // graphics mode, memory map 0: 0xA0000/128KiB
		t.Fatalf("SetMisc: %v", err)
	}
	if err := c.GC.SetMode(0x00); err != nil { // write mode 0
		t.Fatalf("SetMode: %v", err)
	}
	c.GC.SetBitMask(0xFF)
	c.GC.SetDataRotate(0x00) // op = REPLACE

	c.MemWrite(0xA0000, 1, 0x55)

	for plane := uint8(0); plane < 4; plane++ {
		c.GC.SetReadMapSelect(plane)
		v := c.MemRead(0xA0000, 1)
		if v != 0xFF {
			t.Errorf("plane %d = %#x, want 0xFF", plane, v)
		}
	}
}

func TestChain4Fatal(t *testing.T) {
	c := newTestController()
	if err := c.GC.SetMode(0x08); err != vga.ErrChain4 {
		t.Errorf("SetMode(chain4) = %v, want ErrChain4", err)
	}
}

func TestMonochromeApertureFatal(t *testing.T) {
	c := newTestController()
	if err := c.GC.SetMisc(0x02 << 2); err != vga.ErrMonochromeAperture {
		t.Errorf("SetMisc(mono) = %v, want ErrMonochromeAperture", err)
	}
}

func TestDACPaletteDefaultMatchesColors4bpp(t *testing.T) {
	c := newTestController()
	for i := 0; i < 16; i++ {
		if c.DAC.RGB(uint8(i)) != vga.Colors4bpp[i] {
			t.Errorf("DAC entry %d = %#x, want %#x", i, c.DAC.RGB(uint8(i)), vga.Colors4bpp[i])
		}
	}
}

func TestDACWrite6to8Expansion(t *testing.T) {
	c := newTestController()
	c.DAC.SetWriteIndex(200)
	c.DAC.WriteData(0x3F) // max 6-bit value -> should expand to 0xFF
	c.DAC.WriteData(0x00)
	c.DAC.WriteData(0x01)
	got := c.DAC.RGB(200)
	wantR := uint32(0xFF)
	wantG := uint32(0x00)
	wantB := uint32((0x01 << 2) | ((0x01 & 1) << 1) | (0x01 & 1))
	want := (wantR << 16) | (wantG << 8) | wantB
	if got != want {
		t.Errorf("DAC RGB(200) = %#x, want %#x", got, want)
	}
}

func TestPortInUnhandledReturnsError(t *testing.T) {
	c := newTestController()
	if _, err := c.PortIn(0x9999); err != vga.ErrUnhandledPort {
		t.Errorf("PortIn(unknown) = %v, want ErrUnhandledPort", err)
	}
}

func TestCRTCCursorOnOff(t *testing.T) {
	c := newTestController()
	c.CRTC.SetCursorStart(0x00)
	if !c.CRTC.CursorOn() {
		t.Error("CursorOn() = false for cursor-start bit clear, want true")
	}
	c.CRTC.SetCursorStart(0x20)
	if c.CRTC.CursorOn() {
		t.Error("CursorOn() = true for cursor-off bit set, want false")
	}
}
