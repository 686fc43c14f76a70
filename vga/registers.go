// Package vga models the VGA register files (Sequencer, CRTC, Graphics
// Controller, Attribute Controller, DAC) and the planar write pipeline,
// and renders modes 03h/12h/13h to a framebuffer.
package vga

// Register bit layouts. original_source's vga.h was filtered out of the
// retained source set; these positions are the standard documented VGA
// bit layouts for the fields vga.c's port handlers actually read/write.
const (
	// Sequencer Reset (SR00).
	seqResetAsync = 0x01
	seqResetSync  = 0x02

	// Sequencer Clocking Mode (SR01).
	seqCM89 = 0x01 // 1 = 8 dots/char, 0 = 9
	seqCMSO = 0x20 // screen off

	// CRTC Mode Control (CR17).
	crtcMCTE = 0x80 // timing enable; 0 = hardware reset

	// CRTC Cursor Start (CR0A).
	crtcCSCO = 0x20 // cursor off

	// Graphics Mode (GC05).
	gcModeOE = 0x10 // odd/even addressing
	gcModeC4 = 0x08 // chain-4 (must never be set)

	// Graphics Miscellaneous (GC06).
	gcMiscGM      = 0x01
	gcMiscMM      = 0x0C
	gcMiscMMShift = 2

	// Attribute Color Select (AC14).
	atcCSC45 = 0x03
	atcCSC67 = 0x0C
)

// Raster ops for write mode 0/2/3, per the GC Data Rotate register's op
// field.
const (
	OpReplace = 0x00
	OpAND     = 0x08
	OpOR      = 0x10
	OpXOR     = 0x18
)

// Seq holds the Sequencer register file.
type Seq struct {
	index       uint8
	reset       uint8
	clockMode   uint8
	mapMask     uint8
	cmapSelect  uint8
	memoryMode  uint8
}

func (s *Seq) Index() uint8       { return s.index }
func (s *Seq) SetIndex(v uint8)   { s.index = v & 0x1F }
func (s *Seq) Reset() uint8       { return s.reset }
func (s *Seq) SetReset(v uint8)   { s.reset = v }
func (s *Seq) ClockMode() uint8   { return s.clockMode }
func (s *Seq) SetClockMode(v uint8) { s.clockMode = v }
func (s *Seq) MapMask() uint8     { return s.mapMask }
func (s *Seq) SetMapMask(v uint8) { s.mapMask = v }
func (s *Seq) CharMapSelect() uint8     { return s.cmapSelect }
func (s *Seq) SetCharMapSelect(v uint8) { s.cmapSelect = v }
func (s *Seq) MemoryMode() uint8     { return s.memoryMode }
func (s *Seq) SetMemoryMode(v uint8) { s.memoryMode = v }

// ResetAsyncSet reports whether the asynchronous reset bit is set
// (CPU held in reset).
func (s *Seq) ResetAsyncSet() bool { return s.reset&seqResetAsync != 0 }
func (s *Seq) ResetSyncSet() bool  { return s.reset&seqResetSync != 0 }

// EightDotsSet reports the 8-vs-9 dot clock selection.
func (s *Seq) EightDotsSet() bool { return s.clockMode&seqCM89 != 0 }
func (s *Seq) ScreenOff() bool    { return s.clockMode&seqCMSO != 0 }

// The sequencer-level chain-4 addressing bit (SR04) is not decoded:
// Seq keeps the memory-mode byte as written, and chain-4 is only
// checked (as a Fatal error) through the GC mode register.

// CRTC holds the CRT Controller register file.
type CRTC struct {
	index            uint8
	horizTotal       uint8
	horizDispEnd     uint8
	startHorizBlank  uint8
	endHorizBlank    uint8
	startHorizRetr   uint8
	endHorizRetr     uint8
	vertTotal        uint8
	overflow         uint8
	presetRowScan    uint8
	maxScanLine      uint8
	cursorStart      uint8
	cursorOn         bool
	cursorEnd        uint8
	startAddrHigh    uint8
	startAddrLow     uint8
	startAddr        uint16
	cursorLocHigh    uint8
	cursorLocLow     uint8
	cursorLoc        uint16
	vertRetraceStart uint8
	vertRetraceEnd   uint8
	vertDispEnd      uint8
	offset           uint8
	underlineLoc     uint8
	startVertBlank   uint8
	endVertBlank     uint8
	modeCtrl         uint8
	lineCompare      uint8
}

func (c *CRTC) Index() uint8     { return c.index }
func (c *CRTC) SetIndex(v uint8) { c.index = v }

func (c *CRTC) ModeCtrl() uint8 { return c.modeCtrl }
func (c *CRTC) SetModeCtrl(v uint8) { c.modeCtrl = v }

// TimingEnabled reports the CRTC's timing-enable bit: when clear the
// CRTC is held in hardware reset.
func (c *CRTC) TimingEnabled() bool { return c.modeCtrl&crtcMCTE != 0 }

func (c *CRTC) SetCursorStart(v uint8) {
	c.cursorStart = v
	c.cursorOn = v&crtcCSCO == 0
}
func (c *CRTC) CursorStart() uint8 { return c.cursorStart }
func (c *CRTC) CursorOn() bool     { return c.cursorOn }

func (c *CRTC) SetStartAddrHigh(v uint8) {
	c.startAddrHigh = v
	c.startAddr = (c.startAddr & 0x00FF) | (uint16(v) << 8)
}
func (c *CRTC) SetStartAddrLow(v uint8) {
	c.startAddrLow = v
	c.startAddr = (c.startAddr & 0xFF00) | uint16(v)
}
func (c *CRTC) StartAddr() uint16 { return c.startAddr }

func (c *CRTC) SetCursorLocHigh(v uint8) {
	c.cursorLocHigh = v
	c.cursorLoc = (c.cursorLoc & 0x00FF) | (uint16(v) << 8)
}
func (c *CRTC) SetCursorLocLow(v uint8) {
	c.cursorLocLow = v
	c.cursorLoc = (c.cursorLoc & 0xFF00) | uint16(v)
}
func (c *CRTC) CursorLoc() uint16 { return c.cursorLoc }

// GC holds the Graphics Controller register file.
type GC struct {
	index         uint8
	setReset      uint8
	enbSetReset   uint8
	colorCompare  uint8
	rotate        uint8
	op            uint8
	readMapSel    uint8
	mode          uint8
	modeC4        bool
	modeOE        bool
	modeRM        uint8
	modeWM        uint8
	misc          uint8
	miscGM        uint8
	miscMM        uint8
	colorDontCare uint8
	bitMask       uint8
	latch0        uint8
	latch1        uint8
	latch2        uint8
	latch3        uint8
}

func (g *GC) Index() uint8     { return g.index }
func (g *GC) SetIndex(v uint8) { g.index = v }

func (g *GC) SetReset() uint8        { return g.setReset }
func (g *GC) SetSetReset(v uint8)    { g.setReset = v }
func (g *GC) EnableSetReset() uint8  { return g.enbSetReset }
func (g *GC) SetEnableSetReset(v uint8) { g.enbSetReset = v }

func (g *GC) Rotate() uint8 { return g.rotate & 0x07 }
func (g *GC) Op() uint8     { return g.op }
func (g *GC) SetDataRotate(v uint8) {
	g.rotate = v
	g.op = v & 0x18
}

func (g *GC) ReadMapSelect() uint8     { return g.readMapSel }
func (g *GC) SetReadMapSelect(v uint8) { g.readMapSel = v }

// SetMode validates the chain-4 invariant: asserting chain-4 is a fatal
// programmer error, per the error taxonomy's Fatal kind.
func (g *GC) SetMode(v uint8) error {
	g.mode = v
	g.modeC4 = v&gcModeC4 != 0
	g.modeOE = v&gcModeOE != 0
	g.modeRM = (v >> 3) & 0x1
	g.modeWM = v & 0x3
	if g.modeC4 {
		return ErrChain4
	}
	return nil
}
func (g *GC) Mode() uint8     { return g.mode }
func (g *GC) ModeOE() bool    { return g.modeOE }
func (g *GC) ModeRM() uint8   { return g.modeRM }
func (g *GC) ModeWM() uint8   { return g.modeWM }

// ApertureMap is the decoded GC miscellaneous memory-map selector.
type ApertureMap uint8

const (
	ApertureExtended  ApertureMap = 0 // 0xA0000, 128KiB
	ApertureEGAVGA    ApertureMap = 1 // 0xA0000, 64KiB
	ApertureMonoText  ApertureMap = 2 // unsupported, fatal
	ApertureColorText ApertureMap = 3 // 0xB8000, 32KiB
)

// SetMisc validates the monochrome-text aperture invariant: selecting
// it is a fatal programmer error, per §4.3.
func (g *GC) SetMisc(v uint8) error {
	g.misc = v
	g.miscGM = v & gcMiscGM
	g.miscMM = (v & gcMiscMM) >> gcMiscMMShift
	if ApertureMap(g.miscMM) == ApertureMonoText {
		return ErrMonochromeAperture
	}
	return nil
}
func (g *GC) Misc() uint8                 { return g.misc }
func (g *GC) Aperture() ApertureMap       { return ApertureMap(g.miscMM) }

func (g *GC) ColorDontCare() uint8     { return g.colorDontCare }
func (g *GC) SetColorDontCare(v uint8) { g.colorDontCare = v }
func (g *GC) BitMask() uint8     { return g.bitMask }
func (g *GC) SetBitMask(v uint8) { g.bitMask = v }

func (g *GC) Latches() (l0, l1, l2, l3 uint8) { return g.latch0, g.latch1, g.latch2, g.latch3 }
func (g *GC) SetLatches(l0, l1, l2, l3 uint8) {
	g.latch0, g.latch1, g.latch2, g.latch3 = l0, l1, l2, l3
}

// ATC palette indices span 0..15.
const (
	atcPalette0  = 0x00
	atcPalette15 = 0x0F
	atcModeCtrl  = 0x10
	atcOverscan  = 0x11
	atcColorEnb  = 0x12
	atcHPanning  = 0x13
	atcColorSel  = 0x14
	atcIdxMask   = 0x1F
)

// ATC holds the Attribute Controller register file.
type ATC struct {
	flipflop       int
	index          uint8
	palette        [16]uint8
	mode           uint8
	overscanColor  uint8
	colorPlaneEnb  uint8
	hPanning       uint8
	colorSelect    uint8
	colorSelect45  uint8
	colorSelect67  uint8
}

// WriteIndexOrData routes a write to the ATC's index/data flip-flop
// port, per the single-port ATC_IDX_PORT protocol.
func (a *ATC) WriteIndexOrData(val uint8) {
	if a.flipflop == 0 {
		a.index = val & atcIdxMask
	} else {
		switch {
		case a.index <= atcPalette15:
			a.palette[a.index] = val & 0x3F
		case a.index == atcModeCtrl:
			a.mode = val
		case a.index == atcOverscan:
			a.overscanColor = val
		case a.index == atcColorEnb:
			a.colorPlaneEnb = val
		case a.index == atcHPanning:
			a.hPanning = val
		case a.index == atcColorSel:
			a.colorSelect = val
			a.colorSelect45 = (val & atcCSC45) << 4
			a.colorSelect67 = ((val & atcCSC67) >> 2) << 6
		}
	}
	a.flipflop ^= 1
}

func (a *ATC) Index() uint8 { return a.index }
func (a *ATC) Palette(i int) uint8 { return a.palette[i] }
func (a *ATC) ModeCtrl() uint8     { return a.mode }
func (a *ATC) ResetFlipFlop()      { a.flipflop = 0 }
