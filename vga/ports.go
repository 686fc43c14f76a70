package vga

// Legacy VGA port addresses, per the standard port map spec.md §4.3
// names.
const (
	PortCRTCIdxMono   = 0x3B4
	PortCRTCDataMono  = 0x3B5
	PortCRTCIdxColor  = 0x3D4
	PortCRTCDataColor = 0x3D5

	PortATC     = 0x3C0
	PortSeqIdx  = 0x3C4
	PortSeqData = 0x3C5
	PortDACMask = 0x3C6
	PortDACRdIdx = 0x3C7
	PortDACWrIdx = 0x3C8
	PortDACData  = 0x3C9
	PortGCIdx    = 0x3CE
	PortGCData   = 0x3CF

	PortMiscOutput = 0x3C2 // write; input-status-0 on read
	PortInputSts1Mono  = 0x3BA
	PortInputSts1Color = 0x3DA
	PortFeatureCtrlRd  = 0x3CA
	PortModeControl    = 0x3D8
	PortColorSelect    = 0x3D9
)

// CRTC data-register indices.
const (
	crHorizTotal        = 0x00
	crHorizDispEnd      = 0x01
	crStartHorizBlank   = 0x02
	crEndHorizBlank     = 0x03
	crStartHorizRetrace = 0x04
	crEndHorizRetrace   = 0x05
	crVertTotal         = 0x06
	crOverflow          = 0x07
	crPresetRowScan     = 0x08
	crMaxScanLine       = 0x09
	crCursorStart       = 0x0A
	crCursorEnd         = 0x0B
	crStartAddrHigh     = 0x0C
	crStartAddrLow      = 0x0D
	crCursorLocHigh     = 0x0E
	crCursorLocLow      = 0x0F
	crVertRetraceStart  = 0x10
	crVertRetraceEnd    = 0x11
	crVertDispEnd       = 0x12
	crOffset            = 0x13
	crUnderlineLoc      = 0x14
	crStartVertBlank    = 0x15
	crEndVertBlank      = 0x16
	crModeControl       = 0x17
	crLineCompare       = 0x18
)

// Sequencer data-register indices.
const (
	srReset        = 0x00
	srClockingMode = 0x01
	srMapMask      = 0x02
	srCharMapSel   = 0x03
	srMemoryMode   = 0x04
)

// Graphics Controller data-register indices.
const (
	gcSetReset     = 0x00
	gcEnbSetReset  = 0x01
	gcColorCompare = 0x02
	gcDataRotate   = 0x03
	gcReadMapSel   = 0x04
	gcMode         = 0x05
	gcMiscellaneous = 0x06
	gcColorDontCare = 0x07
	gcBitMask       = 0x08
)

// PortIn services a 1-byte read from port. Unknown ports return
// (0, ErrUnhandledPort); callers log a diagnostic and treat the read as
// returning 0, per §4.3.
func (c *Controller) PortIn(port uint16) (uint8, error) {
	switch port {
	case PortCRTCIdxMono, PortCRTCIdxColor:
		return c.CRTC.Index(), nil
	case PortCRTCDataMono, PortCRTCDataColor:
		return c.crtcDataIn(), nil
	case PortATC:
		return c.ATC.Index(), nil
	case PortSeqIdx:
		return c.Seq.Index(), nil
	case PortSeqData:
		return c.seqDataIn(), nil
	case PortDACData:
		return c.DAC.ReadData(), nil
	case PortGCIdx:
		return c.GC.Index(), nil
	case PortGCData:
		return c.gcDataIn(), nil
	case PortMiscOutput:
		return c.miscOutput, nil
	case PortInputSts1Mono, PortInputSts1Color:
		c.ATC.ResetFlipFlop()
		c.sts1 = 0x09 // GEN_IS1_VR | GEN_IS1_DE
		return c.sts1, nil
	case PortFeatureCtrlRd:
		return 0, nil
	case 0x3C3:
		return 0, nil
	default:
		return 0, ErrUnhandledPort
	}
}

func (c *Controller) crtcDataIn() uint8 {
	switch c.CRTC.index {
	case crHorizTotal:
		return c.CRTC.horizTotal
	case crHorizDispEnd:
		return c.CRTC.horizDispEnd
	case crStartHorizBlank:
		return c.CRTC.startHorizBlank
	case crEndHorizBlank:
		return c.CRTC.endHorizBlank
	case crStartHorizRetrace:
		return c.CRTC.startHorizRetr
	case crEndHorizRetrace:
		return c.CRTC.endHorizRetr
	case crVertTotal:
		return c.CRTC.vertTotal
	case crOverflow:
		return c.CRTC.overflow
	case crPresetRowScan:
		return c.CRTC.presetRowScan
	case crMaxScanLine:
		return c.CRTC.maxScanLine
	case crCursorStart:
		return c.CRTC.cursorStart
	case crCursorEnd:
		return c.CRTC.cursorEnd
	case crStartAddrHigh:
		return c.CRTC.startAddrHigh
	case crStartAddrLow:
		return c.CRTC.startAddrLow
	case crCursorLocHigh:
		return c.CRTC.cursorLocHigh
	case crCursorLocLow:
		return c.CRTC.cursorLocLow
	case crVertRetraceStart:
		return c.CRTC.vertRetraceStart
	case crVertRetraceEnd:
		return c.CRTC.vertRetraceEnd
	case crVertDispEnd:
		return c.CRTC.vertDispEnd
	case crOffset:
		return c.CRTC.offset
	case crUnderlineLoc:
		return c.CRTC.underlineLoc
	case crStartVertBlank:
		return c.CRTC.startVertBlank
	case crEndVertBlank:
		return c.CRTC.endVertBlank
	case crModeControl:
		return c.CRTC.modeCtrl
	case crLineCompare:
		return c.CRTC.lineCompare
	default:
		return 0
	}
}

func (c *Controller) seqDataIn() uint8 {
	switch c.Seq.index {
	case srReset:
		return c.Seq.reset
	case srClockingMode:
		return c.Seq.clockMode
	case srMapMask:
		return c.Seq.mapMask
	case srCharMapSel:
		return c.Seq.cmapSelect
	case srMemoryMode:
		return c.Seq.memoryMode
	default:
		return 0
	}
}

func (c *Controller) gcDataIn() uint8 {
	switch c.GC.index {
	case gcSetReset:
		return c.GC.setReset
	case gcEnbSetReset:
		return c.GC.enbSetReset
	case gcColorCompare:
		return c.GC.colorCompare
	case gcDataRotate:
		return c.GC.rotate
	case gcReadMapSel:
		return c.GC.readMapSel
	case gcMode:
		return c.GC.mode
	case gcMiscellaneous:
		return c.GC.misc
	case gcColorDontCare:
		return c.GC.colorDontCare
	case gcBitMask:
		return c.GC.bitMask
	default:
		return 0
	}
}

// PortOut services a 1-byte write to port. Returns an error only for
// the Fatal chain-4/monochrome-aperture invariants (GC_MODE,
// GC_MISCELLANEOUS); unknown ports return ErrUnhandledPort, which
// callers log and ignore.
func (c *Controller) PortOut(port uint16, val uint8) error {
	switch port {
	case PortCRTCIdxMono, PortCRTCIdxColor:
		c.CRTC.SetIndex(val)
	case PortCRTCDataMono, PortCRTCDataColor:
		c.crtcDataOut(val)
	case PortATC:
		c.ATC.WriteIndexOrData(val)
	case PortSeqIdx:
		c.Seq.SetIndex(val)
	case PortSeqData:
		c.seqDataOut(val)
	case PortDACMask:
		// ignored, matching the original.
	case PortDACRdIdx:
		c.DAC.SetReadIndex(val)
	case PortDACWrIdx:
		c.DAC.SetWriteIndex(val)
	case PortDACData:
		c.DAC.WriteData(val)
	case PortGCIdx:
		c.GC.SetIndex(val)
	case PortGCData:
		return c.gcDataOut(val)
	case PortMiscOutput:
		c.miscOutput = val
	case PortInputSts1Mono, PortInputSts1Color:
		// feature control register write, not modeled.
	case PortModeControl, PortColorSelect:
		// legacy CGA-era registers, accepted and ignored.
	default:
		return ErrUnhandledPort
	}
	return nil
}

func (c *Controller) crtcDataOut(val uint8) {
	switch c.CRTC.index {
	case crHorizTotal:
		c.CRTC.horizTotal = val
	case crHorizDispEnd:
		c.CRTC.horizDispEnd = val
	case crStartHorizBlank:
		c.CRTC.startHorizBlank = val
	case crEndHorizBlank:
		c.CRTC.endHorizBlank = val
	case crStartHorizRetrace:
		c.CRTC.startHorizRetr = val
	case crEndHorizRetrace:
		c.CRTC.endHorizRetr = val
	case crVertTotal:
		c.CRTC.vertTotal = val
	case crOverflow:
		c.CRTC.overflow = val
	case crPresetRowScan:
		c.CRTC.presetRowScan = val
	case crMaxScanLine:
		c.CRTC.maxScanLine = val
	case crCursorStart:
		c.CRTC.SetCursorStart(val)
	case crCursorEnd:
		c.CRTC.cursorEnd = val
	case crStartAddrHigh:
		c.CRTC.SetStartAddrHigh(val)
	case crStartAddrLow:
		c.CRTC.SetStartAddrLow(val)
	case crCursorLocHigh:
		c.CRTC.SetCursorLocHigh(val)
	case crCursorLocLow:
		c.CRTC.SetCursorLocLow(val)
	case crVertRetraceStart:
		c.CRTC.vertRetraceStart = val
	case crVertRetraceEnd:
		c.CRTC.vertRetraceEnd = val
	case crVertDispEnd:
		c.CRTC.vertDispEnd = val
	case crOffset:
		c.CRTC.offset = val
	case crUnderlineLoc:
		c.CRTC.underlineLoc = val
	case crStartVertBlank:
		c.CRTC.startVertBlank = val
	case crEndVertBlank:
		c.CRTC.endVertBlank = val
	case crModeControl:
		c.CRTC.SetModeCtrl(val)
	case crLineCompare:
		c.CRTC.lineCompare = val
	}
}

func (c *Controller) seqDataOut(val uint8) {
	switch c.Seq.index {
	case srReset:
		c.Seq.SetReset(val)
	case srClockingMode:
		c.Seq.SetClockMode(val)
	case srMapMask:
		c.Seq.SetMapMask(val)
	case srCharMapSel:
		c.Seq.SetCharMapSelect(val)
	case srMemoryMode:
		c.Seq.SetMemoryMode(val)
	}
}

func (c *Controller) gcDataOut(val uint8) error {
	switch c.GC.index {
	case gcSetReset:
		c.GC.SetSetReset(val)
	case gcEnbSetReset:
		c.GC.SetEnableSetReset(val)
	case gcColorCompare:
		c.GC.colorCompare = val
	case gcDataRotate:
		c.GC.SetDataRotate(val)
	case gcReadMapSel:
		c.GC.SetReadMapSelect(val)
	case gcMode:
		return c.GC.SetMode(val)
	case gcMiscellaneous:
		return c.GC.SetMisc(val)
	case gcColorDontCare:
		c.GC.SetColorDontCare(val)
	case gcBitMask:
		c.GC.SetBitMask(val)
	}
	return nil
}
