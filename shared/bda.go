package shared

// BDA field offsets relative to BiosDataAreaAddr (0x400). Layout
// matches the guest-visible real-mode BIOS Data Area subset this core
// maintains; offsets within that subset are internal to this
// implementation since the full PC BDA layout is far larger than what
// this core models.
const (
	bdaCom1              = 0x00 // u16, COM1 port
	bdaCom2              = 0x02 // u16, COM2 port
	bdaMachineConfig     = 0x10 // u16
	bdaMemSizeKB         = 0x13 // u16, conventional memory in KiB
	bdaKeyboardStatus    = 0x17 // u16
	bdaKeyRingHead       = 0x1A // u16
	bdaKeyRingTail       = 0x1C // u16
	bdaKeyRingStart      = 0x1E // u16
	bdaKeyRingEnd        = 0x20 // u16
	bdaVidMode           = 0x49 // u8
	bdaTextColumns       = 0x4A // u16
	bdaCursorPosition    = 0x50 // 8 x u16, one per page
	bdaTextRowsMinusOne  = 0x84 // u8
	bdaDispPage          = 0x62 // u8
	bdaTimerCounter      = 0x6C // u32, ticks
	bdaNumberOfDrives    = 0x75 // u8
)

// BDA is an accessor over the BDA record at guest physical
// BiosDataAreaAddr. All accessors read/write through a GuestMem view,
// per the Design Notes guidance against raw pointer arithmetic.
type BDA struct {
	mem *GuestMem
}

// NewBDA returns an accessor for the BDA backed by mem.
func NewBDA(mem *GuestMem) *BDA {
	return &BDA{mem: mem}
}

func (b *BDA) addr(off uint64) uint64 { return BiosDataAreaAddr + off }

func (b *BDA) SetCom1(v uint16) error { return b.mem.PutU16(b.addr(bdaCom1), v) }
func (b *BDA) Com1() (uint16, error)  { return b.mem.U16(b.addr(bdaCom1)) }

func (b *BDA) SetMemSizeKB(v uint16) error { return b.mem.PutU16(b.addr(bdaMemSizeKB), v) }
func (b *BDA) MemSizeKB() (uint16, error)  { return b.mem.U16(b.addr(bdaMemSizeKB)) }

func (b *BDA) SetVidMode(v uint8) error { return b.mem.PutU8(b.addr(bdaVidMode), v) }
func (b *BDA) VidMode() (uint8, error)  { return b.mem.U8(b.addr(bdaVidMode)) }

func (b *BDA) SetTextColumns(v uint16) error { return b.mem.PutU16(b.addr(bdaTextColumns), v) }
func (b *BDA) TextColumns() (uint16, error)  { return b.mem.U16(b.addr(bdaTextColumns)) }

func (b *BDA) SetTextRowsMinusOne(v uint8) error { return b.mem.PutU8(b.addr(bdaTextRowsMinusOne), v) }
func (b *BDA) TextRowsMinusOne() (uint8, error)  { return b.mem.U8(b.addr(bdaTextRowsMinusOne)) }

func (b *BDA) SetDispPage(v uint8) error { return b.mem.PutU8(b.addr(bdaDispPage), v) }
func (b *BDA) DispPage() (uint8, error)  { return b.mem.U8(b.addr(bdaDispPage)) }

func (b *BDA) SetNumberOfDrives(v uint8) error { return b.mem.PutU8(b.addr(bdaNumberOfDrives), v) }
func (b *BDA) NumberOfDrives() (uint8, error)  { return b.mem.U8(b.addr(bdaNumberOfDrives)) }

func (b *BDA) SetTimerCounter(v uint32) error { return b.mem.PutU32(b.addr(bdaTimerCounter), v) }
func (b *BDA) TimerCounter() (uint32, error)  { return b.mem.U32(b.addr(bdaTimerCounter)) }

// CursorPosition returns the cursor column/row (packed as col in low
// byte, row in high byte, matching the real BDA convention) for the
// given display page (0-7).
func (b *BDA) CursorPosition(page int) (uint16, error) {
	return b.mem.U16(b.addr(bdaCursorPosition + uint64(page)*2))
}

func (b *BDA) SetCursorPosition(page int, v uint16) error {
	return b.mem.PutU16(b.addr(bdaCursorPosition+uint64(page)*2), v)
}

// ApplySetupDefaults writes the BDA defaults specified for the SETUP
// command: conventional memory 640 KiB, 80x25 text mode 03h, COM1 at
// 0x3F8, and the detected drive count.
func (b *BDA) ApplySetupDefaults(numDrives uint8) error {
	if err := b.SetNumberOfDrives(numDrives); err != nil {
		return err
	}
	if err := b.SetCom1(0x3F8); err != nil {
		return err
	}
	if err := b.SetMemSizeKB(640); err != nil {
		return err
	}
	if err := b.SetTextRowsMinusOne(24); err != nil {
		return err
	}
	if err := b.SetTextColumns(80); err != nil {
		return err
	}
	return b.SetVidMode(3)
}
