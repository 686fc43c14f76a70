package shared

// BIOS-VARS field offsets relative to BiosVarsAddr (0xF5000). This is
// the ROM<->host register-exchange slot: the guest stub shadows
// AX/DX/FLAGS here before trapping (since the trap OUT itself clobbers
// AX), and the host reads/writes them here during INT servicing.
const (
	bvConfigTblOffset = 0x00 // u16
	bvEflags          = 0x04 // u32
	bvEax             = 0x08 // u32
	bvEdx             = 0x0C // u32
	bvEsp             = 0x10 // u32
	bvSS              = 0x14 // u16
	bvDS              = 0x16 // u16
	bvES              = 0x18 // u16
	bvGDTBase         = 0x1C // u32
	bvGDTLimit        = 0x20 // u16
)

// BiosVars is an accessor over the BIOS-VARS record.
type BiosVars struct {
	mem *GuestMem
}

// NewBiosVars returns an accessor for BIOS-VARS backed by mem.
func NewBiosVars(mem *GuestMem) *BiosVars {
	return &BiosVars{mem: mem}
}

func (v *BiosVars) addr(off uint64) uint64 { return BiosVarsAddr + off }

func (v *BiosVars) ConfigTableOffset() (uint16, error) {
	return v.mem.U16(v.addr(bvConfigTblOffset))
}
func (v *BiosVars) SetConfigTableOffset(x uint16) error {
	return v.mem.PutU16(v.addr(bvConfigTblOffset), x)
}

func (v *BiosVars) Eflags() (uint32, error)        { return v.mem.U32(v.addr(bvEflags)) }
func (v *BiosVars) SetEflags(x uint32) error        { return v.mem.PutU32(v.addr(bvEflags), x) }
func (v *BiosVars) Eax() (uint32, error)            { return v.mem.U32(v.addr(bvEax)) }
func (v *BiosVars) SetEax(x uint32) error           { return v.mem.PutU32(v.addr(bvEax), x) }
func (v *BiosVars) Edx() (uint32, error)            { return v.mem.U32(v.addr(bvEdx)) }
func (v *BiosVars) SetEdx(x uint32) error           { return v.mem.PutU32(v.addr(bvEdx), x) }
func (v *BiosVars) Esp() (uint32, error)            { return v.mem.U32(v.addr(bvEsp)) }
func (v *BiosVars) SetEsp(x uint32) error           { return v.mem.PutU32(v.addr(bvEsp), x) }
func (v *BiosVars) SS() (uint16, error)             { return v.mem.U16(v.addr(bvSS)) }
func (v *BiosVars) SetSS(x uint16) error            { return v.mem.PutU16(v.addr(bvSS), x) }
func (v *BiosVars) DS() (uint16, error)             { return v.mem.U16(v.addr(bvDS)) }
func (v *BiosVars) SetDS(x uint16) error            { return v.mem.PutU16(v.addr(bvDS), x) }
func (v *BiosVars) ES() (uint16, error)             { return v.mem.U16(v.addr(bvES)) }
func (v *BiosVars) SetES(x uint16) error            { return v.mem.PutU16(v.addr(bvES), x) }
func (v *BiosVars) GDTBase() (uint32, error)        { return v.mem.U32(v.addr(bvGDTBase)) }
func (v *BiosVars) SetGDTBase(x uint32) error       { return v.mem.PutU32(v.addr(bvGDTBase), x) }
func (v *BiosVars) GDTLimit() (uint16, error)       { return v.mem.U16(v.addr(bvGDTLimit)) }
func (v *BiosVars) SetGDTLimit(x uint16) error      { return v.mem.PutU16(v.addr(bvGDTLimit), x) }

// EFLAGS carry-flag bit, used pervasively by the CF=1-on-failure
// contract.
const EFlagsCF = 1 << 0

// SetCF sets or clears the carry flag in the shadowed EFLAGS.
func (v *BiosVars) SetCF(set bool) error {
	f, err := v.Eflags()
	if err != nil {
		return err
	}
	if set {
		f |= EFlagsCF
	} else {
		f &^= EFlagsCF
	}
	return v.SetEflags(f)
}
