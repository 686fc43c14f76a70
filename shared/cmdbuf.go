package shared

// Command codes for the async command-buffer protocol, byte-exact per
// the shared layout.
const (
	CmdSetup           = 0x01
	CmdDiskParams      = 0x02
	CmdDiskIO          = 0x03
	CmdChangeISOEject  = 0x04
	CmdPrints          = 0x05
	CmdVideo           = 0x06
	CmdDbgPrint        = 0xFE
	CmdPowerOff        = 0xFF
)

// Command buffer field offsets relative to BiosCmdsAddr: seq:u16@0,
// command:u16@2, results:u32@4, args:bytes@8.
const (
	cbSeq     = 0x00
	cbCommand = 0x02
	cbResults = 0x04
	cbArgs    = 0x08

	// ArgsSize bounds the args region this implementation supports;
	// large enough for the widest command payload (DISK_IO).
	ArgsSize = 64
)

// CommandBuffer is an accessor over the guest command buffer.
type CommandBuffer struct {
	mem *GuestMem
}

func NewCommandBuffer(mem *GuestMem) *CommandBuffer {
	return &CommandBuffer{mem: mem}
}

func (c *CommandBuffer) Seq() (uint16, error)     { return c.mem.U16(BiosCmdsAddr + cbSeq) }
func (c *CommandBuffer) Command() (uint16, error) { return c.mem.U16(BiosCmdsAddr + cbCommand) }

// SetResults writes the u32 results field: 0 on success, a positive
// error code on failure.
func (c *CommandBuffer) SetResults(v uint32) error {
	return c.mem.PutU32(BiosCmdsAddr+cbResults, v)
}
func (c *CommandBuffer) Results() (uint32, error) { return c.mem.U32(BiosCmdsAddr + cbResults) }

// Args returns a view over the args byte region.
func (c *CommandBuffer) Args() ([]byte, error) {
	return c.mem.Slice(BiosCmdsAddr+cbArgs, ArgsSize)
}

// ArgsU32 reads a little-endian u32 at byte offset off within args.
func (c *CommandBuffer) ArgsU32(off uint64) (uint32, error) {
	return c.mem.U32(BiosCmdsAddr + cbArgs + off)
}

func (c *CommandBuffer) ArgsU64(off uint64) (uint64, error) {
	return c.mem.U64(BiosCmdsAddr + cbArgs + off)
}

// DiskIOArgs mirrors bhyve_disk_io_cmd.
type DiskIOArgs struct {
	Direction uint32
	Disk      uint32
	Head      uint32
	Cylinder  uint32
	Sector    uint32
	Sectors   uint32
	LBA       uint64
	Addr      uint64
	IODelay   uint32
}

// NoLBA is the sentinel meaning "compute LBA from CHS".
const NoLBA = ^uint64(0)

func (c *CommandBuffer) ReadDiskIOArgs() (DiskIOArgs, error) {
	var a DiskIOArgs
	var err error
	if a.Direction, err = c.ArgsU32(0); err != nil {
		return a, err
	}
	if a.Disk, err = c.ArgsU32(4); err != nil {
		return a, err
	}
	if a.Head, err = c.ArgsU32(8); err != nil {
		return a, err
	}
	if a.Cylinder, err = c.ArgsU32(12); err != nil {
		return a, err
	}
	if a.Sector, err = c.ArgsU32(16); err != nil {
		return a, err
	}
	if a.Sectors, err = c.ArgsU32(20); err != nil {
		return a, err
	}
	if a.LBA, err = c.ArgsU64(24); err != nil {
		return a, err
	}
	if a.Addr, err = c.ArgsU64(32); err != nil {
		return a, err
	}
	if a.IODelay, err = c.ArgsU32(40); err != nil {
		return a, err
	}
	return a, nil
}

// DiskParams mirrors bhyve_disk_params.
type DiskParams struct {
	Disk        uint32
	Heads       uint32
	Cylinders   uint32
	Sectors     uint32
	DiskSectors uint64
	SectorSize  uint32
}

// WriteDiskParams serializes p into the args region.
func (c *CommandBuffer) WriteDiskParams(p DiskParams) error {
	base := uint64(BiosCmdsAddr + cbArgs)
	if err := c.mem.PutU32(base+0, p.Disk); err != nil {
		return err
	}
	if err := c.mem.PutU32(base+4, p.Heads); err != nil {
		return err
	}
	if err := c.mem.PutU32(base+8, p.Cylinders); err != nil {
		return err
	}
	if err := c.mem.PutU32(base+12, p.Sectors); err != nil {
		return err
	}
	if err := c.mem.PutU64(base+16, p.DiskSectors); err != nil {
		return err
	}
	return c.mem.PutU32(base+24, p.SectorSize)
}

// Video sub-commands, per bhyve_display_cmd's vidcmd selector.
const (
	VidCmdMode        = 1
	VidCmdDisplayPage = 2
	VidCmdWriteChar   = 3
	VidCmdSetPalette  = 4
	VidCmdVESA        = 5
)
