package dispatch_test

import (
	"os"
	"path/filepath"
	"testing"

	"microbios/dispatch"
	"microbios/glyph"
	"microbios/memdisk"
	"microbios/shared"
	"microbios/vcpu"
	"microbios/vga"
)

func newTestDispatcher(t *testing.T) (*dispatch.Dispatcher, *vcpu.Fake, *shared.GuestMem) {
	t.Helper()
	mem := shared.NewGuestMem(make([]byte, 4*1024*1024))
	disks := memdisk.NewStore()

	path := filepath.Join(t.TempDir(), "disk0.img")
	if err := os.WriteFile(path, make([]byte, 16*512), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := disks.Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var font glyph.Font
	ctrl := vga.NewController(&font)
	fake := vcpu.NewFake()

	return dispatch.New(mem, disks, ctrl, fake), fake, mem
}

func setCmd(mem *shared.GuestMem, cmd uint16) {
	_ = mem.PutU16(shared.BiosCmdsAddr+0, 1) // seq
	_ = mem.PutU16(shared.BiosCmdsAddr+2, cmd)
}

func TestDispatchSetupAppliesDefaults(t *testing.T) {
	d, _, mem := newTestDispatcher(t)
	setCmd(mem, shared.CmdSetup)

	if err := d.HandlePortWrite(0, 1); err != nil {
		t.Fatalf("HandlePortWrite: %v", err)
	}

	rows, err := d.BDA.TextRowsMinusOne()
	if err != nil {
		t.Fatalf("TextRowsMinusOne: %v", err)
	}
	if rows != 24 {
		t.Errorf("TextRowsMinusOne = %d, want 24", rows)
	}
	n, err := d.E820.NEntries()
	if err != nil {
		t.Fatalf("NEntries: %v", err)
	}
	if n != 4 {
		t.Errorf("E820 entries = %d, want 4", n)
	}
}

func TestDispatchDiskParams(t *testing.T) {
	d, _, mem := newTestDispatcher(t)
	setCmd(mem, shared.CmdDiskParams)
	if err := mem.PutU32(shared.BiosCmdsAddr+8, 0x80); err != nil {
		t.Fatalf("PutU32: %v", err)
	}

	if err := d.HandlePortWrite(0, 1); err != nil {
		t.Fatalf("HandlePortWrite: %v", err)
	}
	res, err := d.Cmd.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if res != 0 {
		t.Fatalf("results = %d, want 0", res)
	}
	sectors, err := mem.U64(shared.BiosCmdsAddr + 8 + 16)
	if err != nil {
		t.Fatalf("U64: %v", err)
	}
	if sectors != 16 {
		t.Errorf("disk_sectors = %d, want 16", sectors)
	}
}

func TestDispatchDiskIOWriteThenRead(t *testing.T) {
	d, _, mem := newTestDispatcher(t)

	dmaAddr := uint64(0x40000)
	pattern := make([]byte, 512)
	for i := range pattern {
		pattern[i] = 0x42
	}
	if err := mem.WriteAt(dmaAddr, pattern); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	setCmd(mem, shared.CmdDiskIO)
	args := shared.BiosCmdsAddr + 8
	_ = mem.PutU32(args+0, 1)    // direction: write
	_ = mem.PutU32(args+4, 0x80) // disk
	_ = mem.PutU64(args+24, 2)   // lba
	_ = mem.PutU32(args+20, 1)   // sectors
	_ = mem.PutU64(args+32, dmaAddr)

	if err := d.HandlePortWrite(0, 1); err != nil {
		t.Fatalf("HandlePortWrite write: %v", err)
	}
	res, _ := d.Cmd.Results()
	if res != 0 {
		t.Fatalf("write results = %d, want 0", res)
	}

	readBack := make([]byte, 512)
	off, _ := d.Disks.LBAToOffset(0, 2)
	if err := d.Disks.Read(0, off, readBack); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range readBack {
		if b != 0x42 {
			t.Fatalf("disk lba 2 = %#x, want 0x42", readBack)
		}
	}
}

func TestDispatchVideoModeSwitch(t *testing.T) {
	d, _, mem := newTestDispatcher(t)
	setCmd(mem, shared.CmdVideo)
	args := shared.BiosCmdsAddr + 8
	_ = mem.PutU32(args+0, shared.VidCmdMode)
	_ = mem.PutU32(args+4, 0x12)

	if err := d.HandlePortWrite(0, 1); err != nil {
		t.Fatalf("HandlePortWrite: %v", err)
	}
	if d.VGA.Mode() != 0x12 {
		t.Errorf("Mode() = %#x, want 0x12", d.VGA.Mode())
	}
}

func TestDispatchVideoDisplayPage(t *testing.T) {
	d, _, mem := newTestDispatcher(t)
	setCmd(mem, shared.CmdVideo)
	args := shared.BiosCmdsAddr + 8
	_ = mem.PutU32(args+0, shared.VidCmdDisplayPage)
	_ = mem.PutU32(args+4, 3)

	if err := d.HandlePortWrite(0, 1); err != nil {
		t.Fatalf("HandlePortWrite: %v", err)
	}
	page, err := d.BDA.DispPage()
	if err != nil {
		t.Fatalf("DispPage: %v", err)
	}
	if page != 3 {
		t.Errorf("DispPage = %d, want 3", page)
	}
}

func TestDispatchPowerOffHalts(t *testing.T) {
	d, fake, mem := newTestDispatcher(t)
	setCmd(mem, shared.CmdPowerOff)

	if err := d.HandlePortWrite(0, 1); err != nil {
		t.Fatalf("HandlePortWrite: %v", err)
	}
	if !fake.Halted {
		t.Error("Halted = false after POWER_OFF")
	}
}

func TestDispatchUnknownCommandErrors(t *testing.T) {
	d, _, mem := newTestDispatcher(t)
	setCmd(mem, 0x77)

	if err := d.HandlePortWrite(0, 1); err == nil {
		t.Fatal("HandlePortWrite(unknown) = nil, want error")
	}
}

func TestDispatchIntVectorWrite(t *testing.T) {
	d, _, mem := newTestDispatcher(t)
	bv := shared.NewBiosVars(mem)
	bv.SetEax(uint32(0x41) << 8) // AH=0x41 check extensions present

	val := uint32(0x13) << 16
	if err := d.HandlePortWrite(val, 4); err != nil {
		t.Fatalf("HandlePortWrite: %v", err)
	}
	eflags, _ := bv.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Error("CF set after INT13/41h via port trap, want clear")
	}
}
