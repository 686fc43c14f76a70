package inth

import (
	"os"
	"path/filepath"
	"testing"

	"microbios/memdisk"
	"microbios/shared"
	"microbios/vcpu"
)

func newTestContext(t *testing.T) (*Context, *vcpu.Fake) {
	t.Helper()
	mem := shared.NewGuestMem(make([]byte, 2*1024*1024))
	bv := shared.NewBiosVars(mem)
	e820 := shared.NewE820(mem)
	disks := memdisk.NewStore()

	path := filepath.Join(t.TempDir(), "disk0.img")
	// 16 sectors of 512 bytes, distinguishable content per sector.
	buf := make([]byte, 16*512)
	for i := range buf {
		buf[i] = byte(i / 512)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := disks.Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fake := vcpu.NewFake()
	return NewContext(fake, mem, bv, e820, disks), fake
}

func setAX(bv *shared.BiosVars, ah, al uint8) {
	bv.SetEax(uint32(ah)<<8 | uint32(al))
}

func TestInt13ResetSucceeds(t *testing.T) {
	c, _ := newTestContext(t)
	setAX(c.BV, 0x00, 0x00)
	if err := c.Dispatch(0x13); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	eflags, _ := c.BV.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Error("CF set after INT13/00h reset, want clear")
	}
}

func TestInt13ReadWriteRoundTrip(t *testing.T) {
	c, fake := newTestContext(t)

	dmaAddr := uint64(0x20000)
	// CHS read mirroring the 0x02 handler's decode: disk 0x80, head 0,
	// cylinder 0, sector 1, 1 sector, into ES:BX = 0x2000:0x0000.
	setAX(c.BV, 0x02, 0x01)
	c.BV.SetEdx(0x0080) // dl=0x80 disk, dh=0 head
	fake.GPRs.RCX = 0x0001 // cylinder=0, sector=1
	fake.GPRs.RBX = 0x0000
	fake.Sreg.ES = uint16(dmaAddr >> 4)

	if err := c.Dispatch(0x13); err != nil {
		t.Fatalf("Dispatch read: %v", err)
	}
	eflags, _ := c.BV.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Fatal("CF set after INT13/02h read, want clear")
	}
	got, err := c.Mem.ReadAt(dmaAddr, 512)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for _, b := range got {
		if b != 0 {
			t.Fatalf("sector 0 content = %#x, want all zero", got)
		}
	}

	// Now write a different pattern to sector 2 (CHS sector=2) and read
	// it back through the disk store directly.
	pattern := make([]byte, 512)
	for i := range pattern {
		pattern[i] = 0xAB
	}
	if err := c.Mem.WriteAt(dmaAddr, pattern); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	setAX(c.BV, 0x03, 0x01)
	fake.GPRs.RCX = 0x0002 // sector=2

	if err := c.Dispatch(0x13); err != nil {
		t.Fatalf("Dispatch write: %v", err)
	}
	eflags, _ = c.BV.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Fatal("CF set after INT13/03h write, want clear")
	}

	readBack := make([]byte, 512)
	off, _ := c.Disks.LBAToOffset(0, 1)
	if err := c.Disks.Read(0, off, readBack); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range readBack {
		if b != 0xAB {
			t.Fatalf("disk sector 1 after write = %#x, want all 0xAB", readBack)
		}
	}
}

func TestInt13CheckExtensionsPresent(t *testing.T) {
	c, fake := newTestContext(t)
	setAX(c.BV, 0x41, 0x00)
	if err := c.Dispatch(0x13); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if fake.GPRs.RBX != 0xAA55 {
		t.Errorf("RBX = %#x, want 0xAA55", fake.GPRs.RBX)
	}
	if fake.GPRs.RCX != 0x05 {
		t.Errorf("RCX = %#x, want 0x05", fake.GPRs.RCX)
	}
}

func TestInt15A20RoundTrip(t *testing.T) {
	c, fake := newTestContext(t)

	setAX(c.BV, 0x24, 0x00) // disable
	if err := c.Dispatch(0x15); err != nil {
		t.Fatalf("Dispatch disable: %v", err)
	}
	if c.a20Enabled {
		t.Error("a20Enabled = true after disable")
	}

	setAX(c.BV, 0x24, 0x02) // get status
	if err := c.Dispatch(0x15); err != nil {
		t.Fatalf("Dispatch status: %v", err)
	}
	eax := fake.GPRs.RAX
	if eax&0xFF != 0 {
		t.Errorf("a20 status = %#x, want 0", eax&0xFF)
	}
}

func TestInt15SleepClearsCF(t *testing.T) {
	c, _ := newTestContext(t)
	setAX(c.BV, 0x86, 0x00)
	if err := c.Dispatch(0x15); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	eflags, _ := c.BV.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Error("CF set after INT15/86h, want clear")
	}
}

func TestInt15E820Walk(t *testing.T) {
	c, fake := newTestContext(t)

	entries := shared.BuildDefault(16 * 1024 * 1024)
	if err := c.E820.WriteTable(entries); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	bufAddr := uint64(0x30000)
	setAX(c.BV, 0xE8, 0x20)
	c.BV.SetEdx(0x534D4150)
	fake.GPRs.RCX = 20
	fake.GPRs.RBX = 0
	fake.Sreg.ES = uint16(bufAddr >> 4)
	fake.GPRs.RDI = 0

	if err := c.Dispatch(0x15); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	eflags, _ := c.BV.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Fatal("CF set on first E820 entry, want clear")
	}
	a, err := c.Mem.U64(bufAddr)
	if err != nil {
		t.Fatalf("U64: %v", err)
	}
	if a != entries[0].Addr {
		t.Errorf("entry 0 addr = %#x, want %#x", a, entries[0].Addr)
	}
	sz, err := c.Mem.U64(bufAddr + 8)
	if err != nil {
		t.Fatalf("U64: %v", err)
	}
	if sz != entries[0].Size {
		t.Errorf("entry 0 size = %#x, want %#x", sz, entries[0].Size)
	}
	if fake.GPRs.RBX != 1 {
		t.Errorf("continuation RBX = %d, want 1", fake.GPRs.RBX)
	}
}

func TestInt15SysConfig(t *testing.T) {
	c, fake := newTestContext(t)
	c.BV.SetConfigTableOffset(0x1234)
	setAX(c.BV, 0xC0, 0x00)
	if err := c.Dispatch(0x15); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if fake.Sreg.ES != 0xF000 {
		t.Errorf("ES = %#x, want 0xF000", fake.Sreg.ES)
	}
	if fake.GPRs.RBX&0xFFFF != 0x1234 {
		t.Errorf("RBX = %#x, want 0x1234", fake.GPRs.RBX)
	}
}

func TestDispatchUnknownVectorSetsCFAndReturnsNotImplemented(t *testing.T) {
	c, _ := newTestContext(t)
	err := c.Dispatch(0x21)
	ni, ok := err.(*NotImplemented)
	if !ok {
		t.Fatalf("Dispatch(0x21) error = %v, want *NotImplemented", err)
	}
	if ni.Vector != 0x21 {
		t.Errorf("Vector = %#x, want 0x21", ni.Vector)
	}
	eflags, _ := c.BV.Eflags()
	if eflags&shared.EFlagsCF == 0 {
		t.Error("CF clear after unhandled vector, want set")
	}
}
