package hostctx

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

func newTestHostContext(t *testing.T) (*HostContext, *vcpu.Fake) {
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

	hc := &HostContext{Mem: mem, Disks: disks, VGA: ctrl, trapPort: shared.BiosIOPort}
	hc.vcpus = []*vcpuTrap{{
		regs: fake,
		disp: dispatch.New(mem, disks, ctrl, fake),
	}}
	return hc, fake
}

func setCmd(mem *shared.GuestMem, cmd uint16) {
	_ = mem.PutU16(shared.BiosCmdsAddr+0, 1)
	_ = mem.PutU16(shared.BiosCmdsAddr+2, cmd)
}

func TestHandleTrapCommandDispatch(t *testing.T) {
	hc, fake := newTestHostContext(t)
	setCmd(hc.Mem, shared.CmdPowerOff)

	if err := hc.handleTrap(hc.vcpus[0], []byte{0}, 1); err != nil {
		t.Fatalf("handleTrap: %v", err)
	}
	if !fake.Halted {
		t.Error("Halted = false after POWER_OFF trap")
	}
}

func TestHandleTrapIntVectorDispatch(t *testing.T) {
	hc, _ := newTestHostContext(t)
	bv := shared.NewBiosVars(hc.Mem)
	bv.SetEax(uint32(0x41) << 8) // AH=0x41, check extensions present

	// val = 0x13<<16 encoded little-endian across the 4-byte write.
	data := []byte{0x00, 0x00, 0x13, 0x00}
	if err := hc.handleTrap(hc.vcpus[0], data, 4); err != nil {
		t.Fatalf("handleTrap: %v", err)
	}
	eflags, _ := bv.Eflags()
	if eflags&shared.EFlagsCF != 0 {
		t.Error("CF set after INT13/41h via port trap, want clear")
	}
}

func TestHandleTrapUnknownCommandErrors(t *testing.T) {
	hc, _ := newTestHostContext(t)
	setCmd(hc.Mem, 0x77)

	if err := hc.handleTrap(hc.vcpus[0], []byte{0}, 1); err == nil {
		t.Fatal("handleTrap(unknown command) = nil, want error")
	}
}

func TestNumVCPUs(t *testing.T) {
	hc, _ := newTestHostContext(t)
	if n := hc.NumVCPUs(); n != 1 {
		t.Errorf("NumVCPUs() = %d, want 1", n)
	}
}
