package vcpu

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// KVM ioctl request codes, adapted from the teacher's raw syscall.Syscall
// encodings (kvm/kvm.go) onto golang.org/x/sys/unix's ioctl wrapper.
const (
	kvmGetRegs  = 0x8090ae81
	kvmSetRegs  = 0x4090ae82
	kvmGetSregs = 0x8138ae83
	kvmSetSregs = 0x4138ae84
)

// kvmRegs mirrors struct kvm_regs, little-endian, matching the
// teacher's kvm.Regs layout.
type kvmRegs struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RSP, RBP uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RIP, RFLAGS        uint64
}

// kvmSegment mirrors struct kvm_segment.
type kvmSegment struct {
	Base     uint64
	Limit    uint32
	Selector uint16
	Typ      uint8
	Present  uint8
	DPL      uint8
	DB       uint8
	S        uint8
	L        uint8
	G        uint8
	AVL      uint8
	Unusable uint8
	_        uint8
}

// kvmDtable mirrors struct kvm_dtable (GDT/IDT descriptor).
type kvmDtable struct {
	Base  uint64
	Limit uint16
	_     [3]uint16
}

// kvmSregs mirrors struct kvm_sregs; only the segment registers are
// read by this implementation, the rest is carried so the ioctl's fixed
// ABI layout stays correct.
type kvmSregs struct {
	CS, DS, ES, FS, GS, SS kvmSegment
	TR, LDT                kvmSegment
	GDT, IDT               kvmDtable
	CR0, CR2, CR3, CR4     uint64
	CR8                    uint64
	EFER                   uint64
	ApicBase               uint64
	InterruptBitmap        [(256 + 63) / 64]uint64
}

// KVMVCPU is an ioctl-backed Registers implementation for a KVM vCPU
// file descriptor, adapted from the teacher's kvm/kvm.go GetRegs/
// SetRegs/GetSregs/SetSregs but using golang.org/x/sys/unix instead of
// bare syscall.Syscall.
type KVMVCPU struct {
	fd       uintptr
	poweroff func() error
}

// NewKVMVCPU wraps an already-created vCPU file descriptor. poweroff is
// invoked by Halt (e.g. to tear down the whole VM on BCMD_POWER_OFF).
func NewKVMVCPU(fd uintptr, poweroff func() error) *KVMVCPU {
	return &KVMVCPU{fd: fd, poweroff: poweroff}
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return fmt.Errorf("vcpu: ioctl %#x: %w", req, errno)
	}
	return nil
}

func (v *KVMVCPU) GetGPRs() (GPRs, error) {
	var r kvmRegs
	if err := ioctl(v.fd, kvmGetRegs, unsafe.Pointer(&r)); err != nil {
		return GPRs{}, err
	}
	return GPRs{
		RAX: r.RAX, RBX: r.RBX, RCX: r.RCX, RDX: r.RDX,
		RSI: r.RSI, RDI: r.RDI, RSP: r.RSP, RBP: r.RBP,
		RIP: r.RIP, RFLAGS: r.RFLAGS,
	}, nil
}

func (v *KVMVCPU) SetGPRs(g GPRs) error {
	var r kvmRegs
	if err := ioctl(v.fd, kvmGetRegs, unsafe.Pointer(&r)); err != nil {
		return err
	}
	r.RAX, r.RBX, r.RCX, r.RDX = g.RAX, g.RBX, g.RCX, g.RDX
	r.RSI, r.RDI, r.RSP, r.RBP = g.RSI, g.RDI, g.RSP, g.RBP
	r.RIP, r.RFLAGS = g.RIP, g.RFLAGS
	return ioctl(v.fd, kvmSetRegs, unsafe.Pointer(&r))
}

func (v *KVMVCPU) GetSregs() (Sregs, error) {
	var s kvmSregs
	if err := ioctl(v.fd, kvmGetSregs, unsafe.Pointer(&s)); err != nil {
		return Sregs{}, err
	}
	return Sregs{
		CS: s.CS.Selector, SS: s.SS.Selector,
		DS: s.DS.Selector, ES: s.ES.Selector,
	}, nil
}

// SetSregs writes back only the segment selectors a handler touches
// (e.g. INT15h/C0h's ES := 0xF000); the rest of the kvm_sregs ABI
// struct is read first so base/limit/access-rights fields round-trip
// unmodified.
func (v *KVMVCPU) SetSregs(s Sregs) error {
	var r kvmSregs
	if err := ioctl(v.fd, kvmGetSregs, unsafe.Pointer(&r)); err != nil {
		return err
	}
	r.CS.Selector, r.SS.Selector = s.CS, s.SS
	r.DS.Selector, r.ES.Selector = s.DS, s.ES
	return ioctl(v.fd, kvmSetSregs, unsafe.Pointer(&r))
}

func (v *KVMVCPU) Halt() error {
	if v.poweroff != nil {
		return v.poweroff()
	}
	return nil
}
