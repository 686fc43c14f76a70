// Package inth implements the INT 13h (disk) and INT 15h (system
// services) handlers a trapped 4-byte command-port write dispatches
// to, working entirely against the vcpu.Registers/shared.GuestMem
// capabilities rather than a concrete hypervisor.
package inth

import (
	"fmt"
	"log"

	"microbios/memdisk"
	"microbios/shared"
	"microbios/vcpu"
)

// Context is the state an INT handler needs: the vCPU whose registers
// it reads/mutates, the guest memory it reads DMA buffers from and
// writes results into, the BIOS-VARS shadow register slot, and the
// registered disks.
type Context struct {
	VCPU  vcpu.Registers
	Mem   *shared.GuestMem
	BV    *shared.BiosVars
	E820  *shared.E820
	Disks *memdisk.Store

	// a20Enabled persists across INT15h/24h calls, mirroring the
	// original's function-local static a20_mode (default enabled).
	a20Enabled bool
}

// NewContext returns a Context with A20 reported enabled by default.
func NewContext(v vcpu.Registers, mem *shared.GuestMem, bv *shared.BiosVars, e820 *shared.E820, disks *memdisk.Store) *Context {
	return &Context{VCPU: v, Mem: mem, BV: bv, E820: e820, Disks: disks, a20Enabled: true}
}

// regs is the flat register view an INT handler operates on: EAX/EDX
// come from the BIOS-VARS shadow (the guest stub saves them there
// before trapping, since issuing the trap itself uses those
// registers), the rest come straight from the vCPU.
type regs struct {
	eax, ecx, edx, ebx uint32
	esp, ebp, esi, edi uint32
	cs, ss, ds, es     uint16
	eflags             uint32
}

const eflagsCF = shared.EFlagsCF

func setCF(r *regs)   { r.eflags |= eflagsCF }
func clearCF(r *regs) { r.eflags &^= eflagsCF }

func loWord(x uint32) uint16 { return uint16(x) }
func loByte(x uint32) uint8  { return uint8(x) }
func hiByte(x uint32) uint8  { return uint8(x >> 8) }

func (c *Context) loadRegs() (regs, error) {
	var r regs
	g, err := c.VCPU.GetGPRs()
	if err != nil {
		return r, err
	}
	s, err := c.VCPU.GetSregs()
	if err != nil {
		return r, err
	}
	r.ecx = uint32(g.RCX)
	r.ebx = uint32(g.RBX)
	r.esp = uint32(g.RSP)
	r.ebp = uint32(g.RBP)
	r.esi = uint32(g.RSI)
	r.edi = uint32(g.RDI)
	r.cs, r.ss, r.ds, r.es = s.CS, s.SS, s.DS, s.ES

	if r.eax, err = c.BV.Eax(); err != nil {
		return r, err
	}
	if r.edx, err = c.BV.Edx(); err != nil {
		return r, err
	}
	if r.eflags, err = c.BV.Eflags(); err != nil {
		return r, err
	}
	return r, nil
}

// storeRegs writes the handler's final register state back: the full
// GPR set (general registers a handler never touches round-trip
// unchanged) plus ES, which INT15h/C0h reassigns, and the BIOS-VARS
// EFLAGS shadow the guest stub restores on return.
func (c *Context) storeRegs(r regs) error {
	g, err := c.VCPU.GetGPRs()
	if err != nil {
		return err
	}
	g.RAX = uint64(r.eax)
	g.RBX = uint64(r.ebx)
	g.RCX = uint64(r.ecx)
	g.RDX = uint64(r.edx)
	g.RSI = uint64(r.esi)
	g.RDI = uint64(r.edi)
	g.RSP = uint64(r.esp)
	g.RBP = uint64(r.ebp)
	if err := c.VCPU.SetGPRs(g); err != nil {
		return err
	}

	s, err := c.VCPU.GetSregs()
	if err != nil {
		return err
	}
	if s.ES != r.es {
		s.ES = r.es
		if err := c.VCPU.SetSregs(s); err != nil {
			return err
		}
	}

	return c.BV.SetEflags(r.eflags)
}

// Dispatch routes to the INT 13h or INT 15h handler for vec. Any other
// vector sets CF and returns NotImplemented (non-fatal: the guest sees
// a failure return, the host logs a diagnostic).
func (c *Context) Dispatch(vec uint16) error {
	switch vec {
	case 0x13:
		return c.dispatchInt13()
	case 0x15:
		return c.dispatchInt15()
	default:
		r, err := c.loadRegs()
		if err != nil {
			return err
		}
		setCF(&r)
		log.Print(c.diagnose(fmt.Sprintf("inth: unhandled interrupt vector %#x", vec)))
		if serr := c.storeRegs(r); serr != nil {
			return serr
		}
		return &NotImplemented{Vector: vec}
	}
}

// NotImplemented reports an interrupt vector this core doesn't
// service. It is non-fatal: CF is already set in the guest's shadowed
// EFLAGS by the time this is returned.
type NotImplemented struct {
	Vector uint16
}

func (e *NotImplemented) Error() string {
	return "inth: unhandled interrupt vector"
}
