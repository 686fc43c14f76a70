// Package dispatch implements the trap I/O port handler: the single
// hypercall port a guest OUT instruction traps into, routing 4-byte
// writes to the INT 13h/15h register-view handlers in inth and 1/2-byte
// writes to the async command-buffer protocol (SETUP, DISK_PARAMS,
// DISK_IO, CHANGE_ISO_EJECT, PRINTS, VIDEO, DBG_PRINT, POWER_OFF).
//
// Grounded on microbios_io_handler/microbios_cmd_handler in
// original_source/bios/bhyve/microbios.c, generalized from a direct
// guest-memory switch into a capability-based Dispatcher.
package dispatch

import (
	"fmt"
	"log"

	"microbios/inth"
	"microbios/memdisk"
	"microbios/shared"
	"microbios/vcpu"
	"microbios/vga"
)

// Dispatcher owns every capability a trapped port write can reach:
// guest memory accessors, the disk store, the VGA controller, the vCPU
// whose registers an INT handler mutates, and the INT dispatch context
// itself.
type Dispatcher struct {
	Mem   *shared.GuestMem
	BDA   *shared.BDA
	BV    *shared.BiosVars
	E820  *shared.E820
	Cmd   *shared.CommandBuffer
	Disks *memdisk.Store
	VGA   *vga.Controller
	VCPU  vcpu.Registers
	Inth  *inth.Context

	seq uint16
}

// New builds a Dispatcher over the given capabilities.
func New(mem *shared.GuestMem, disks *memdisk.Store, vc *vga.Controller, regs vcpu.Registers) *Dispatcher {
	bv := shared.NewBiosVars(mem)
	e820 := shared.NewE820(mem)
	return &Dispatcher{
		Mem:   mem,
		BDA:   shared.NewBDA(mem),
		BV:    bv,
		E820:  e820,
		Cmd:   shared.NewCommandBuffer(mem),
		Disks: disks,
		VGA:   vc,
		VCPU:  regs,
		Inth:  inth.NewContext(regs, mem, bv, e820, disks),
	}
}

// HandlePortWrite is the trap port's single entry point: an OUT of
// width bytes to shared.BiosIOPort carrying val. A 4-byte write is the
// INT-vector hypercall (vec := val>>16); 1 or 2-byte writes dispatch
// the async command buffer, mirroring microbios_io_handler's
// `bytes == 4` branch.
func (d *Dispatcher) HandlePortWrite(val uint32, width int) error {
	if width == 4 {
		vec := uint16(val >> 16)
		return d.Inth.Dispatch(vec)
	}
	return d.dispatchCommand()
}

func (d *Dispatcher) dispatchCommand() error {
	seq, err := d.Cmd.Seq()
	if err != nil {
		return err
	}
	d.seq = seq

	cmd, err := d.Cmd.Command()
	if err != nil {
		return err
	}

	switch cmd {
	case shared.CmdSetup:
		log.Printf("dispatch: SETUP seq=%d", seq)
		return d.cmdSetup()
	case shared.CmdDiskParams:
		return d.cmdDiskParams()
	case shared.CmdDiskIO:
		return d.cmdDiskIO()
	case shared.CmdChangeISOEject:
		log.Print("dispatch: CHANGE_ISO_EJECT")
		return d.Cmd.SetResults(0)
	case shared.CmdPrints:
		return d.cmdPrintString("dispatch")
	case shared.CmdVideo:
		return d.cmdVideo()
	case shared.CmdDbgPrint:
		return d.cmdPrintString("debug")
	case shared.CmdPowerOff:
		log.Print("dispatch: POWER_OFF")
		return d.VCPU.Halt()
	default:
		return fmt.Errorf("dispatch: unknown command %#x", cmd)
	}
}

// cmdSetup applies the BDA defaults and builds the E820 map, per
// microbios_setup_shared.
func (d *Dispatcher) cmdSetup() error {
	if err := d.BDA.ApplySetupDefaults(uint8(d.Disks.NumDisks())); err != nil {
		return err
	}
	entries := shared.BuildDefault(d.Mem.Size())
	if err := d.E820.WriteTable(entries); err != nil {
		return err
	}
	return d.Cmd.SetResults(0)
}

// cmdPrintString logs the NUL-terminated string the guest placed in
// the args region, prefixed by label ("dispatch" for PRINTS, "debug"
// for DBG_PRINT).
func (d *Dispatcher) cmdPrintString(label string) error {
	args, err := d.Cmd.Args()
	if err != nil {
		return err
	}
	n := 0
	for n < len(args) && args[n] != 0 {
		n++
	}
	log.Printf("%s: %s", label, args[:n])
	return nil
}
