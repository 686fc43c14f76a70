// Package hostctx wires a running VM's trap-port exits to the
// dispatch/inth packages. It is the explicit HostContext value (Design
// Notes §9) that replaces the original's global `struct vga_softc *`
// singleton: one value owns guest memory, the disk store, VGA state,
// and one Dispatcher per vCPU.
//
// Grounded on machine/machine.go's Machine struct and its
// initIOPortHandlers/RunOnce pair, scoped down from a full 64K-entry
// PC platform port table to the single BIOS trap port spec.md needs.
// Opening /dev/kvm, KVM_CREATE_VM, the guest memory slot, and vCPU
// register reset are the external VM launcher's job per spec.md §1;
// HostContext is handed already-created vCPU fds and a guest memory
// slice and only ever mmaps the kvm_run page to read IO-exit data, the
// way machine.Machine.New does for its own runs[i].
package hostctx

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"syscall"
	"unsafe"

	"microbios/dispatch"
	"microbios/glyph"
	"microbios/inth"
	"microbios/kvm"
	"microbios/memdisk"
	"microbios/shared"
	"microbios/vcpu"
	"microbios/vga"
)

// Config collects the values main.go assembles into a HostContext.
// Command-line parsing itself is the external VM-launcher collaborator
// spec.md §1 excludes, so Config is always built as a plain literal.
type Config struct {
	DiskPaths []string
	Font      *glyph.Font
	// TrapPort defaults to shared.BiosIOPort when zero.
	TrapPort uint64
}

// vcpuTrap is the per-vCPU state HostContext needs to notice an OUT to
// the trap port and read back the transferred bytes: the fd for
// KVM_RUN plus its mmap'd kvm_run page, mirroring machine.Machine's
// runs/vcpuFds fields one vCPU at a time.
type vcpuTrap struct {
	fd   uintptr
	run  *kvm.RunData
	regs vcpu.Registers
	disp *dispatch.Dispatcher
}

// HostContext owns guest memory, the disk store, VGA state, and one
// Dispatcher per vCPU, and routes each vCPU's trap-port exits to
// dispatch/inth.
type HostContext struct {
	Mem   *shared.GuestMem
	Disks *memdisk.Store
	VGA   *vga.Controller

	trapPort uint64
	vcpus    []*vcpuTrap
}

// New builds a HostContext over already-opened vCPU file descriptors
// and an already-mapped guest memory slice. kvmFd is used only for
// KVM_GET_VCPU_MMAP_SIZE; poweroff is invoked from a vCPU's Halt
// (BCMD_POWER_OFF), typically tearing down whatever VM the launcher
// created.
func New(cfg Config, kvmFd uintptr, vcpuFds []uintptr, mem []byte, poweroff func() error) (*HostContext, error) {
	if len(vcpuFds) == 0 {
		return nil, fmt.Errorf("hostctx: no vCPUs")
	}

	trapPort := cfg.TrapPort
	if trapPort == 0 {
		trapPort = shared.BiosIOPort
	}

	disks := memdisk.NewStore()
	for _, p := range cfg.DiskPaths {
		if _, err := disks.Create(p); err != nil {
			return nil, fmt.Errorf("hostctx: disk %s: %w", p, err)
		}
	}

	vc := vga.NewController(cfg.Font)
	gm := shared.NewGuestMem(mem)

	mmapSize, err := kvm.GetVCPUMMmapSize(kvmFd)
	if err != nil {
		return nil, fmt.Errorf("hostctx: GetVCPUMMmapSize: %w", err)
	}

	hc := &HostContext{Mem: gm, Disks: disks, VGA: vc, trapPort: trapPort}
	for _, fd := range vcpuFds {
		r, err := syscall.Mmap(int(fd), 0, int(mmapSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("hostctx: mmap vcpu run: %w", err)
		}
		run := (*kvm.RunData)(unsafe.Pointer(&r[0]))
		regs := vcpu.NewKVMVCPU(fd, poweroff)
		hc.vcpus = append(hc.vcpus, &vcpuTrap{
			fd:   fd,
			run:  run,
			regs: regs,
			disp: dispatch.New(gm, disks, vc, regs),
		})
	}
	return hc, nil
}

// NumVCPUs returns the number of vCPUs HostContext services.
func (h *HostContext) NumVCPUs() int { return len(h.vcpus) }

// RunInfiniteLoop drives vCPU i until it halts or errors, mirroring
// machine.Machine.RunInfiniteLoop.
func (h *HostContext) RunInfiniteLoop(i int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		cont, err := h.RunOnce(i)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// RunOnce executes one KVM_RUN on vCPU i and services at most one
// trap-port exit, mirroring machine.Machine.RunOnce's EXITHLT/EXITIO
// switch. Unlike RunOnce's 64K-entry ioportHandlers table lookup, only
// OUT instructions to trapPort ever carry BIOS protocol traffic here,
// so any other port is logged and ignored.
func (h *HostContext) RunOnce(i int) (bool, error) {
	vc := h.vcpus[i]
	err := kvm.Run(vc.fd)

	switch vc.run.ExitReason {
	case kvm.EXITHLT:
		return false, err
	case kvm.EXITIO:
		direction, size, port, count, offset := vc.run.IO()
		if port != h.trapPort || direction != kvm.EXITIOOUT {
			log.Printf("hostctx: ignoring IO exit on port %#x dir=%d", port, direction)
			return true, err
		}
		data := (*(*[8]byte)(unsafe.Pointer(uintptr(unsafe.Pointer(vc.run)) + uintptr(offset))))[:size]
		for n := uint64(0); n < count; n++ {
			if derr := h.handleTrap(vc, data, int(size)); derr != nil {
				return false, derr
			}
		}
		return true, err
	case kvm.EXITUNKNOWN:
		return true, err
	case kvm.EXITINTR:
		return true, nil
	default:
		if err != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: %d", kvm.ErrorUnexpectedEXITReason, vc.run.ExitReason)
	}
}

// handleTrap decodes the little-endian value the guest OUT carried and
// routes it through the vCPU's Dispatcher, mirroring
// microbios_io_handler's bytes==4 vs bytes==1/2 split.
//
// *inth.NotImplemented is the protocol's documented recoverable
// outcome (spec §7: CF=1 with a diagnostic, no abort) — CF and the
// diagnostic are already applied before it's returned, so it's logged
// and swallowed here rather than propagated. Any other error (a
// genuine Fatal condition: mono aperture, chain-4 addressing, an
// unrecognized async command) aborts the run loop.
func (h *HostContext) handleTrap(vc *vcpuTrap, data []byte, size int) error {
	var val uint32
	for i := 0; i < size && i < len(data); i++ {
		val |= uint32(data[i]) << (8 * i)
	}

	err := vc.disp.HandlePortWrite(val, size)
	if err == nil {
		return nil
	}

	var ni *inth.NotImplemented
	if errors.As(err, &ni) {
		log.Printf("hostctx: trap port dispatch: %v (non-fatal, vCPU continues)", err)
		return nil
	}

	log.Printf("hostctx: trap port dispatch: %v", err)
	return err
}
