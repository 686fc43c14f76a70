package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pkg/profile"

	"microbios/glyph"
	"microbios/hostctx"
	"microbios/kvm"
)

// memSize covers the conventional 1 MiB real-mode address space the
// ROM stub (C8) runs in; nothing this repo services needs protected-
// mode memory above it.
const memSize = 1 << 20

// romSegment/romOffset are the standard x86 reset vector: CS:IP =
// F000:FFF0, physical 0xFFFF0, the top of the ROM aperture.
const (
	romSegment = 0xF000
	romOffset  = 0xFFF0
)

// Command-line parsing is the external VM-launcher collaborator
// spec.md §1 excludes from this module's scope; main wires a Config
// literal from a handful of environment variables instead of a flag
// package.
func main() {
	cfg := hostctx.Config{
		DiskPaths: diskPaths(),
		Font:      loadFont(os.Getenv("MICROBIOS_FONT")),
	}

	if os.Getenv("MICROBIOS_PROFILE") != "" {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	devKVM, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0o644)
	if err != nil {
		log.Fatalf("/dev/kvm: %v", err)
	}
	kvmFd := devKVM.Fd()

	vmFd, err := kvm.CreateVM(kvmFd)
	if err != nil {
		log.Fatalf("CreateVM: %v", err)
	}
	if err := kvm.SetTSSAddr(vmFd); err != nil {
		log.Fatalf("SetTSSAddr: %v", err)
	}
	if err := kvm.SetIdentityMapAddr(vmFd); err != nil {
		log.Fatalf("SetIdentityMapAddr: %v", err)
	}
	if err := kvm.CreateIRQChip(vmFd); err != nil {
		log.Fatalf("CreateIRQChip: %v", err)
	}
	if err := kvm.CreatePIT2(vmFd); err != nil {
		log.Fatalf("CreatePIT2: %v", err)
	}

	mem, err := syscall.Mmap(-1, 0, memSize,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED|syscall.MAP_ANONYMOUS)
	if err != nil {
		log.Fatalf("mmap guest memory: %v", err)
	}

	if err := kvm.SetUserMemoryRegion(vmFd, &kvm.UserspaceMemoryRegion{
		Slot:          0,
		GuestPhysAddr: 0,
		MemorySize:    memSize,
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
	}); err != nil {
		log.Fatalf("SetUserMemoryRegion: %v", err)
	}

	if romPath := os.Getenv("MICROBIOS_ROM"); romPath != "" {
		if err := loadROM(mem, romPath); err != nil {
			log.Fatalf("loadROM: %v", err)
		}
	}

	nCPUs := 1
	vcpuFds := make([]uintptr, nCPUs)
	for i := range vcpuFds {
		fd, err := kvm.CreateVCPU(vmFd, i)
		if err != nil {
			log.Fatalf("CreateVCPU %d: %v", i, err)
		}
		if err := resetToROM(fd); err != nil {
			log.Fatalf("resetToROM %d: %v", i, err)
		}
		vcpuFds[i] = fd
	}

	poweroff := func() error {
		return devKVM.Close()
	}

	hc, err := hostctx.New(cfg, kvmFd, vcpuFds, mem, poweroff)
	if err != nil {
		log.Fatalf("hostctx.New: %v", err)
	}

	var wg sync.WaitGroup

	for i := range vcpuFds {
		wg.Add(1)

		go func(cpuID int) {
			defer wg.Done()
			fmt.Printf("Start CPU %d of %d\r\n", cpuID, len(vcpuFds))

			if err := hc.RunInfiniteLoop(cpuID); err != nil {
				fmt.Printf("%v\n\r", err)
			}

			fmt.Printf("CPU %d exits\n\r", cpuID)
		}(i)
	}

	fmt.Printf("Waiting for CPUs to exit\r\n")
	wg.Wait()
	fmt.Printf("All cpus done\n\r")
}

// resetToROM points a freshly created vCPU at the standard x86 power-on
// reset vector (F000:FFF0), the way real hardware leaves CS:IP before
// any BIOS code runs.
func resetToROM(vcpuFd uintptr) error {
	sregs, err := kvm.GetSregs(vcpuFd)
	if err != nil {
		return err
	}

	sregs.CS = kvm.Segment{
		Base: romSegment << 4, Limit: 0xFFFF, Selector: romSegment,
		Typ: 0xB, Present: 1, S: 1,
	}

	if err := kvm.SetSregs(vcpuFd, sregs); err != nil {
		return err
	}

	regs, err := kvm.GetRegs(vcpuFd)
	if err != nil {
		return err
	}
	regs.RIP = romOffset
	regs.RFLAGS = 0x2 // reserved bit 1, the post-reset value

	return kvm.SetRegs(vcpuFd, regs)
}

// loadROM copies the 16-bit ROM stub (C8, an external collaborator per
// spec.md §1) into the top of the real-mode aperture, physical
// 0xF0000-0xFFFFF, ending at the reset vector's target address.
func loadROM(mem []byte, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	const romBase = 0xF0000
	const romSize = 0x10000
	if len(data) > romSize {
		return fmt.Errorf("loadROM: %s is %d bytes, want <= %d", path, len(data), romSize)
	}
	copy(mem[romBase:romBase+romSize], data)
	return nil
}

// loadFont reads a raw 256x16 glyph bitmap (the PSF font file loader
// is an external collaborator per spec.md §1 — this only accepts
// already-decoded glyph bytes, not a PSF container). An empty path
// yields a blank font, which is fine for disk/INT13h-only testing.
func loadFont(path string) *glyph.Font {
	var font glyph.Font
	if path == "" {
		return &font
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("loadFont: %v, using blank font", err)
		return &font
	}
	for ch := 0; ch < 256 && (ch+1)*16 <= len(data); ch++ {
		copy(font[ch][:], data[ch*16:(ch+1)*16])
	}
	return &font
}

// diskPaths reads MICROBIOS_DISKS as a colon-separated list, mirroring
// the teacher's single -disk flag generalized to the memdisk store's
// multi-unit table (§4.1).
func diskPaths() []string {
	v := os.Getenv("MICROBIOS_DISKS")
	if v == "" {
		return nil
	}
	return strings.Split(v, ":")
}
