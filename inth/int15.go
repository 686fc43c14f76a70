package inth

import (
	"fmt"
	"log"
	"time"
)

// int15_gdt record size and field offsets, per microbios.h: seg(u16),
// paddr(u32), rsvd(u16) = 8 bytes.
const int15GDTEntrySize = 8

// dispatchInt15 implements the INT 15h (system services) subfunctions
// this core supports, mirroring handle_int15 in
// original_source/bios/bhyve/microbios.c.
func (c *Context) dispatchInt15() error {
	r, err := c.loadRegs()
	if err != nil {
		return err
	}

	switch hiByte(r.eax) {
	case 0x00:
		// byte-swapped return system config params: unsupported.
		r.eax = 0x8600 | (r.eax & 0xFFFF00FF)
		setCF(&r)

	case 0x24:
		c.int15A20(&r)

	case 0x41:
		setCF(&r)

	case 0x53:
		int15APM(&r)

	case 0x86:
		int15WaitUsecs(&r)

	case 0x87:
		c.int15MoveBlock(&r)

	case 0x88:
		// report 8MiB contiguous above 1MiB available.
		clearCF(&r)
		r.eax = 8 * 1024

	case 0x8A:
		c.int15ExtMemSizeKB(&r)

	case 0xC0:
		c.int15SysConfig(&r)

	case 0xE8:
		c.int15E820(&r)

	case 0xEC:
		if loByte(r.eax) == 0 && loByte(r.ebx) <= 3 {
			clearCF(&r)
		} else {
			setCF(&r)
		}
		r.eax &= 0xFFFF00FF

	default:
		log.Print(c.diagnose(fmt.Sprintf("inth: unhandled INT15 AH=%#x", hiByte(r.eax))))
		setCF(&r)
	}

	return c.storeRegs(r)
}

func (c *Context) int15A20(r *regs) {
	switch loByte(r.eax) {
	case 0x00: // disable
		c.a20Enabled = false
		r.eax &^= 0x000000FF
	case 0x01: // enable
		c.a20Enabled = true
		r.eax &^= 0x000000FF
	case 0x02: // get status
		v := uint32(0)
		if c.a20Enabled {
			v = 1
		}
		r.eax = (r.eax & 0xFFFF0000) | v
	case 0x03: // query support
		r.eax &= 0xFFFF0000
		r.ebx = (r.ebx & 0xFFFF0000) | 0x03
	}
	clearCF(r)
}

func int15APM(r *regs) {
	switch loByte(r.eax) {
	case 0x00: // installation check: APM not present
		setCF(r)
		r.eax = 0x8600 | (r.eax & 0xFFFF00FF)
	case 0x04: // interface disconnect: not connected
		setCF(r)
		r.eax = (r.eax & 0xFFFF0000) | 0x03
	}
}

// int15WaitUsecs blocks the calling vCPU for CX:DX microseconds,
// capped at 2 seconds, mirroring handle_int15's case 0x86 exactly:
// usecs = (ECX<<16)+EDX, clamp to 2,000,000, only sleep past the
// 50,000 threshold (sub-50ms waits aren't worth a host sleep).
func int15WaitUsecs(r *regs) {
	usecs := (r.ecx << 16) + r.edx
	if usecs > 2000000 {
		usecs = 2000000
	}
	if usecs > 50000 {
		time.Sleep(time.Duration(usecs) * time.Microsecond)
	}
	r.eax &^= 0x000000FF
	clearCF(r)
}

func (c *Context) int15MoveBlock(r *regs) {
	gdtAddr := uint64(r.es)<<4 + uint64(r.esi&0xFFFF)
	gdt, err := c.Mem.Slice(gdtAddr, int15GDTEntrySize*6)
	if err != nil {
		setCF(r)
		return
	}
	srcOff := 2 * int15GDTEntrySize
	dstOff := 3 * int15GDTEntrySize
	srcPAddr := uint64(le32(gdt, srcOff+2) & 0xFFFFFF)
	dstPAddr := uint64(le32(gdt, dstOff+2) & 0xFFFFFF)

	length := uint64(r.ecx & 0xFFFF)
	src, err := c.Mem.Slice(srcPAddr, length)
	if err != nil {
		setCF(r)
		return
	}
	dst, err := c.Mem.Slice(dstPAddr, length)
	if err != nil {
		setCF(r)
		return
	}
	copy(dst, src)

	r.eax &^= 0x000000FF
	clearCF(r)
}

func (c *Context) int15ExtMemSizeKB(r *regs) {
	total := c.Mem.Size()
	extKB := uint32(0)
	if total > 1024*1024 {
		extKB = uint32((total - 1024*1024) / 1024)
	}
	r.eax = extKB & 0xFFFF
	r.edx = (extKB >> 16) & 0xFFFF
	setCF(r)
}

func (c *Context) int15SysConfig(r *regs) {
	clearCF(r)
	r.eax &= 0xFF
	r.es = 0xF000
	off, err := c.BV.ConfigTableOffset()
	if err != nil {
		setCF(r)
		return
	}
	r.ebx = (r.ebx & 0xFFFF0000) | uint32(off)
}

func (c *Context) int15E820(r *regs) {
	if loByte(r.eax) == 0x01 {
		total := c.Mem.Size()
		r.eax = 0x3C00
		r.ecx = (r.ecx & 0xFFFF0000) | 0x3C00
		sizeKB := (total - 16*1024) / 64
		r.ebx = (r.ebx & 0xFFFF0000) | (uint32(sizeKB) & 0xFFFF)
		r.edx = (r.edx & 0xFFFF0000) | (r.ebx & 0xFFFF)
		clearCF(r)
		return
	}

	n, err := c.E820.NEntries()
	if err != nil || loByte(r.eax) != 0x20 || r.edx != 0x534D4150 ||
		(r.ecx&0xFFFF) < 20 || int(r.ebx&0xFFFF) >= n {
		log.Print(c.diagnose(fmt.Sprintf("inth: INT15-E820 invalid request eax=%#x edx=%#x ecx=%#x ebx=%#x", r.eax, r.edx, r.ecx, r.ebx)))
		r.eax &= 0xFFFF0000
		setCF(r)
		return
	}

	continuation := int(r.ebx & 0xFFFF)
	entry, err := c.E820.EntryAt(continuation)
	if err != nil {
		r.eax &= 0xFFFF0000
		setCF(r)
		return
	}

	gbufAddr := uint64(r.es&0xFFFF)<<4 + uint64(r.edi&0xFFFF)
	if err := c.E820.WriteEntryTo(gbufAddr, entry); err != nil {
		r.eax &= 0xFFFF0000
		setCF(r)
		return
	}

	clearCF(r)
	r.ebx = uint32((continuation + 1) % n)
	r.eax = 0x534D4150
	r.ecx = 20
	r.edx = 0
}
