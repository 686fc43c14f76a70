package inth

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// diagnose decodes the guest instruction at CS:IP for the log line an
// unhandled vector or subfunction emits, so the host operator sees the
// actual faulting opcode rather than just a hex vector number.
func (c *Context) diagnose(label string) string {
	g, err := c.VCPU.GetGPRs()
	if err != nil {
		return label
	}
	s, err := c.VCPU.GetSregs()
	if err != nil {
		return label
	}
	ip := uint32(g.RIP & 0xFFFF)
	addr := uint64(s.CS)<<4 + uint64(ip)

	buf, err := c.Mem.ReadAt(addr, 15) // longest possible x86 instruction
	if err != nil {
		return fmt.Sprintf("%s (CS:IP=%04x:%04x)", label, s.CS, ip)
	}
	inst, err := x86asm.Decode(buf, 16)
	if err != nil {
		return fmt.Sprintf("%s (CS:IP=%04x:%04x, decode failed: %v)", label, s.CS, ip, err)
	}
	return fmt.Sprintf("%s (CS:IP=%04x:%04x: %s)", label, s.CS, ip, x86asm.GNUSyntax(inst, addr, nil))
}
