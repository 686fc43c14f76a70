// Package shared defines the guest-physical-memory layouts (BDA,
// BIOS-VARS, E820 block, command buffer) and GuestMem, the
// bounds-checked capability that replaces raw pointer arithmetic into
// guest memory.
package shared

import (
	"encoding/binary"
	"fmt"
)

// Fixed guest-physical addresses, per the shared layout table.
const (
	BiosDataAreaAddr = 0x400
	BiosVarsAddr     = 0xF5000
	E820InfoBlock    = 0xF5500
	BiosCmdsAddr     = 0xF6000

	// BiosIOPort is the default trap I/O port.
	BiosIOPort = 0x100
)

// ErrOutOfRange is returned by GuestMem accessors when an address range
// falls outside the backing memory.
type ErrOutOfRange struct {
	Addr, Len uint64
	Size      uint64
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("shared: guest access [%#x, %#x) out of range (mem size %#x)", e.Addr, e.Addr+e.Len, e.Size)
}

// GuestMem is a non-owning, bounds-checked view over guest physical
// memory. It centralizes the range checks that the original C
// implementation performed (if at all) via raw pointer arithmetic.
type GuestMem struct {
	mem []byte
}

// NewGuestMem wraps mem (typically an mmap'd VM memory region) as a
// GuestMem capability. GuestMem does not own mem's lifetime.
func NewGuestMem(mem []byte) *GuestMem {
	return &GuestMem{mem: mem}
}

// Slice returns a read-write view of mem[addr:addr+length], bounds
// checked.
func (g *GuestMem) Slice(addr, length uint64) ([]byte, error) {
	if addr+length > uint64(len(g.mem)) || addr+length < addr {
		return nil, &ErrOutOfRange{Addr: addr, Len: length, Size: uint64(len(g.mem))}
	}
	return g.mem[addr : addr+length], nil
}

// ReadAt copies length bytes starting at addr into a fresh slice.
func (g *GuestMem) ReadAt(addr, length uint64) ([]byte, error) {
	s, err := g.Slice(addr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, s)
	return out, nil
}

// WriteAt copies data into guest memory starting at addr.
func (g *GuestMem) WriteAt(addr uint64, data []byte) error {
	s, err := g.Slice(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(s, data)
	return nil
}

// U8/U16/U32/U64 read little-endian scalars from guest memory.

func (g *GuestMem) U8(addr uint64) (uint8, error) {
	s, err := g.Slice(addr, 1)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

func (g *GuestMem) U16(addr uint64) (uint16, error) {
	s, err := g.Slice(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s), nil
}

func (g *GuestMem) U32(addr uint64) (uint32, error) {
	s, err := g.Slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

func (g *GuestMem) U64(addr uint64) (uint64, error) {
	s, err := g.Slice(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s), nil
}

func (g *GuestMem) PutU8(addr uint64, v uint8) error {
	s, err := g.Slice(addr, 1)
	if err != nil {
		return err
	}
	s[0] = v
	return nil
}

func (g *GuestMem) PutU16(addr uint64, v uint16) error {
	s, err := g.Slice(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s, v)
	return nil
}

func (g *GuestMem) PutU32(addr uint64, v uint32) error {
	s, err := g.Slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s, v)
	return nil
}

func (g *GuestMem) PutU64(addr uint64, v uint64) error {
	s, err := g.Slice(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s, v)
	return nil
}

// Size returns the total guest memory size backing this view.
func (g *GuestMem) Size() uint64 {
	return uint64(len(g.mem))
}
