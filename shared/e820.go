package shared

import "errors"

// E820EntrySize is the on-the-wire size of one E820 entry: addr(8) +
// size(8) + type(4).
const E820EntrySize = 20

// E820 entry types.
const (
	E820TypeFree     = 1
	E820TypeReserved = 2
)

// E820Entry mirrors the guest-visible {addr,size,type} record.
type E820Entry struct {
	Addr uint64
	Size uint64
	Type uint32
}

// ErrE820Continuation is returned when an E820 walk continuation index
// is out of range.
var ErrE820Continuation = errors.New("shared: e820 continuation out of range")

// E820 is an accessor over the E820 header + table at E820InfoBlock.
// The header is {n_entries:u16, stride:u16} followed by n_entries
// 20-byte records.
type E820 struct {
	mem *GuestMem
}

func NewE820(mem *GuestMem) *E820 {
	return &E820{mem: mem}
}

func (e *E820) headerAddr() uint64 { return E820InfoBlock }
func (e *E820) entryAddr(i int) uint64 {
	return E820InfoBlock + 4 + uint64(i)*E820EntrySize
}

// WriteTable writes entries into the guest E820 block, including the
// {n_entries, stride=20} header.
func (e *E820) WriteTable(entries []E820Entry) error {
	if err := e.mem.PutU16(e.headerAddr(), uint16(len(entries))); err != nil {
		return err
	}
	if err := e.mem.PutU16(e.headerAddr()+2, E820EntrySize); err != nil {
		return err
	}
	for i, ent := range entries {
		addr := e.entryAddr(i)
		if err := e.mem.PutU64(addr, ent.Addr); err != nil {
			return err
		}
		if err := e.mem.PutU64(addr+8, ent.Size); err != nil {
			return err
		}
		if err := e.mem.PutU32(addr+16, ent.Type); err != nil {
			return err
		}
	}
	return nil
}

// NEntries returns the entry count from the guest header.
func (e *E820) NEntries() (int, error) {
	n, err := e.mem.U16(e.headerAddr())
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// EntryAt reads entry index i from the guest E820 table and returns it
// (used by the E820 walk handler, which copies the caller-chosen entry
// to a guest-supplied ES:DI buffer).
func (e *E820) EntryAt(i int) (E820Entry, error) {
	n, err := e.NEntries()
	if err != nil {
		return E820Entry{}, err
	}
	if i < 0 || i >= n {
		return E820Entry{}, ErrE820Continuation
	}
	addr := e.entryAddr(i)
	a, err := e.mem.U64(addr)
	if err != nil {
		return E820Entry{}, err
	}
	sz, err := e.mem.U64(addr + 8)
	if err != nil {
		return E820Entry{}, err
	}
	ty, err := e.mem.U32(addr + 16)
	if err != nil {
		return E820Entry{}, err
	}
	return E820Entry{Addr: a, Size: sz, Type: ty}, nil
}

// WriteEntryTo serializes entry into a 20-byte guest buffer at dst
// (used to write the walk-result entry at the guest's ES:DI buffer).
func (e *E820) WriteEntryTo(dst uint64, entry E820Entry) error {
	if err := e.mem.PutU64(dst, entry.Addr); err != nil {
		return err
	}
	if err := e.mem.PutU64(dst+8, entry.Size); err != nil {
		return err
	}
	return e.mem.PutU32(dst+16, entry.Type)
}

// BuildDefault constructs the canonical 4-entry E820 map described by
// the SETUP command, given the total low-memory size in bytes.
func BuildDefault(lowmem uint64) []E820Entry {
	return []E820Entry{
		{Addr: 0x00000, Size: 0x00500, Type: E820TypeReserved},
		{Addr: 0x00500, Size: 0xA0000 - 0x500, Type: E820TypeFree},
		{Addr: 0xA0000, Size: 0x60000, Type: E820TypeReserved},
		{Addr: 0x100000, Size: lowmem - 0x100000, Type: E820TypeFree},
	}
}
