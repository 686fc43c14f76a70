package vga

// MemRead services a guest load from the VGA aperture, of width 1, 2,
// 4, or 8 bytes, assembled little-endian from successive ReadByte
// calls (mirroring the original's byte-at-a-time vga_mem_handler loop).
func (c *Controller) MemRead(addr uint64, size int) uint64 {
	var val uint64
	for i := 0; i < size; i++ {
		b := c.planes.ReadByte(&c.GC, addr+uint64(i))
		val |= uint64(b) << (8 * i)
	}
	return val
}

// MemWrite services a guest store into the VGA aperture, of width 1,
// 2, 4, or 8 bytes, applied byte-at-a-time.
func (c *Controller) MemWrite(addr uint64, size int, val uint64) {
	for i := 0; i < size; i++ {
		c.planes.WriteByte(&c.Seq, &c.GC, addr+uint64(i), uint8(val>>(8*i)))
	}
}

// TextRAM returns the raw color-text aperture backing store, for the
// text console tap (C7) to read and for direct character writes.
func (c *Controller) TextRAM() []byte { return c.textRAM[:] }
