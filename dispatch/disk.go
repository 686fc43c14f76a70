package dispatch

import "microbios/shared"

// cmdDiskParams answers the guest's DISK_PARAMS query: unit geometry
// and size, per microbios_disk_params. EINVAL (22) mirrors the
// original's error code for an invalid/out-of-range unit, since the
// results field is the guest's only signal.
func (d *Dispatcher) cmdDiskParams() error {
	const einval = 22

	diskArg, err := d.Cmd.ArgsU32(0)
	if err != nil {
		return err
	}
	unit := int(diskArg & 0x7F)
	if diskArg < 0x80 || unit >= d.Disks.NumDisks() {
		return d.Cmd.SetResults(einval)
	}

	geo, err := d.Disks.CHS(unit)
	if err != nil {
		return d.Cmd.SetResults(einval)
	}
	sectors, err := d.Disks.Sectors(unit)
	if err != nil {
		return d.Cmd.SetResults(einval)
	}
	sectSize, err := d.Disks.SectorSize(unit)
	if err != nil {
		return d.Cmd.SetResults(einval)
	}

	if err := d.Cmd.WriteDiskParams(shared.DiskParams{
		Disk:        uint32(d.Disks.NumDisks()),
		Heads:       uint32(geo.Heads),
		Cylinders:   uint32(geo.Cylinders),
		Sectors:     uint32(geo.SectorsPT),
		DiskSectors: uint64(sectors),
		SectorSize:  uint32(sectSize),
	}); err != nil {
		return err
	}
	return d.Cmd.SetResults(0)
}

// cmdDiskIO performs the DISK_IO transfer: a read or write of
// args.Sectors sectors at args.LBA (or, when LBA is the NoLBA
// sentinel, a CHS-derived LBA) between unit and the guest buffer at
// args.Addr, per microbios_disk_io_cmd.
func (d *Dispatcher) cmdDiskIO() error {
	const eio = 5

	a, err := d.Cmd.ReadDiskIOArgs()
	if err != nil {
		return err
	}
	if a.Disk < 0x80 {
		return d.Cmd.SetResults(1)
	}
	unit := int(a.Disk &^ 0x80)

	lba := a.LBA
	if lba == shared.NoLBA {
		lba64, err := d.Disks.ChsToLBA(unit, uint16(a.Cylinder), uint8(a.Head), uint8(a.Sector))
		if err != nil {
			return d.Cmd.SetResults(eio)
		}
		lba = uint64(lba64)
	}

	sectSize, err := d.Disks.SectorSize(unit)
	if err != nil {
		return d.Cmd.SetResults(eio)
	}
	size := uint64(a.Sectors) * uint64(sectSize)
	buf, err := d.Mem.Slice(a.Addr, size)
	if err != nil {
		return d.Cmd.SetResults(eio)
	}
	offset, err := d.Disks.LBAToOffset(unit, int64(lba))
	if err != nil {
		return d.Cmd.SetResults(eio)
	}

	if a.Direction != 0 {
		err = d.Disks.Write(unit, offset, buf)
	} else {
		err = d.Disks.Read(unit, offset, buf)
	}
	if err != nil {
		return d.Cmd.SetResults(eio)
	}
	return d.Cmd.SetResults(0)
}
