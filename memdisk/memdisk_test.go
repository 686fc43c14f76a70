package memdisk_test

import (
	"os"
	"path/filepath"
	"testing"

	"microbios/memdisk"
)

func writeTempImage(t *testing.T, name string, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCreateSectorSizeBySuffix(t *testing.T) {
	s := memdisk.NewStore()

	isoPath := writeTempImage(t, "disk.iso", 4096)
	unit, err := s.Create(isoPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sz, _ := s.SectorSize(unit)
	if sz != 2048 {
		t.Errorf("iso sector size = %d, want 2048", sz)
	}

	imgPath := writeTempImage(t, "disk.img", 4096)
	unit2, err := s.Create(imgPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sz2, _ := s.SectorSize(unit2)
	if sz2 != 512 {
		t.Errorf("img sector size = %d, want 512", sz2)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	s := memdisk.NewStore()
	path := writeTempImage(t, "disk.img", 16*1024)
	unit, err := s.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	buf := []byte("0123456789abcdef")
	// pad to a sector multiple
	payload := make([]byte, 512)
	copy(payload, buf)

	if err := s.Write(unit, 512, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := make([]byte, 512)
	if err := s.Read(unit, 512, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(out[:len(buf)]) != string(buf) {
		t.Errorf("round trip mismatch: got %q", out[:len(buf)])
	}
}

func TestReadWriteRangeErrors(t *testing.T) {
	s := memdisk.NewStore()
	path := writeTempImage(t, "disk.img", 1024)
	unit, _ := s.Create(path)

	cases := []struct {
		name   string
		offset int64
		length int
	}{
		{"unaligned length", 0, 100},
		{"past end", 1024, 512},
		{"straddles end", 600, 512},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := make([]byte, c.length)
			if err := s.Write(unit, c.offset, buf); err != memdisk.ErrRange {
				t.Errorf("Write(%d,%d) = %v, want ErrRange", c.offset, c.length, err)
			}
		})
	}
}

func TestCHSFloppyClamp(t *testing.T) {
	s := memdisk.NewStore()
	path := writeTempImage(t, "floppy.img", 1440*1024)
	unit, _ := s.Create(path)
	chs, err := s.CHS(unit)
	if err != nil {
		t.Fatalf("CHS: %v", err)
	}
	if chs.Heads != 2 || chs.SectorsPT != 18 {
		t.Errorf("floppy CHS = %+v, want heads=2 secpt=18", chs)
	}
}

func TestCHSFixedDisk(t *testing.T) {
	s := memdisk.NewStore()
	path := writeTempImage(t, "fixed.img", 16*1024*1024)
	unit, _ := s.Create(path)
	chs, err := s.CHS(unit)
	if err != nil {
		t.Fatalf("CHS: %v", err)
	}
	if chs.Heads != 16 || chs.SectorsPT != 63 {
		t.Errorf("fixed CHS = %+v, want heads=16 secpt=63", chs)
	}
}

func TestChsToLBARoundTrip(t *testing.T) {
	s := memdisk.NewStore()
	path := writeTempImage(t, "fixed.img", 16*1024*1024)
	unit, _ := s.Create(path)

	lba, err := s.ChsToLBA(unit, 0, 0, 1)
	if err != nil {
		t.Fatalf("ChsToLBA: %v", err)
	}
	if lba != 0 {
		t.Errorf("ChsToLBA(0,0,1) = %d, want 0", lba)
	}

	lba2, err := s.ChsToLBA(unit, 0, 0, 2)
	if err != nil {
		t.Fatalf("ChsToLBA: %v", err)
	}
	if lba2 != 1 {
		t.Errorf("ChsToLBA(0,0,2) = %d, want 1", lba2)
	}
}

func TestFullTable(t *testing.T) {
	s := memdisk.NewStore()
	path := writeTempImage(t, "disk.img", 512)
	for i := 0; i < memdisk.MaxDisks; i++ {
		if _, err := s.Create(path); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if _, err := s.Create(path); err != memdisk.ErrFull {
		t.Errorf("Create past capacity = %v, want ErrFull", err)
	}
}
