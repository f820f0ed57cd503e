package norflash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gentam/norflash/flashtest"
)

func erases(chip *flashtest.Chip) []flashtest.Txn {
	var e []flashtest.Txn
	for _, txn := range chip.Transactions() {
		switch txn.Cmd {
		case flashCmdErase4KB, flashCmdErase32KB, flashCmdEraseSecurity, flashCmdEraseChip:
			e = append(e, txn)
		}
	}
	return e
}

func TestEraseSector(t *testing.T) {
	f, chip := newTestFlash(t)
	mem := chip.Mem()
	for i := range mem {
		mem[i] = 0
	}

	if err := f.EraseSector(3); err != nil {
		t.Fatalf("EraseSector(3) error = %v", err)
	}
	e := erases(chip)
	if len(e) != 1 || e[0].Cmd != flashCmdErase4KB || e[0].Addr != 0x003000 {
		t.Errorf("erase transactions = %+v", e)
	}
	if !bytes.Equal(mem[0x3000:0x4000], bytes.Repeat([]byte{0xFF}, 4096)) {
		t.Error("sector 3 not erased")
	}
	if mem[0x2FFF] != 0 || mem[0x4000] != 0 {
		t.Error("erase leaked into neighbouring sectors")
	}

	// a full page of arbitrary content always fits an erased sector
	for page := uint32(0x3000); page < 0x4000; page += 256 {
		if err := f.Write(Main, page, pattern(256, uint64(page))); err != nil {
			t.Errorf("Write(0x%X) after erase = %v", page, err)
		}
	}
	checkViolations(t, chip)
}

func TestEraseSector_Widened(t *testing.T) {
	chip := flashtest.New(flashtest.DefaultConfig)
	f := New(chip) // 64 MiB geometry, 16384 sectors

	if err := f.EraseSector(0x123); err != nil {
		t.Fatal(err)
	}
	e := erases(chip)
	if len(e) != 1 || e[0].Addr != 0x123000 {
		t.Errorf("erase transactions = %+v, want one at 0x123000", e)
	}
	if err := f.EraseSector(16384); !errors.Is(err, ErrSectorOutOfRange) {
		t.Errorf("EraseSector(16384) = %v, want %v", err, ErrSectorOutOfRange)
	}
}

func TestEraseSecuritySector(t *testing.T) {
	f, chip := newTestFlash(t)
	sec := chip.SecurityMem()
	for i := range sec {
		sec[i] = 0
	}

	for _, index := range []uint32{0, 1, 15} {
		chip.Reset()
		if err := f.EraseSecuritySector(index); err != nil {
			t.Fatalf("EraseSecuritySector(%d) error = %v", index, err)
		}
		e := erases(chip)
		if len(e) != 1 || e[0].Cmd != flashCmdEraseSecurity || e[0].Addr != index<<12 {
			t.Errorf("EraseSecuritySector(%d) transactions = %+v", index, e)
		}
		base := index * 4096
		if !bytes.Equal(sec[base:base+256], bytes.Repeat([]byte{0xFF}, 256)) {
			t.Errorf("security register %d not erased", index)
		}
		if sec[base+256] != 0 {
			t.Errorf("erase of security register %d ran past 256 bytes", index)
		}
	}

	chip.Reset()
	if err := f.EraseSecuritySector(16); !errors.Is(err, ErrSectorOutOfRange) {
		t.Errorf("EraseSecuritySector(16) = %v, want %v", err, ErrSectorOutOfRange)
	}
	if n := chip.Selects(); n != 0 {
		t.Errorf("got %d bus transactions, want 0", n)
	}
	checkViolations(t, chip)
}

func TestEraseChip(t *testing.T) {
	f, chip := newTestFlash(t)
	if err := f.FastWrite(Main, 0, pattern(8192, 9)); err != nil {
		t.Fatal(err)
	}
	if err := f.EraseChip(); err != nil {
		t.Fatalf("EraseChip() error = %v", err)
	}
	if err := f.BusyWait(0); err != nil {
		t.Fatalf("BusyWait() error = %v", err)
	}
	if !bytes.Equal(chip.Mem(), bytes.Repeat([]byte{0xFF}, len(chip.Mem()))) {
		t.Error("chip not erased")
	}
	checkViolations(t, chip)
}

func TestErase_Range(t *testing.T) {
	f, chip := newTestFlash(t)
	mem := chip.Mem()
	for i := range mem {
		mem[i] = 0
	}

	// 0x0100..0xA0FF rounds out to sectors 0..10: one 32 KiB block, then 4 KiB sectors
	if err := f.Erase(0x0100, 0xA000); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	var got [][2]uint32
	for _, e := range erases(chip) {
		got = append(got, [2]uint32{uint32(e.Cmd), e.Addr})
	}
	want := [][2]uint32{
		{flashCmdErase32KB, 0x0000},
		{flashCmdErase4KB, 0x8000},
		{flashCmdErase4KB, 0x9000},
		{flashCmdErase4KB, 0xA000},
	}
	if len(got) != len(want) {
		t.Fatalf("erases = %X, want %X", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("erase %d = %X, want %X", i, got[i], want[i])
		}
	}
	if !bytes.Equal(mem[:0xB000], bytes.Repeat([]byte{0xFF}, 0xB000)) {
		t.Error("range not erased")
	}
	if mem[0xB000] != 0 {
		t.Error("erase ran past the range")
	}

	if err := f.Erase(f.Capacity()-4096, 4097); !errors.Is(err, ErrSizeOutOfRange) {
		t.Errorf("Erase() into scratch = %v, want %v", err, ErrSizeOutOfRange)
	}
	checkViolations(t, chip)
}

func TestErase_EndPastAddressSpace(t *testing.T) {
	f, chip := newTestFlash(t)
	for _, tt := range []struct{ addr, size uint32 }{
		{0x1000, 0xFFFFFFFF},
		{0, 0xFFFFF001},
		{0xF000, 0xFFFF1000},
	} {
		if err := f.Erase(tt.addr, tt.size); !errors.Is(err, ErrSizeOutOfRange) {
			t.Errorf("Erase(0x%X, 0x%X) = %v, want %v", tt.addr, tt.size, err, ErrSizeOutOfRange)
		}
	}
	if n := chip.Selects(); n != 0 {
		t.Errorf("%d selects, want none", n)
	}
}
