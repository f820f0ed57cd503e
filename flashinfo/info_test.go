package flashinfo

import (
	"bytes"
	"testing"

	"github.com/gentam/norflash"
	"github.com/gentam/norflash/flashtest"
)

func newFlash(t *testing.T) (*norflash.Flash, *flashtest.Chip) {
	t.Helper()
	chip := flashtest.New(flashtest.DefaultConfig)
	f := norflash.New(chip, norflash.WithGeometry(norflash.Geometry{
		PageSize:             256,
		SectorSize:           4096,
		Size:                 uint32(flashtest.DefaultConfig.Size),
		ReservedSectors:      1,
		SecurityRegisterSize: uint32(flashtest.DefaultConfig.SecurityRegisterSize),
	}))
	return f, chip
}

func TestMarshalBinary(t *testing.T) {
	info := Info{
		IsNewFlash: 1,
		ChkBackup:  0xA5,
		ChkNew:     0x5A,
		LenBackup:  0x00012345,
		LenNew:     0x0000BEEF,
	}
	got, err := info.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x01, 0xA5, 0x5A, 0xFF,
		0x45, 0x23, 0x01, 0x00,
		0xEF, 0xBE, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("MarshalBinary() = % X, want % X", got, want)
	}

	var back Info
	if err := back.UnmarshalBinary(got); err != nil {
		t.Fatal(err)
	}
	if back != info {
		t.Errorf("UnmarshalBinary() = %+v, want %+v", back, info)
	}
}

func TestUnmarshalBinary_Short(t *testing.T) {
	var info Info
	if err := info.UnmarshalBinary(make([]byte, Size-1)); err == nil {
		t.Error("UnmarshalBinary() of a short record succeeded")
	}
}

func TestLoad_Erased(t *testing.T) {
	f, _ := newFlash(t)
	info, err := Load(f, DefaultOffset)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Erased() {
		t.Errorf("Load() on an erased chip = %+v", info)
	}
}

func TestStore(t *testing.T) {
	f, chip := newFlash(t)
	sec := chip.SecurityMem()
	sec[DefaultOffset+Size+4] = 0x12 // unrelated data in the same register

	tests := []Info{
		{IsNewFlash: 1, ChkBackup: 0x10, ChkNew: 0x20, LenBackup: 4096, LenNew: 8192},
		// sets bits cleared by the first store
		{IsNewFlash: 0, ChkBackup: 0xEF, ChkNew: 0x20, LenBackup: 70000, LenNew: 0},
	}
	for _, want := range tests {
		if err := Store(f, DefaultOffset, want); err != nil {
			t.Fatalf("Store(%+v) error = %v", want, err)
		}
		got, err := Load(f, DefaultOffset)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Load() = %+v, want %+v", got, want)
		}
	}

	if sec[DefaultOffset+Size+4] != 0x12 {
		t.Error("Store() clobbered the rest of the register")
	}
	if v := chip.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
}
