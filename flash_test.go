package norflash

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gentam/norflash/flashtest"
)

func TestCapacity(t *testing.T) {
	f := New(flashtest.New(flashtest.DefaultConfig))
	if got := f.PageSize(); got != 256 {
		t.Errorf("PageSize() = %d, want 256", got)
	}
	if got := f.SectorSize(); got != 4096 {
		t.Errorf("SectorSize() = %d, want 4096", got)
	}
	if got := f.Capacity(); got != 67104768 {
		t.Errorf("Capacity() = %d, want 67104768", got)
	}
}

func TestReadID(t *testing.T) {
	cfg := flashtest.DefaultConfig
	cfg.ID = flashIDWinbondW25Q128
	f := New(flashtest.New(cfg), WithGeometry(testGeometry))

	id, name, err := f.ReadID()
	if err != nil {
		t.Fatalf("ReadID() error = %v", err)
	}
	if id != flashIDWinbondW25Q128 {
		t.Errorf("ReadID() id = %X, want %X", id, flashIDWinbondW25Q128)
	}
	if name != "Winbond W25Q 128Mb" {
		t.Errorf("ReadID() name = %q", name)
	}
	if got := f.Geometry().Size; got != 16<<20 {
		t.Errorf("Geometry().Size = %d, want %d", got, 16<<20)
	}
	if got := f.tPP(); got != 3*time.Millisecond {
		t.Errorf("tPP() = %v, want 3ms", got)
	}
}

func TestReadID_Unknown(t *testing.T) {
	cfg := flashtest.DefaultConfig
	cfg.ID = [3]byte{0x01, 0x02, 0x03}
	f := New(flashtest.New(cfg), WithGeometry(testGeometry))

	_, name, err := f.ReadID()
	if err != nil {
		t.Fatalf("ReadID() error = %v", err)
	}
	if name != "" {
		t.Errorf("ReadID() name = %q, want empty", name)
	}
	if f.Geometry() != testGeometry {
		t.Errorf("geometry changed for unknown chip: %+v", f.Geometry())
	}
	if got := f.tEraseChip(); got != 1000*time.Second {
		t.Errorf("tEraseChip() = %v, want the largest known", got)
	}
}

func TestReadStatusRegister(t *testing.T) {
	f, chip := newTestFlash(t)
	chip.Stuck = true
	sr, err := f.ReadStatusRegister()
	if err != nil {
		t.Fatal(err)
	}
	if !sr.Busy() || sr.WriteEnabled() {
		t.Errorf("status = %s, want BUSY only", sr)
	}

	// every status read is its own instruction: opcode plus one dummy byte
	txns := chip.Transactions()
	if len(txns) != 1 || txns[0].Cmd != flashCmdReadStatusRegister || txns[0].Len != 2 {
		t.Errorf("transactions = %+v", txns)
	}
}

func TestStatusRegisterString(t *testing.T) {
	tests := []struct {
		sr   StatusRegister
		want string
	}{
		{0x00, "00000000"},
		{0x01, "00000001 BUSY"},
		{0x03, "00000011 WEL,BUSY"},
		{0x9C, "10011100 SRP,BP2,BP1,BP0"},
	}
	for _, tc := range tests {
		if got := tc.sr.String(); got != tc.want {
			t.Errorf("StatusRegister(0x%02X).String() = %q, want %q", byte(tc.sr), got, tc.want)
		}
	}
}

func TestBusyTimeout(t *testing.T) {
	f, chip := newTestFlash(t, WithTimeout(5*time.Millisecond))
	chip.Stuck = true

	buf := make([]byte, 4)
	if err := f.Read(Main, 0, buf); !errors.Is(err, ErrHardwareTimeout) {
		t.Errorf("Read() on a stuck chip = %v, want %v", err, ErrHardwareTimeout)
	}
	if err := f.Write(Main, 0, buf); !errors.Is(err, ErrHardwareTimeout) {
		t.Errorf("Write() on a stuck chip = %v, want %v", err, ErrHardwareTimeout)
	}
	if err := f.EraseChip(); !errors.Is(err, ErrHardwareTimeout) {
		t.Errorf("EraseChip() on a stuck chip = %v, want %v", err, ErrHardwareTimeout)
	}
	if chip.Selected() {
		t.Error("chip left selected")
	}
}

func TestWriteEnableTimeout(t *testing.T) {
	f, chip := newTestFlash(t, WithTimeout(5*time.Millisecond), WithPollInterval(time.Millisecond))
	chip.NoWEL = true

	if err := f.FastWrite(Main, 0, []byte{0}); !errors.Is(err, ErrHardwareTimeout) {
		t.Errorf("FastWrite() = %v, want %v", err, ErrHardwareTimeout)
	}
	if n := len(chip.Programs()); n != 0 {
		t.Errorf("got %d program instructions after failed write enable", n)
	}
}

func TestBusErrorReleasesChipSelect(t *testing.T) {
	boom := errors.New("usb gone")
	for _, bus := range []func(*flashtest.Chip) Bus{
		func(c *flashtest.Chip) Bus { return c },
		func(c *flashtest.Chip) Bus { return flashtest.Batched{Chip: c} },
	} {
		chip := flashtest.New(flashtest.DefaultConfig)
		f := New(bus(chip), WithGeometry(testGeometry))
		chip.Err = boom

		if err := f.Read(Main, 0, make([]byte, 8)); !errors.Is(err, boom) {
			t.Errorf("Read() = %v, want %v", err, boom)
		}
		if chip.Selected() {
			t.Error("chip left selected after bus error")
		}
	}
}

func TestRead_SecurityDummyByte(t *testing.T) {
	f, chip := newTestFlash(t)
	copy(chip.SecurityMem()[0x10:], []byte{1, 2, 3, 4})
	copy(chip.Mem()[0x10:], []byte{5, 6, 7, 8})

	buf := make([]byte, 4)
	if err := f.Read(Security, 0x10, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Errorf("security read = % X", buf)
	}
	if err := f.Read(Main, 0x10, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{5, 6, 7, 8}) {
		t.Errorf("main read = % X", buf)
	}

	var reads []flashtest.Txn
	for _, txn := range chip.Transactions() {
		if txn.Cmd != flashCmdReadStatusRegister {
			reads = append(reads, txn)
		}
	}
	want := []flashtest.Txn{
		{Cmd: flashCmdReadSecurity, Addr: 0x10, Len: 1 + 3 + 1 + 4},
		{Cmd: flashCmdRead, Addr: 0x10, Len: 1 + 3 + 4},
	}
	if len(reads) != len(want) {
		t.Fatalf("read transactions = %+v, want %+v", reads, want)
	}
	for i := range want {
		if reads[i].Cmd != want[i].Cmd || reads[i].Addr != want[i].Addr || reads[i].Len != want[i].Len {
			t.Errorf("read transaction %d = %+v, want %+v", i, reads[i], want[i])
		}
	}
	checkViolations(t, chip)
}

func TestRead_Empty(t *testing.T) {
	f, chip := newTestFlash(t)
	if err := f.Read(Main, f.Capacity(), nil); err != nil {
		t.Errorf("Read() of zero bytes at the end = %v", err)
	}
	if n := chip.Selects(); n != 0 {
		t.Errorf("got %d bus transactions, want 0", n)
	}
}

func TestPowerUpDown(t *testing.T) {
	f, chip := newTestFlash(t)
	if err := f.PowerDown(); err != nil {
		t.Fatal(err)
	}
	if err := f.PowerUp(); err != nil {
		t.Fatal(err)
	}
	txns := chip.Transactions()
	if len(txns) != 2 || txns[0].Cmd != flashCmdPowerDown || txns[1].Cmd != flashCmdPowerUp {
		t.Errorf("transactions = %+v", txns)
	}
}
