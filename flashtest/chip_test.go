package flashtest

import (
	"strings"
	"testing"
)

// run clocks one instruction and returns the bytes shifted back.
func run(t *testing.T, c *Chip, b ...byte) []byte {
	t.Helper()
	if err := c.Select(); err != nil {
		t.Fatal(err)
	}
	in := make([]byte, len(b))
	for i, v := range b {
		var err error
		if in[i], err = c.Exchange(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Deselect(); err != nil {
		t.Fatal(err)
	}
	return in
}

func TestProgramANDsData(t *testing.T) {
	cfg := DefaultConfig
	cfg.BusyPolls = 0
	c := New(cfg)
	c.Mem()[0x10] = 0xF0

	run(t, c, CmdWriteEnable)
	run(t, c, CmdPageProgram, 0, 0, 0x10, 0x3C)

	if got := c.Mem()[0x10]; got != 0x30 {
		t.Errorf("mem = 0x%02X, want 0x30", got)
	}
	if len(c.Violations()) != 0 {
		t.Errorf("violations = %v", c.Violations())
	}
	if p := c.Programs(); len(p) != 1 || p[0].Addr != 0x10 || len(p[0].Data) != 1 {
		t.Errorf("programs = %+v", p)
	}
}

func TestProgramWithoutWriteEnable(t *testing.T) {
	c := New(DefaultConfig)
	run(t, c, CmdPageProgram, 0, 0, 0, 0x00)

	if c.Mem()[0] != 0xFF {
		t.Error("program without write enable changed memory")
	}
	if v := c.Violations(); len(v) != 1 || !strings.Contains(v[0], "without write enable") {
		t.Errorf("violations = %v", v)
	}
}

func TestProgramWrapsInPage(t *testing.T) {
	cfg := DefaultConfig
	cfg.BusyPolls = 0
	c := New(cfg)

	run(t, c, CmdWriteEnable)
	run(t, c, CmdPageProgram, 0, 0, 0xFF, 0x01, 0x02)

	if c.Mem()[0xFF] != 0x01 || c.Mem()[0x00] != 0x02 || c.Mem()[0x100] != 0xFF {
		t.Errorf("program did not wrap within the page")
	}
	if v := c.Violations(); len(v) != 1 || !strings.Contains(v[0], "crosses a page boundary") {
		t.Errorf("violations = %v", v)
	}
}

func TestBusyIgnoresInstructions(t *testing.T) {
	c := New(DefaultConfig)
	run(t, c, CmdWriteEnable)
	run(t, c, CmdErase4KB, 0, 0x10, 0)

	if sr := run(t, c, CmdReadStatus, 0)[1]; sr&0x01 == 0 {
		t.Errorf("status = 0x%02X, want busy after erase", sr)
	}
	run(t, c, CmdWriteEnable)
	if v := c.Violations(); len(v) != 1 || !strings.Contains(v[0], "while busy") {
		t.Errorf("violations = %v", v)
	}
	run(t, c, CmdReadStatus, 0)
	if sr := run(t, c, CmdReadStatus, 0)[1]; sr != 0 {
		t.Errorf("status = 0x%02X, want idle after %d polls", sr, DefaultConfig.BusyPolls)
	}
}

func TestReadSecurityDummy(t *testing.T) {
	c := New(DefaultConfig)
	copy(c.SecurityMem()[0x1000:], []byte{0xDE, 0xAD})

	in := run(t, c, CmdReadSecurity, 0, 0x10, 0, 0xAA, 0xAA, 0xAA)
	if in[5] != 0xDE || in[6] != 0xAD {
		t.Errorf("security read = % X", in)
	}
}

func TestReadID(t *testing.T) {
	c := New(DefaultConfig)
	in := run(t, c, CmdReadID, 0, 0, 0)
	if [3]byte(in[1:]) != DefaultConfig.ID {
		t.Errorf("id = % X", in[1:])
	}
}

func TestSelectTwice(t *testing.T) {
	c := New(DefaultConfig)
	c.Select()
	c.Select()
	if v := c.Violations(); len(v) != 1 {
		t.Errorf("violations = %v", v)
	}
}

func TestEraseSecurityRegister(t *testing.T) {
	cfg := DefaultConfig
	cfg.BusyPolls = 0
	c := New(cfg)
	sec := c.SecurityMem()
	for i := range sec {
		sec[i] = 0
	}

	run(t, c, CmdWriteEnable)
	run(t, c, CmdEraseSecurity, 0x00, 0x20, 0x00)

	for i := 0x2000; i < 0x2100; i++ {
		if sec[i] != 0xFF {
			t.Fatalf("security byte 0x%04X = %02X after erase", i, sec[i])
		}
	}
	if sec[0x1FFF] != 0 || sec[0x2100] != 0 {
		t.Error("erase ran outside the register")
	}
	if v := c.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
}
