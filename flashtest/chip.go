// Package flashtest simulates a W25Q serial NOR flash at the byte exchange
// level, for testing code that talks to a chip through norflash.Bus.
//
// The simulated chip enforces the NOR rules: programming ANDs data into the
// array, program and erase need the write enable latch, and instructions
// sent while the chip is busy are ignored. Anything the real chip would
// silently ignore or mangle is recorded as a violation.
package flashtest

import (
	"bytes"
	"fmt"
)

// Instruction opcodes understood by the chip.
const (
	CmdReadStatus      = 0x05
	CmdWriteEnable     = 0x06
	CmdReadID          = 0x9F
	CmdRead            = 0x03
	CmdReadSecurity    = 0x48
	CmdPageProgram     = 0x02
	CmdProgramSecurity = 0x42
	CmdErase4KB        = 0x20
	CmdErase32KB       = 0x52
	CmdEraseSecurity   = 0x44
	CmdEraseChip       = 0xC7
	CmdPowerUp         = 0xAB
	CmdPowerDown       = 0xB9
)

// Config sizes the simulated chip.
type Config struct {
	Size         int // main array bytes
	SecuritySize int // security area bytes
	PageSize     int
	SectorSize   int
	ID           [3]byte

	// SecurityRegisterSize is how much of each security sector one erase
	// clears, counted from the sector start. Zero clears the whole sector.
	// Reads and programs see the security area as flat memory either way.
	SecurityRegisterSize int

	// BusyPolls is how many status reads report busy after a program or
	// erase completes on the bus.
	BusyPolls int
}

// DefaultConfig is a 64 KiB chip with a 64 KiB security area, small enough
// to allocate per test. Security erases clear 256-byte registers like the
// W25Q512JV.
var DefaultConfig = Config{
	Size:                 64 << 10,
	SecuritySize:         64 << 10,
	PageSize:             256,
	SectorSize:           4096,
	ID:                   [3]byte{0xEF, 0x40, 0x20},
	BusyPolls:            2,
	SecurityRegisterSize: 256,
}

// Txn is one completed chip select window.
type Txn struct {
	Cmd  byte
	Addr uint32 // for addressed instructions
	Data []byte // bytes after the header for program instructions
	Len  int    // total bytes clocked
}

// Chip is a simulated flash chip. It implements norflash.Bus.
type Chip struct {
	cfg Config
	mem []byte
	sec []byte

	wel  bool
	busy int

	// Stuck keeps the busy bit set forever.
	Stuck bool
	// NoWEL makes the chip ignore write enable.
	NoWEL bool
	// Err, when set, is returned by every Exchange.
	Err error

	selected bool
	cur      []byte

	txns       []Txn
	violations []string
	selects    int
}

// New returns an erased chip.
func New(cfg Config) *Chip {
	c := &Chip{
		cfg: cfg,
		mem: bytes.Repeat([]byte{0xFF}, cfg.Size),
		sec: bytes.Repeat([]byte{0xFF}, cfg.SecuritySize),
	}
	return c
}

// Mem returns the main array. Tests may seed it directly.
func (c *Chip) Mem() []byte { return c.mem }

// SecurityMem returns the security area.
func (c *Chip) SecurityMem() []byte { return c.sec }

// Transactions returns every chip select window since the last Reset.
func (c *Chip) Transactions() []Txn { return c.txns }

// Programs returns the program instructions since the last Reset.
func (c *Chip) Programs() []Txn {
	var p []Txn
	for _, t := range c.txns {
		if t.Cmd == CmdPageProgram || t.Cmd == CmdProgramSecurity {
			p = append(p, t)
		}
	}
	return p
}

// Violations lists protocol errors seen so far.
func (c *Chip) Violations() []string { return c.violations }

// Selects counts Select calls since the last Reset.
func (c *Chip) Selects() int { return c.selects }

// Selected reports whether chip select is asserted.
func (c *Chip) Selected() bool { return c.selected }

// Reset clears the transaction log and the select counter.
func (c *Chip) Reset() {
	c.txns = nil
	c.selects = 0
}

func (c *Chip) violate(format string, a ...any) {
	c.violations = append(c.violations, fmt.Sprintf(format, a...))
}

func (c *Chip) Select() error {
	if c.selected {
		c.violate("select while selected")
	}
	c.selected = true
	c.selects++
	c.cur = c.cur[:0]
	return nil
}

func (c *Chip) Deselect() error {
	if !c.selected {
		return nil
	}
	c.selected = false
	if len(c.cur) > 0 {
		c.commit(c.cur)
	}
	return nil
}

func (c *Chip) Exchange(out byte) (byte, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	if !c.selected {
		c.violate("exchange 0x%02X without select", out)
		return 0xFF, nil
	}
	c.cur = append(c.cur, out)
	pos := len(c.cur) - 1
	if pos == 0 {
		return 0xFF, nil
	}

	switch c.cur[0] {
	case CmdReadStatus:
		return c.status(), nil
	case CmdReadID:
		if pos <= 3 {
			return c.cfg.ID[pos-1], nil
		}
	case CmdRead:
		if pos >= 4 && !c.isBusy() {
			return c.mem[(int(addr(c.cur))+pos-4)%len(c.mem)], nil
		}
	case CmdReadSecurity:
		if pos >= 5 && !c.isBusy() {
			return c.sec[(int(addr(c.cur))+pos-5)%len(c.sec)], nil
		}
	}
	return 0xFF, nil
}

func (c *Chip) isBusy() bool { return c.Stuck || c.busy > 0 }

func (c *Chip) status() byte {
	var sr byte
	if c.isBusy() {
		sr |= 0x01
	}
	if c.wel {
		sr |= 0x02
	}
	return sr
}

func addr(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (c *Chip) commit(b []byte) {
	t := Txn{Cmd: b[0], Len: len(b)}
	if len(b) >= 4 {
		t.Addr = addr(b)
	}
	c.txns = append(c.txns, t)

	if b[0] == CmdReadStatus {
		if c.busy > 0 {
			c.busy--
		}
		return
	}
	if c.isBusy() {
		c.violate("instruction 0x%02X while busy", b[0])
		return
	}

	switch b[0] {
	case CmdWriteEnable:
		if len(b) != 1 {
			c.violate("write enable with %d bytes", len(b))
			return
		}
		c.wel = !c.NoWEL
	case CmdPageProgram, CmdProgramSecurity:
		if len(b) < 4 {
			c.violate("short program instruction")
			return
		}
		data := append([]byte(nil), b[4:]...)
		c.txns[len(c.txns)-1].Data = data
		mem := c.mem
		if b[0] == CmdProgramSecurity {
			mem = c.sec
		}
		c.program(mem, t.Addr, data)
	case CmdErase4KB:
		c.erase(c.mem, t.Addr, c.cfg.SectorSize)
	case CmdErase32KB:
		c.erase(c.mem, t.Addr, 32<<10)
	case CmdEraseSecurity:
		n := c.cfg.SecurityRegisterSize
		if n <= 0 || n > c.cfg.SectorSize {
			n = c.cfg.SectorSize
		}
		c.erase(c.sec, t.Addr-t.Addr%uint32(c.cfg.SectorSize), n)
	case CmdEraseChip:
		c.erase(c.mem, 0, len(c.mem))
	}
}

// program ANDs data into the page holding a, wrapping at the page end like
// the real chip does.
func (c *Chip) program(mem []byte, a uint32, data []byte) {
	if !c.wel {
		c.violate("program 0x%06X without write enable", a)
		return
	}
	ps := c.cfg.PageSize
	start := int(a) % len(mem)
	if start%ps+len(data) > ps {
		c.violate("program 0x%06X+%d crosses a page boundary", a, len(data))
	}
	base := start - start%ps
	for i, v := range data {
		mem[base+(start%ps+i)%ps] &= v
	}
	c.done()
}

func (c *Chip) erase(mem []byte, a uint32, size int) {
	if !c.wel {
		c.violate("erase 0x%06X without write enable", a)
		return
	}
	if size > len(mem) {
		size = len(mem)
	}
	base := int(a) % len(mem)
	base -= base % size
	for i := base; i < base+size; i++ {
		mem[i] = 0xFF
	}
	c.done()
}

func (c *Chip) done() {
	c.wel = false
	c.busy = c.cfg.BusyPolls
}

// Batched wraps a Chip with a Transfer method so the driver takes its
// buffered path.
type Batched struct {
	*Chip
}

func (b Batched) Transfer(w, r []byte) error {
	for i := range w {
		in, err := b.Exchange(w[i])
		if err != nil {
			return err
		}
		r[i] = in
	}
	return nil
}
