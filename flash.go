package norflash

import (
	"fmt"
	"log/slog"
	"time"
)

// Flash is a NOR flash chip reached through a Bus.
type Flash struct {
	bus Bus
	geo Geometry
	id  [3]byte // JEDEC ID of the flash chip
	pr  *flashParams

	log      *slog.Logger
	timeout  time.Duration
	interval time.Duration
}

// New returns a Flash on bus. No bus activity takes place until the first
// operation.
func New(bus Bus, opts ...Option) *Flash {
	f := &Flash{
		bus: bus,
		geo: W25Q512JV,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Flash commands:
//   - [W25Q512JV|8.1.2 Instruction Set Table]
//   - [N25Q32|Table 16: Command Set]
const (
	flashCmdReadResponse       = 0xAA // dummy byte clocked while reading
	flashCmdPowerUp            = 0xAB // Release Power Down
	flashCmdPowerDown          = 0xB9
	flashCmdReadID             = 0x9F
	flashCmdRead               = 0x03
	flashCmdReadSecurity       = 0x48 // Read Security Registers
	flashCmdWriteEnable        = 0x06
	flashCmdPageProgram        = 0x02
	flashCmdProgramSecurity    = 0x42 // Program Security Registers
	flashCmdErase4KB           = 0x20 // Sector Erase (4KB)
	flashCmdErase32KB          = 0x52 // Block Erase (32KB)
	flashCmdEraseSecurity      = 0x44 // Erase Security Registers
	flashCmdEraseChip          = 0xC7
	flashCmdReadStatusRegister = 0x05
)

// Geometry returns the layout the driver currently assumes.
func (f *Flash) Geometry() Geometry { return f.geo }

// PageSize returns the program page size in bytes.
func (f *Flash) PageSize() uint16 { return uint16(f.geo.PageSize) }

// SectorSize returns the erase sector size in bytes.
func (f *Flash) SectorSize() uint16 { return uint16(f.geo.SectorSize) }

// Capacity returns the usable size in bytes, which excludes the scratch
// sectors.
func (f *Flash) Capacity() uint32 { return f.geo.VirtualSize() }

func (f *Flash) PowerUp() error {
	if err := f.tx([]byte{flashCmdPowerUp}, nil); err != nil {
		return err
	}
	time.Sleep(f.tRES1())
	return nil
}

func (f *Flash) PowerDown() error {
	if err := f.tx([]byte{flashCmdPowerDown}, nil); err != nil {
		return err
	}
	time.Sleep(f.tDP())
	return nil
}

// ReadID returns the JEDEC ID of the flash chip and configures its parameters.
// It returns a non-empty name for known IDs, whose geometry then replaces the
// configured one. The extended device string is ignored.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	var buf [3]byte
	if err = f.tx([]byte{flashCmdReadID}, buf[:]); err != nil {
		return
	}

	f.id = buf
	if params, ok := knownFlash[f.id]; ok {
		f.pr = &params
		f.geo = params.geo
		name = params.name
	}
	return f.id, name, nil
}

func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	var sr [1]byte
	if err := f.tx([]byte{flashCmdReadStatusRegister}, sr[:]); err != nil {
		return 0, err
	}
	return StatusRegister(sr[0]), nil
}

// BusyWait polls the status register until the chip is no longer busy. It
// gives up with ErrHardwareTimeout after timeout, or after the chip erase
// time when timeout is 0.
func (f *Flash) BusyWait(timeout time.Duration) error {
	if timeout == 0 {
		timeout = f.tEraseChip()
	}
	return f.poll(func(sr StatusRegister) bool { return !sr.Busy() }, f.limit(timeout))
}

// poll reads the status register until done reports true.
func (f *Flash) poll(done func(StatusRegister) bool, timeout time.Duration) error {
	// Fast path
	sr, err := f.ReadStatusRegister()
	if err != nil {
		return err
	}
	if done(sr) {
		return nil
	}

	deadline := time.Now().Add(timeout)
	for {
		if f.interval > 0 {
			time.Sleep(f.interval)
		}
		if sr, err = f.ReadStatusRegister(); err != nil {
			return err
		}
		if done(sr) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("status %s after %v: %w", sr, timeout, ErrHardwareTimeout)
		}
	}
}

// writeEnable sets the write enable latch and waits until the chip reports
// it. The latch clears itself after every program or erase.
func (f *Flash) writeEnable() error {
	if err := f.tx([]byte{flashCmdWriteEnable}, nil); err != nil {
		return err
	}
	return f.poll(StatusRegister.WriteEnabled, f.limit(writeEnableTimeout))
}

// Read fills buf from addr in region r.
func (f *Flash) Read(r Region, addr uint32, buf []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := checkRange(addr, len(buf), f.geo.VirtualSize()); err != nil {
		return err
	}
	return f.read(r, addr, buf)
}

// read has the whole physical array available, scratch sectors included.
func (f *Flash) read(r Region, addr uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := f.BusyWait(0); err != nil {
		return err
	}
	return f.tx(r.readHeader(addr), buf)
}
