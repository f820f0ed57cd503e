// Package buspirate implements norflash.Bus on a Bus Pirate in binary SPI
// mode, attached over a serial port.
//
// References:
//   - Bitbang binary IO base mode (http://dangerousprototypes.com/docs/Bitbang)
//   - SPI (binary) (http://dangerousprototypes.com/docs/SPI_(binary))
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Speed is the SPI clock setting.
type Speed byte

const (
	Speed30kHz Speed = iota
	Speed125kHz
	Speed250kHz
	Speed1MHz
	Speed2MHz
	Speed2_6MHz
	Speed4MHz
	Speed8MHz
)

// Binary mode commands
const (
	cmdReset      = 0x00 // enter/return to bitbang mode
	cmdSPI        = 0x01 // bitbang → SPI
	cmdExit       = 0x0F // reset to the user terminal
	cmdCSLow      = 0x02
	cmdCSHigh     = 0x03
	cmdBulk       = 0x10 // 0b0001xxxx: transfer xxxx+1 bytes
	cmdPeripheral = 0x40 // 0b0100wxyz: power, pull-ups, AUX, CS
	cmdSpeed      = 0x60 // 0b01100xxx
	cmdConfig     = 0x80 // 0b1000wxyz: output type, CKP, CKE, SMP

	maxBulk = 16

	ack = 0x01
)

var (
	// ErrTimeout is returned when the Bus Pirate stops answering.
	ErrTimeout = errors.New("bus pirate: timeout")
	// ErrProtocol is returned for unexpected replies.
	ErrProtocol = errors.New("bus pirate: protocol error")
)

// maxIdle is how many empty reads in a row count as a timeout.
const maxIdle = 10

// BusPirate is a Bus Pirate in SPI mode. It implements norflash.Bus and
// norflash.Transferer.
type BusPirate struct {
	rw io.ReadWriter
}

// Open opens the serial port and switches the Bus Pirate to SPI mode.
func Open(portName string, speed Speed) (*BusPirate, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	bp, err := New(port, speed)
	if err != nil {
		port.Close()
		return nil, err
	}
	return bp, nil
}

// New switches the Bus Pirate on rw to SPI mode 0 at speed, powers the
// target and releases CS. Reads from rw may return 0 bytes on timeout.
func New(rw io.ReadWriter, speed Speed) (*BusPirate, error) {
	bp := &BusPirate{rw: rw}
	if err := bp.enterBitbang(); err != nil {
		return nil, err
	}
	if err := bp.expect([]byte{cmdSPI}, []byte("SPI1")); err != nil {
		return nil, fmt.Errorf("enter SPI mode: %w", err)
	}

	setup := []byte{
		cmdSpeed | byte(speed&0x07),
		cmdConfig | 0b1010,     // 3.3V outputs, idle low, active to idle edge: mode 0
		cmdPeripheral | 0b1001, // power on, CS high
	}
	for _, c := range setup {
		if err := bp.command(c); err != nil {
			return nil, fmt.Errorf("configure 0x%02X: %w", c, err)
		}
	}
	return bp, nil
}

// enterBitbang sends up to 20 zero bytes until the firmware answers BBIO1.
func (bp *BusPirate) enterBitbang() error {
	for range 20 {
		err := bp.expect([]byte{cmdReset}, []byte("BBIO1"))
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrProtocol) {
			return err
		}
	}
	return fmt.Errorf("enter binary mode: %w", ErrTimeout)
}

func (bp *BusPirate) expect(w, want []byte) error {
	if _, err := bp.rw.Write(w); err != nil {
		return err
	}
	got := make([]byte, len(want))
	if err := bp.readFull(got); err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%w: got %q, want %q", ErrProtocol, got, want)
	}
	return nil
}

func (bp *BusPirate) command(c byte) error {
	return bp.expect([]byte{c}, []byte{ack})
}

func (bp *BusPirate) readFull(buf []byte) error {
	idle := 0
	for n := 0; n < len(buf); {
		m, err := bp.rw.Read(buf[n:])
		if err != nil {
			return err
		}
		if m == 0 {
			if idle++; idle >= maxIdle {
				return ErrTimeout
			}
			continue
		}
		idle = 0
		n += m
	}
	return nil
}

func (bp *BusPirate) Select() error   { return bp.command(cmdCSLow) }
func (bp *BusPirate) Deselect() error { return bp.command(cmdCSHigh) }

func (bp *BusPirate) Exchange(out byte) (byte, error) {
	w := [1]byte{out}
	var r [1]byte
	if err := bp.Transfer(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Transfer clocks w out in bulk transfers of up to 16 bytes.
func (bp *BusPirate) Transfer(w, r []byte) error {
	for off := 0; off < len(w); off += maxBulk {
		end := min(off+maxBulk, len(w))
		if err := bp.command(cmdBulk | byte(end-off-1)); err != nil {
			return err
		}
		if _, err := bp.rw.Write(w[off:end]); err != nil {
			return err
		}
		if err := bp.readFull(r[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// Close returns the Bus Pirate to its user terminal and closes the port if
// it is an io.Closer.
func (bp *BusPirate) Close() error {
	err := bp.expect([]byte{cmdReset}, []byte("BBIO1"))
	if err == nil {
		err = bp.command(cmdExit)
	}
	if c, ok := bp.rw.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
