package norflash

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// PeriphBus is a Bus on a periph.io SPI connection with a GPIO driven chip
// select. The connection must not manage CS itself.
type PeriphBus struct {
	conn spi.Conn
	cs   gpio.PinOut
}

func NewPeriphBus(conn spi.Conn, cs gpio.PinOut) *PeriphBus {
	return &PeriphBus{conn: conn, cs: cs}
}

// Select drives CS low.
func (b *PeriphBus) Select() error { return b.cs.Out(gpio.Low) }

// Deselect drives CS high.
func (b *PeriphBus) Deselect() error { return b.cs.Out(gpio.High) }

func (b *PeriphBus) Exchange(out byte) (byte, error) {
	w := [1]byte{out}
	var r [1]byte
	if err := b.conn.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Transfer splits the buffer to stay within the maximum transaction size.
// CS stays asserted across the pieces.
func (b *PeriphBus) Transfer(w, r []byte) error {
	const maxTx = 65536 // [FTDI-AN_108]

	for off := 0; off < len(w); off += maxTx {
		end := min(off+maxTx, len(w))
		if err := b.conn.Tx(w[off:end], r[off:end]); err != nil {
			return err
		}
	}
	return nil
}
