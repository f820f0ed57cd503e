package norflash

// Bus is the duplex transport the flash is wired to: a chip select line and
// a blocking one-byte full-duplex exchange.
type Bus interface {
	Select() error
	Deselect() error
	Exchange(out byte) (in byte, err error)
}

// Transferer is implemented by buses that can clock a whole buffer in one
// call. w and r have the same length; r receives the bytes shifted in while
// w is shifted out. Chip select is not touched.
type Transferer interface {
	Transfer(w, r []byte) error
}

// dummy is clocked out while the chip is expected to talk.
const dummy = flashCmdReadResponse

// tx runs one instruction: the chip is deselected and selected again before
// the opcode, even right after a previous instruction, so the opcode is
// always latched on a fresh CS edge. w is shifted out first, then len(r)
// dummy bytes are clocked to fill r.
func (f *Flash) tx(w, r []byte) (err error) {
	if err = f.bus.Deselect(); err != nil {
		return err
	}
	if err = f.bus.Select(); err != nil {
		return err
	}
	defer func() {
		if csErr := f.bus.Deselect(); csErr != nil && err == nil {
			err = csErr
		}
	}()

	if t, ok := f.bus.(Transferer); ok {
		buf := make([]byte, len(w)+len(r))
		copy(buf, w)
		for i := len(w); i < len(buf); i++ {
			buf[i] = dummy
		}
		if err = t.Transfer(buf, buf); err != nil {
			return err
		}
		copy(r, buf[len(w):])
		return nil
	}

	for _, b := range w {
		if _, err = f.bus.Exchange(b); err != nil {
			return err
		}
	}
	for i := range r {
		if r[i], err = f.bus.Exchange(dummy); err != nil {
			return err
		}
	}
	return nil
}

// header builds an opcode followed by a 24-bit address, MSB first.
func header(op byte, addr uint32) []byte {
	return []byte{op, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}
