package norflash

import (
	"errors"
	"fmt"
)

// ErrNoScratch is returned by ForceWrite when the geometry reserves no
// scratch sector to stage a rewrite in.
var ErrNoScratch = errors.New("no scratch sector reserved")

// segment is one page program instruction: n bytes of the caller's buffer
// starting at off, programmed at addr.
type segment struct {
	addr uint32
	off  uint32
	n    uint32
}

// splitPages cuts [addr, addr+size) at page boundaries into a leading
// partial page, the full pages in between, and a trailing page. size must
// be positive. Segments are returned in address order and never overlap.
func splitPages(addr, size, pageSize uint32) []segment {
	firstPage := addr - addr%pageSize
	lastPage := (addr + size - 1) / pageSize * pageSize

	n := size
	if addr+size >= firstPage+pageSize {
		n = firstPage + pageSize - addr
	}
	segs := []segment{{addr: addr, off: 0, n: n}}
	if lastPage == firstPage {
		return segs
	}

	for pa := firstPage + pageSize; pa < lastPage; pa += pageSize {
		segs = append(segs, segment{addr: pa, off: pa - addr, n: pageSize})
	}
	if tail := addr + size - lastPage; tail > 0 {
		segs = append(segs, segment{addr: lastPage, off: lastPage - addr, n: tail})
	}
	return segs
}

// program writes one segment: write enable, page program, wait for the chip.
func (f *Flash) program(r Region, addr uint32, data []byte) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.tx(append(r.programHeader(addr), data...), nil); err != nil {
		return err
	}
	return f.BusyWait(f.tPP())
}

// uncheckedWrite programs data at addr without looking at the current
// content. It may target the scratch sectors.
func (f *Flash) uncheckedWrite(r Region, addr uint32, data []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrInvalidSize
	}
	if err := checkRange(addr, len(data), f.geo.Size); err != nil {
		return err
	}
	if err := f.BusyWait(0); err != nil {
		return err
	}

	for _, s := range splitPages(addr, uint32(len(data)), f.geo.PageSize) {
		f.log.Debug("program", "region", r, "addr", s.addr, "len", s.n)
		if err := f.program(r, s.addr, data[s.off:s.off+s.n]); err != nil {
			return fmt.Errorf("program 0x%06X: %w", s.addr, err)
		}
	}
	return nil
}

// FastWrite programs data at addr without verifying the current content.
// The target must be erased, or the write must only clear bits; otherwise
// the stored data ends up as the AND of old and new.
func (f *Flash) FastWrite(r Region, addr uint32, data []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := checkRange(addr, len(data), f.geo.VirtualSize()); err != nil {
		return err
	}
	return f.uncheckedWrite(r, addr, data)
}

// Write programs data at addr page by page. Before each page the current
// content is read back; if any bit would have to go from 0 to 1 the write
// stops with an *IncompatibleWriteError. Pages before the rejected one have
// already been programmed and stay that way.
func (f *Flash) Write(r Region, addr uint32, data []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := checkRange(addr, len(data), f.geo.VirtualSize()); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrInvalidSize
	}
	if err := f.BusyWait(0); err != nil {
		return err
	}

	for _, s := range splitPages(addr, uint32(len(data)), f.geo.PageSize) {
		want := data[s.off : s.off+s.n]
		have := make([]byte, s.n)
		if err := f.tx(r.readHeader(s.addr), have); err != nil {
			return err
		}
		if i, ok := compatible(have, want); !ok {
			return &IncompatibleWriteError{
				Region: r,
				Addr:   s.addr,
				Offset: s.addr + uint32(i),
				Have:   have[i],
				Want:   want[i],
			}
		}
		if err := f.program(r, s.addr, want); err != nil {
			return fmt.Errorf("program 0x%06X: %w", s.addr, err)
		}
	}
	return nil
}

// compatible reports whether want can be programmed over have, that is every
// 1 bit of want is still 1 in have. Otherwise it returns the first offending
// index.
func compatible(have, want []byte) (int, bool) {
	for i := range want {
		if ^want[i]|have[i] != 0xFF {
			return i, false
		}
	}
	return 0, true
}

// ForceWrite behaves like Write, but when the content is incompatible it
// rewrites every sector the range touches: the sector is read, merged with
// data, staged in the scratch sector, erased, and programmed back from the
// staged copy. Errors other than an incompatible write are returned as is.
func (f *Flash) ForceWrite(r Region, addr uint32, data []byte) error {
	err := f.Write(r, addr, data)
	var iwe *IncompatibleWriteError
	if !errors.As(err, &iwe) {
		return err
	}
	f.log.Debug("incompatible content, rewriting sectors", "region", r, "page", iwe.Addr)
	return f.rewrite(r, addr, data)
}

// rewrite replaces data through the scratch sector one erase unit at a time.
// In the main array the unit is a sector. In the security area it is the
// register at the start of each sector, so only the register is staged and
// programmed back, and data reaching past a register is rejected before
// anything is erased.
func (f *Flash) rewrite(r Region, addr uint32, data []byte) error {
	if f.geo.ReservedSectors == 0 {
		return ErrNoScratch
	}
	ss := f.geo.SectorSize
	unit := ss
	if r == Security {
		unit = f.geo.securityRegister()
	}
	scratch := f.geo.ScratchAddr()
	end := addr + uint32(len(data))

	for sec := addr - addr%ss; sec < end; sec += ss {
		if hi := min(sec+ss, end); hi > sec+unit {
			return &RangeError{Addr: addr, Size: len(data), Limit: sec + unit, Err: ErrSizeOutOfRange}
		}
	}

	buf := make([]byte, unit)
	for sec := addr - addr%ss; sec < end; sec += ss {
		if err := f.read(r, sec, buf); err != nil {
			return err
		}
		lo, hi := max(sec, addr), min(sec+unit, end)
		copy(buf[lo-sec:hi-sec], data[lo-addr:hi-addr])

		f.log.Debug("rewrite sector", "region", r, "addr", sec, "len", unit, "scratch", scratch)
		if err := f.eraseAt(Main, scratch); err != nil {
			return fmt.Errorf("erase scratch: %w", err)
		}
		if err := f.uncheckedWrite(Main, scratch, buf); err != nil {
			return fmt.Errorf("stage sector 0x%06X: %w", sec, err)
		}
		if err := f.eraseAt(r, sec); err != nil {
			return fmt.Errorf("erase sector 0x%06X: %w", sec, err)
		}
		if err := f.read(Main, scratch, buf); err != nil {
			return err
		}
		if err := f.uncheckedWrite(r, sec, buf); err != nil {
			return fmt.Errorf("restore sector 0x%06X: %w", sec, err)
		}
	}
	return nil
}
