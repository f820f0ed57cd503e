package norflash

import "fmt"

// maxSecuritySector is the highest index the security erase encoding can
// carry: the index sits in the upper nibble of the middle address byte.
const maxSecuritySector = 0x0F

// erase issues a write-enabled erase instruction. It does not wait for the
// erase to finish; the next operation does.
func (f *Flash) erase(cmd []byte) error {
	if err := f.BusyWait(0); err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	return f.tx(cmd, nil)
}

// EraseChip fills the whole main array with 0xFF. It returns once the
// instruction is issued; use BusyWait to wait for completion.
func (f *Flash) EraseChip() error {
	f.log.Debug("erase chip")
	return f.erase([]byte{flashCmdEraseChip})
}

// EraseSector fills the 4 KiB main array sector at index with 0xFF. The
// scratch sectors may be erased too. It returns once the instruction is
// issued.
func (f *Flash) EraseSector(index uint32) error {
	if index >= f.geo.Sectors() {
		return fmt.Errorf("main sector %d of %d: %w", index, f.geo.Sectors(), ErrSectorOutOfRange)
	}
	addr := index * f.geo.SectorSize
	f.log.Debug("erase sector", "region", Main, "index", index, "addr", addr)
	return f.erase(header(flashCmdErase4KB, addr))
}

// EraseSecuritySector fills the security area sector at index with 0xFF.
// Only indices 0 to 15 can be encoded.
func (f *Flash) EraseSecuritySector(index uint32) error {
	if index > maxSecuritySector {
		return fmt.Errorf("security sector %d: %w", index, ErrSectorOutOfRange)
	}
	f.log.Debug("erase sector", "region", Security, "index", index)
	return f.erase([]byte{flashCmdEraseSecurity, 0x00, byte(index<<4) & 0xF0, 0x00})
}

// eraseAt erases the sector holding addr in region r and waits for it.
func (f *Flash) eraseAt(r Region, addr uint32) error {
	index := addr / f.geo.SectorSize
	var err error
	if r == Security {
		err = f.EraseSecuritySector(index)
	} else {
		err = f.EraseSector(index)
	}
	if err != nil {
		return err
	}
	return f.BusyWait(f.tErase4KB())
}

// Erase erases the size bytes starting from baseAddr in the main array by
// repeatedly erasing 32 KiB blocks where aligned and 4 KiB sectors
// elsewhere. The range is rounded out to sector boundaries and must lie
// within Capacity.
func (f *Flash) Erase(baseAddr, size uint32) error {
	const blockSize = 32 << 10

	if err := checkRange(baseAddr, int(size), f.geo.VirtualSize()); err != nil {
		return err
	}
	ss := f.geo.SectorSize
	start := baseAddr - baseAddr%ss
	end64 := (uint64(baseAddr) + uint64(size) + uint64(ss) - 1) / uint64(ss) * uint64(ss)
	if err := checkRange(start, int(end64-uint64(start)), f.geo.VirtualSize()); err != nil {
		return err
	}
	end := uint32(end64)

	for addr := start; addr < end; {
		if addr%blockSize == 0 && end-addr >= blockSize {
			f.log.Debug("erase block", "addr", addr)
			if err := f.erase(header(flashCmdErase32KB, addr)); err != nil {
				return err
			}
			addr += blockSize
			continue
		}
		if err := f.EraseSector(addr / ss); err != nil {
			return err
		}
		addr += ss
	}
	return f.BusyWait(0)
}
