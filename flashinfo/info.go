// Package flashinfo reads and writes the firmware update record kept in the
// security region of the flash.
//
// The record is 12 bytes, little-endian:
//
//	0: is new flash
//	1: backup image checksum
//	2: new image checksum
//	3: padding
//	4-7: backup image length
//	8-11: new image length
package flashinfo

import (
	"encoding/binary"
	"fmt"

	"github.com/gentam/norflash"
)

// Size is the encoded record length.
const Size = 12

// DefaultOffset is the start of security register 1, where the updater keeps
// the record.
const DefaultOffset = 0x1000

// Info describes the images the updater has stored.
type Info struct {
	IsNewFlash uint8
	ChkBackup  uint8
	ChkNew     uint8
	LenBackup  uint32
	LenNew     uint32
}

// Erased reports whether the record reads as erased flash.
func (i Info) Erased() bool {
	return i.IsNewFlash == 0xFF && i.ChkBackup == 0xFF && i.ChkNew == 0xFF &&
		i.LenBackup == 0xFFFFFFFF && i.LenNew == 0xFFFFFFFF
}

func (i Info) MarshalBinary() ([]byte, error) {
	b := make([]byte, Size)
	b[0] = i.IsNewFlash
	b[1] = i.ChkBackup
	b[2] = i.ChkNew
	b[3] = 0xFF // left erased so a store only clears the bits it needs
	binary.LittleEndian.PutUint32(b[4:8], i.LenBackup)
	binary.LittleEndian.PutUint32(b[8:12], i.LenNew)
	return b, nil
}

func (i *Info) UnmarshalBinary(b []byte) error {
	if len(b) != Size {
		return fmt.Errorf("flash info: %d bytes, want %d", len(b), Size)
	}
	i.IsNewFlash = b[0]
	i.ChkBackup = b[1]
	i.ChkNew = b[2]
	i.LenBackup = binary.LittleEndian.Uint32(b[4:8])
	i.LenNew = binary.LittleEndian.Uint32(b[8:12])
	return nil
}

// Device is the part of *norflash.Flash the record needs.
type Device interface {
	Read(r norflash.Region, addr uint32, buf []byte) error
	ForceWrite(r norflash.Region, addr uint32, data []byte) error
}

// Load reads the record at off in the security region.
func Load(dev Device, off uint32) (Info, error) {
	var info Info
	b := make([]byte, Size)
	if err := dev.Read(norflash.Security, off, b); err != nil {
		return info, fmt.Errorf("read flash info: %w", err)
	}
	err := info.UnmarshalBinary(b)
	return info, err
}

// Store writes info at off in the security region. The neighbouring bytes of
// the sector are preserved.
func Store(dev Device, off uint32, info Info) error {
	b, err := info.MarshalBinary()
	if err != nil {
		return err
	}
	if err := dev.ForceWrite(norflash.Security, off, b); err != nil {
		return fmt.Errorf("write flash info: %w", err)
	}
	return nil
}
