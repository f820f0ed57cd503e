package norflash

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressOutOfRange is returned when the start address lies beyond
	// the usable size.
	ErrAddressOutOfRange = errors.New("address out of range")
	// ErrSizeOutOfRange is returned when the range runs past the usable size.
	ErrSizeOutOfRange = errors.New("size out of range")
	// ErrInvalidSize is returned for zero-length writes.
	ErrInvalidSize = errors.New("invalid size")
	// ErrIncompatibleWrite is returned when a write would have to turn a 0
	// bit back into a 1 without an erase.
	ErrIncompatibleWrite = errors.New("incompatible write")
	// ErrHardwareTimeout is returned when the chip stays busy, or refuses to
	// latch write enable, for longer than the operation allows.
	ErrHardwareTimeout = errors.New("hardware timeout")
	// ErrSectorOutOfRange is returned for erase indices the chip cannot
	// address.
	ErrSectorOutOfRange = errors.New("sector out of range")
	// ErrInvalidRegion is returned for Region values other than Main and
	// Security.
	ErrInvalidRegion = errors.New("invalid region")
)

// RangeError reports a rejected address range. It wraps
// ErrAddressOutOfRange or ErrSizeOutOfRange.
type RangeError struct {
	Addr  uint32
	Size  int
	Limit uint32
	Err   error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range 0x%06X+%d exceeds 0x%06X: %v", e.Addr, e.Size, e.Limit, e.Err)
}

func (e *RangeError) Unwrap() error { return e.Err }

// IncompatibleWriteError reports the first page of a verified write whose
// current content cannot be programmed to the requested value. Pages before
// Addr in the same call have already been written.
type IncompatibleWriteError struct {
	Region Region
	Addr   uint32 // start of the rejected page segment
	Offset uint32 // first offending byte
	Have   byte
	Want   byte
}

func (e *IncompatibleWriteError) Error() string {
	return fmt.Sprintf("incompatible write: %s 0x%06X holds 0x%02X, cannot program 0x%02X",
		e.Region, e.Offset, e.Have, e.Want)
}

func (e *IncompatibleWriteError) Unwrap() error { return ErrIncompatibleWrite }

// checkRange validates [addr, addr+size) against limit before any bus
// activity.
func checkRange(addr uint32, size int, limit uint32) error {
	if addr > limit {
		return &RangeError{Addr: addr, Size: size, Limit: limit, Err: ErrAddressOutOfRange}
	}
	if uint64(addr)+uint64(size) > uint64(limit) {
		return &RangeError{Addr: addr, Size: size, Limit: limit, Err: ErrSizeOutOfRange}
	}
	return nil
}
