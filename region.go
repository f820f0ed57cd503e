package norflash

import "fmt"

// Region selects the address space an operation targets. Both regions are
// addressed from 0 with 3-byte addresses.
type Region uint8

const (
	Main     Region = iota // main array
	Security               // security register area
)

func (r Region) String() string {
	switch r {
	case Main:
		return "main"
	case Security:
		return "security"
	default:
		return fmt.Sprintf("Region(%d)", uint8(r))
	}
}

func (r Region) check() error {
	if r != Main && r != Security {
		return fmt.Errorf("%s: %w", r, ErrInvalidRegion)
	}
	return nil
}

// readHeader returns the instruction bytes preceding read data. Security
// reads need one dummy byte after the address.
func (r Region) readHeader(addr uint32) []byte {
	if r == Security {
		return append(header(flashCmdReadSecurity, addr), dummy)
	}
	return header(flashCmdRead, addr)
}

// programHeader returns the instruction bytes preceding program data.
func (r Region) programHeader(addr uint32) []byte {
	if r == Security {
		return header(flashCmdProgramSecurity, addr)
	}
	return header(flashCmdPageProgram, addr)
}
