package norflash

import (
	"fmt"
	"strings"
)

// StatusRegister represents status register 1 of the flash chip.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q512JV|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | TB: Top/Bottom protect
//	5   | Top/bottom                           | BP3: Block Protect bit 3
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

const (
	StatusBusy         StatusRegister = 1 << 0
	StatusWriteEnabled StatusRegister = 1 << 1
)

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<6) != 0 }
func (sr StatusRegister) BlockProtect3() bool         { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&StatusWriteEnabled != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&StatusBusy != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if sr.BlockProtect3() {
		s = append(s, "BP3")
	}
	if sr.BlockProtect2() {
		s = append(s, "BP2")
	}
	if sr.BlockProtect1() {
		s = append(s, "BP1")
	}
	if sr.BlockProtect0() {
		s = append(s, "BP0")
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
