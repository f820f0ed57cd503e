package norflash

import "time"

// Geometry describes the address layout of a chip.
type Geometry struct {
	PageSize   uint32 // largest unit one program instruction may target
	SectorSize uint32 // smallest unit one erase instruction may target
	Size       uint32 // physical size of the main array in bytes

	// ReservedSectors at the top of the main array are kept as scratch
	// space and excluded from the virtual size.
	ReservedSectors uint32

	// SecurityRegisterSize is the length of one security register. Register
	// n starts at n*SectorSize and a security erase clears only the
	// register. Zero means the register spans the whole sector.
	SecurityRegisterSize uint32
}

// VirtualSize is the number of bytes callers may address.
func (g Geometry) VirtualSize() uint32 {
	return g.Size - g.ReservedSectors*g.SectorSize
}

// ScratchAddr is the address of the first reserved sector.
func (g Geometry) ScratchAddr() uint32 {
	return g.VirtualSize()
}

// Sectors is the number of physical sectors in the main array.
func (g Geometry) Sectors() uint32 {
	return g.Size / g.SectorSize
}

// securityRegister returns how many bytes from the start of a security
// sector one erase clears.
func (g Geometry) securityRegister() uint32 {
	if g.SecurityRegisterSize == 0 || g.SecurityRegisterSize > g.SectorSize {
		return g.SectorSize
	}
	return g.SecurityRegisterSize
}

// W25Q512JV is the default geometry: a 512 Mbit chip with its last 4 KiB
// sector reserved. Its three 256-byte security registers sit at 0x1000,
// 0x2000 and 0x3000.
var W25Q512JV = Geometry{
	PageSize:             256,
	SectorSize:           4096,
	Size:                 64 << 20,
	ReservedSectors:      1,
	SecurityRegisterSize: 256,
}

type flashParams struct {
	name string
	geo  Geometry

	tRES1      time.Duration
	tDP        time.Duration
	tPP        time.Duration
	tErase4KB  time.Duration
	tEraseChip time.Duration
}

var (
	flashIDMicronN25Q32    = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128  = [3]byte{0xEF, 0x70, 0x18}
	flashIDWinbondW25Q512J = [3]byte{0xEF, 0x40, 0x20}
)

var knownFlash = map[[3]byte]flashParams{
	flashIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",
		geo:  Geometry{PageSize: 256, SectorSize: 4096, Size: 4 << 20, ReservedSectors: 1},

		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		// tPP: PAGE PROGRAM cycle time (256 bytes)
		tPP: 5 * time.Millisecond,
		// tSSE: Subsector ERASE cycle time
		tErase4KB: 800 * time.Millisecond,
		// tBE: Bulk ERASE cycle time
		tEraseChip: 60 * time.Second,
	},

	flashIDWinbondW25Q128: {
		name: "Winbond W25Q 128Mb",
		geo:  Geometry{PageSize: 256, SectorSize: 4096, Size: 16 << 20, ReservedSectors: 1, SecurityRegisterSize: 256},

		// [W25Q128|9.6 AC Electrical Characteristics]:
		// tRES1: /CS High to Standby Mode without ID Read
		tRES1: 3 * time.Microsecond,
		// tDP: /CS High to Power-down Mode
		tDP: 3 * time.Microsecond,
		// tPP: Page Program Time
		tPP: 3 * time.Millisecond,
		// tSE: Sector Erase Time (4KB)
		tErase4KB: 400 * time.Millisecond,
		// tCE: Chip Erase Time
		tEraseChip: 200 * time.Second,
	},

	flashIDWinbondW25Q512J: {
		name: "Winbond W25Q 512Mb",
		geo:  W25Q512JV,

		// [W25Q512JV|9.6 AC Electrical Characteristics]
		tRES1:      3 * time.Microsecond,
		tDP:        3 * time.Microsecond,
		tPP:        3 * time.Millisecond,
		tErase4KB:  400 * time.Millisecond,
		tEraseChip: 1000 * time.Second,
	},
}

// writeEnableTimeout bounds the WEL poll. The latch is set as soon as the
// instruction is accepted, so anything longer means a dead bus.
const writeEnableTimeout = 10 * time.Millisecond

func (f *Flash) paramOrMax(get func(*flashParams) time.Duration) time.Duration {
	// get parameter if configured
	if f.pr != nil {
		return get(f.pr)
	}

	// fall back to maximum duration from all known flash parameters
	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (f *Flash) tRES1() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tRES1 })
}
func (f *Flash) tDP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tDP })
}
func (f *Flash) tPP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tPP })
}
func (f *Flash) tErase4KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase4KB })
}
func (f *Flash) tEraseChip() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tEraseChip })
}

// limit returns the configured wait override, or d if there is none.
func (f *Flash) limit(d time.Duration) time.Duration {
	if f.timeout > 0 {
		return f.timeout
	}
	return d
}
