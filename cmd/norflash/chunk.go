package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/gentam/norflash"
)

// span is a byte range of the flash.
type span struct {
	addr uint32
	n    uint32
}

// chunks cuts [addr, addr+size) at multiples of align, so each piece stays
// inside one aligned block.
func chunks(addr, size, align uint32) []span {
	var out []span
	a, end, al := uint64(addr), uint64(addr)+uint64(size), uint64(align)
	for a < end {
		next := min(a-a%al+al, end)
		out = append(out, span{uint32(a), uint32(next - a)})
		a = next
	}
	return out
}

// checkSpan rejects ranges that run past the usable flash before anything
// is allocated or sent.
func checkSpan(f *norflash.Flash, addr, size uint32) error {
	capacity := uint64(f.Capacity())
	switch {
	case uint64(addr) > capacity:
		return fmt.Errorf("0x%06X is beyond 0x%06X: %w", addr, capacity, norflash.ErrAddressOutOfRange)
	case uint64(addr)+uint64(size) > capacity:
		return fmt.Errorf("0x%06X+0x%X exceeds 0x%06X: %w", addr, size, capacity, norflash.ErrSizeOutOfRange)
	}
	return nil
}

// parseUint32 accepts decimal, 0x hex and 0o/0b prefixed numbers.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}

func newBar(total int64, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
