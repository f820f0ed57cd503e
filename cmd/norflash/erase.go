package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gentam/norflash"
)

const eraseBlock = 32 << 10

func newEraseCmd() *cobra.Command {
	var (
		chip     bool
		sector   int
		addrFlag string
		sizeFlag string
	)
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase the chip, one sector or an address range",
		Long: `Erase the chip, one sector or an address range.

  norflash erase --chip
  norflash erase --sector 3
  norflash erase --security --sector 1
  norflash erase --addr 0x10000 --size 0x8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			byRange := cmd.Flags().Changed("size")
			n := 0
			for _, set := range []bool{chip, sector >= 0, byRange} {
				if set {
					n++
				}
			}
			if n != 1 {
				return errors.New("exactly one of --chip, --sector or --size is required")
			}
			if securityFlag && sector < 0 {
				return errors.New("the security area can only be erased by --sector")
			}

			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()
			f := s.flash

			switch {
			case chip:
				return eraseChip(f)
			case sector >= 0 && securityFlag:
				if err := f.EraseSecuritySector(uint32(sector)); err != nil {
					return err
				}
				return f.BusyWait(0)
			case sector >= 0:
				if err := f.EraseSector(uint32(sector)); err != nil {
					return err
				}
				return f.BusyWait(0)
			}

			addr, err := parseUint32(addrFlag)
			if err != nil {
				return err
			}
			size, err := parseUint32(sizeFlag)
			if err != nil {
				return err
			}
			return eraseRange(f, addr, size)
		},
	}
	cmd.Flags().BoolVar(&chip, "chip", false, "erase the whole main array")
	cmd.Flags().IntVar(&sector, "sector", -1, "erase one 4 KiB sector by index")
	cmd.Flags().StringVarP(&addrFlag, "addr", "a", "0", "start of the range")
	cmd.Flags().StringVar(&sizeFlag, "size", "", "length of the range, rounded out to sectors")
	return cmd
}

func eraseChip(f *norflash.Flash) error {
	if err := f.EraseChip(); err != nil {
		return err
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Erasing chip"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan error, 1)
	go func() { done <- f.BusyWait(0) }()
	for {
		select {
		case err := <-done:
			bar.Finish()
			return err
		case <-time.After(200 * time.Millisecond):
			bar.Add(1)
		}
	}
}

// eraseRange erases [addr, addr+size) rounded out to sectors, one 32 KiB
// block at a time so progress can be shown.
func eraseRange(f *norflash.Flash, addr, size uint32) error {
	if size == 0 {
		return nil
	}
	if err := checkSpan(f, addr, size); err != nil {
		return err
	}
	ss := uint64(f.SectorSize())
	start := addr - addr%uint32(ss)
	end := uint32((uint64(addr) + uint64(size) + ss - 1) / ss * ss)

	bar := newBar(int64(end-start), "Erasing")
	for _, c := range chunks(start, end-start, eraseBlock) {
		if err := f.Erase(c.addr, c.n); err != nil {
			bar.Exit()
			return fmt.Errorf("erase 0x%06X failed: %w", c.addr, err)
		}
		bar.Add(int(c.n))
	}
	return bar.Finish()
}
