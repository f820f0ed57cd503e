package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/spf13/cobra"

	"github.com/gentam/norflash"
)

// segment is a contiguous piece of an image.
type segment struct {
	addr uint32
	data []byte
}

// loadImage reads a raw binary placed at addr, or an Intel HEX file whose
// records carry their own addresses.
func loadImage(name string, addr uint32) ([]segment, error) {
	if !strings.EqualFold(filepath.Ext(name), ".hex") {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return []segment{{addr, data}}, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	var segs []segment
	for _, s := range mem.GetDataSegments() {
		segs = append(segs, segment{s.Address, s.Data})
	}
	return segs, nil
}

type writeFunc func(r norflash.Region, addr uint32, data []byte) error

func writeMode(f *norflash.Flash, mode string) (writeFunc, error) {
	switch mode {
	case "verified":
		return f.Write, nil
	case "fast":
		return f.FastWrite, nil
	case "force":
		return f.ForceWrite, nil
	}
	return nil, fmt.Errorf("unknown write mode %q", mode)
}

func newWriteCmd() *cobra.Command {
	var (
		addrFlag string
		mode     string
		erase    bool
	)
	cmd := &cobra.Command{
		Use:   "write <file>",
		Short: "Write a binary or Intel HEX image to flash",
		Long: `Write a binary or Intel HEX image to flash.

Modes:
  verified  refuse to program bits that would need an erase (default)
  fast      program without looking at the current content
  force     rewrite the affected sectors when the content is incompatible`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32(addrFlag)
			if err != nil {
				return err
			}
			segs, err := loadImage(args[0], addr)
			if err != nil {
				return err
			}

			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()

			write, err := writeMode(s.flash, mode)
			if err != nil {
				return err
			}

			var total int64
			for _, seg := range segs {
				total += int64(len(seg.data))
			}
			if erase {
				if err := eraseSegments(s.flash, segs); err != nil {
					return err
				}
			}

			bar := newBar(total, "Writing")
			ss := uint32(s.flash.SectorSize())
			for _, seg := range segs {
				for _, c := range chunks(seg.addr, uint32(len(seg.data)), ss) {
					off := c.addr - seg.addr
					if err := write(region(), c.addr, seg.data[off:off+c.n]); err != nil {
						bar.Exit()
						return fmt.Errorf("write flash at 0x%06X failed: %w", c.addr, err)
					}
					bar.Add(int(c.n))
				}
			}
			bar.Finish()
			fmt.Printf("wrote %d bytes\n", total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&addrFlag, "addr", "a", "0", "start address of a binary image")
	cmd.Flags().StringVarP(&mode, "mode", "m", "verified", "write mode: verified, fast or force")
	cmd.Flags().BoolVarP(&erase, "erase", "e", false, "erase the sectors the image covers first")
	return cmd
}

func eraseSegments(f *norflash.Flash, segs []segment) error {
	if region() == norflash.Security {
		return errors.New("--erase is not supported with --security, use the erase command")
	}
	for _, seg := range segs {
		if err := eraseRange(f, seg.addr, uint32(len(seg.data))); err != nil {
			return err
		}
	}
	return nil
}
