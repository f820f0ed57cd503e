package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/spf13/cobra"
)

const readChunk = 64 << 10

func newReadCmd() *cobra.Command {
	var (
		addrFlag string
		nread    uint32
		outFile  string
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read flash memory",
		Long: `Read flash memory and print a hex dump, or save it with -o.

Files ending in .hex are written as Intel HEX, anything else as raw binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32(addrFlag)
			if err != nil {
				return err
			}
			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := checkSpan(s.flash, addr, nread); err != nil {
				return err
			}

			data := make([]byte, nread)
			var bar progress = nopBar{}
			if outFile != "" {
				bar = newBar(int64(nread), "Reading")
			}
			for _, c := range chunks(addr, nread, readChunk) {
				off := c.addr - addr
				if err := s.flash.Read(region(), c.addr, data[off:off+c.n]); err != nil {
					return fmt.Errorf("read flash failed: %w", err)
				}
				bar.Add(int(c.n))
			}
			bar.Finish()

			if outFile == "" {
				fmt.Print(hex.Dump(data))
				return nil
			}
			return saveImage(outFile, addr, data)
		},
	}
	cmd.Flags().StringVarP(&addrFlag, "addr", "a", "0", "start address")
	cmd.Flags().Uint32VarP(&nread, "length", "n", 256, "number of bytes to read")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: hexdump)")
	return cmd
}

type progress interface {
	Add(n int) error
	Finish() error
}

type nopBar struct{}

func (nopBar) Add(int) error { return nil }
func (nopBar) Finish() error { return nil }

func saveImage(name string, addr uint32, data []byte) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(name), ".hex") {
		mem := gohex.NewMemory()
		if err := mem.AddBinary(addr, data); err != nil {
			return err
		}
		if err := mem.DumpIntelHex(f, 16); err != nil {
			return fmt.Errorf("write Intel HEX failed: %w", err)
		}
	} else if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Close()
}
