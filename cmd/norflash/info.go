package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"periph.io/x/host/v3/ftdi"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show adapter and flash details",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
}

func newIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print the JEDEC ID of the flash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Printf("%X\t%s\n", s.id, s.name)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the flash status register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()
			sr, err := s.flash.ReadStatusRegister()
			if err != nil {
				return fmt.Errorf("read flash status register failed: %w", err)
			}
			fmt.Println(sr)
			return nil
		},
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openFlash()
	if err != nil {
		return err
	}
	defer s.Close()

	if s.device != nil {
		if err := printFTDI(s.device.FTDI); err != nil {
			return err
		}
		fmt.Println()
	}

	sr, err := s.flash.ReadStatusRegister()
	if err != nil {
		return fmt.Errorf("read flash status register failed: %w", err)
	}
	g := s.flash.Geometry()
	fmt.Printf("Flash ID:        %X\n", s.id)
	fmt.Printf("Flash:           %s\n", s.name)
	fmt.Printf("Size:            %d bytes\n", g.Size)
	fmt.Printf("Usable:          %d bytes\n", s.flash.Capacity())
	fmt.Printf("Page:            %d bytes\n", s.flash.PageSize())
	fmt.Printf("Sector:          %d bytes\n", s.flash.SectorSize())
	fmt.Printf("Scratch:         %#06x\n", g.ScratchAddr())
	fmt.Printf("Status:          %s\n", sr)
	return nil
}

// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
func printFTDI(ft *ftdi.FT232H) error {
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Type:            %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		return fmt.Errorf("failed to read EEPROM: %w", err)
	}
	fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
	fmt.Printf("Desc:            %s\n", ee.Desc)
	fmt.Printf("Serial:          %s\n", ee.Serial)

	h := ee.AsHeader()
	fmt.Printf("MaxPower:        %dmA\n", h.MaxPower)
	return nil
}
