package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gentam/norflash"
	"github.com/gentam/norflash/buspirate"
)

var (
	busFlag      string
	portFlag     string
	speedFlag    string
	securityFlag bool
	verboseFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "norflash",
		Short: "Read, write and erase SPI NOR flash",
		Long: `norflash talks to a W25Q-style SPI NOR flash through an FT2232H
(MPSSE) or a Bus Pirate.

With the FT2232H the microcontroller that owns the flash is held in reset
for the duration of the command.`,
		SilenceUsage: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&busFlag, "bus", "ftdi", "SPI adapter: ftdi or buspirate")
	pf.StringVarP(&portFlag, "port", "p", "", "Bus Pirate serial port")
	pf.StringVar(&speedFlag, "speed", "8MHz", "Bus Pirate SPI clock")
	pf.BoolVar(&securityFlag, "security", false, "address the security registers instead of the main array")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "log flash operations to stderr")

	rootCmd.AddCommand(
		newInfoCmd(),
		newIDCmd(),
		newStatusCmd(),
		newReadCmd(),
		newWriteCmd(),
		newEraseCmd(),
		newFlashInfoCmd(),
		newMonitorCmd(),
		newPortsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func region() norflash.Region {
	if securityFlag {
		return norflash.Security
	}
	return norflash.Main
}

var speeds = map[string]buspirate.Speed{
	"30khz":  buspirate.Speed30kHz,
	"125khz": buspirate.Speed125kHz,
	"250khz": buspirate.Speed250kHz,
	"1mhz":   buspirate.Speed1MHz,
	"2mhz":   buspirate.Speed2MHz,
	"2.6mhz": buspirate.Speed2_6MHz,
	"4mhz":   buspirate.Speed4MHz,
	"8mhz":   buspirate.Speed8MHz,
}

func parseSpeed(s string) (buspirate.Speed, error) {
	sp, ok := speeds[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown Bus Pirate speed %q", s)
	}
	return sp, nil
}

func options() []norflash.Option {
	if !verboseFlag {
		return nil
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return []norflash.Option{norflash.WithLogger(slog.New(h))}
}

// session is an opened flash plus whatever must be undone when the command
// finishes.
type session struct {
	flash  *norflash.Flash
	device *norflash.Device // nil unless --bus=ftdi
	id     [3]byte
	name   string

	cleanup []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		errs = append(errs, s.cleanup[i]())
	}
	return errors.Join(errs...)
}

// openFlash connects to the adapter, powers the flash up and identifies it.
func openFlash() (*session, error) {
	s := &session{}
	switch busFlag {
	case "ftdi":
		d, err := norflash.NewDevice(options()...)
		if err != nil {
			return nil, err
		}
		if err := d.HoldReset(); err != nil {
			return nil, fmt.Errorf("hold reset: %w", err)
		}
		s.device = d
		s.flash = d.Flash
		s.cleanup = append(s.cleanup, d.ReleaseReset)
	case "buspirate":
		if portFlag == "" {
			return nil, errors.New("--port is required with --bus=buspirate")
		}
		speed, err := parseSpeed(speedFlag)
		if err != nil {
			return nil, err
		}
		bp, err := buspirate.Open(portFlag, speed)
		if err != nil {
			return nil, err
		}
		s.flash = norflash.New(bp, options()...)
		s.cleanup = append(s.cleanup, bp.Close)
	default:
		return nil, fmt.Errorf("unknown bus %q", busFlag)
	}

	if err := s.flash.PowerUp(); err != nil {
		s.Close()
		return nil, fmt.Errorf("flash power up failed: %w", err)
	}
	s.cleanup = append(s.cleanup, s.flash.PowerDown)

	id, name, err := s.flash.ReadID()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("read flash ID failed: %w", err)
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "unknown flash ID (%X), assuming %d bytes\n", id, s.flash.Geometry().Size)
	}
	s.id, s.name = id, name
	return s, nil
}
