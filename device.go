package norflash

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Programming header of the CH32V003 board, on channel A of the FT2232H:
//
//	ADBUS0 | SCK  -> flash CLK
//	ADBUS1 | MOSI -> flash DI
//	ADBUS2 | MISO <- flash DO
//	ADBUS4 | GPIO -> flash /CS
//	ADBUS7 | GPIO -> CH32V003 NRST, low keeps the MCU off the bus
//
// [W25Q512JV|6.1.1] accepts SPI mode 0 and 3, the MPSSE only does 0 and 2.
const (
	adapterClock = 30 * physic.MegaHertz // MPSSE maximum with divide-by-5 off
	adapterMode  = spi.Mode0
)

// USB IDs of the adapters the board is wired for.
var adapterIDs = []struct{ vendor, product uint16 }{
	{0x0403, 0x6010}, // FTDI FT2232H
}

var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("init periph host drivers: %w", err)
		}
	})
	return hostErr
}

// Device is the USB adapter on the programming header. While it is open the
// CH32V003 should be held in reset, otherwise both sides drive the flash.
type Device struct {
	FTDI  *ftdi.FT232H
	Flash *Flash

	nrst gpio.PinOut
}

// NewDevice opens the first attached adapter and returns it with a Flash on
// its SPI port. The MCU reset line is left untouched.
func NewDevice(opts ...Option) (*Device, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	ft, err := openAdapter()
	if err != nil {
		return nil, err
	}

	port, err := ft.SPI()
	if err != nil {
		return nil, fmt.Errorf("open MPSSE SPI on %s: %w", ft, err)
	}
	conn, err := port.Connect(adapterClock, adapterMode, 8)
	if err != nil {
		return nil, fmt.Errorf("configure SPI at %s: %w", adapterClock, err)
	}

	return &Device{
		FTDI:  ft,
		Flash: New(NewPeriphBus(conn, ft.D4), opts...),
		nrst:  ft.D7,
	}, nil
}

// HoldReset pulls NRST low so the CH32V003 releases the flash pins.
func (d *Device) HoldReset() error {
	if err := d.nrst.Out(gpio.Low); err != nil {
		return fmt.Errorf("hold MCU reset: %w", err)
	}
	return nil
}

// ReleaseReset lets the CH32V003 boot again.
func (d *Device) ReleaseReset() error {
	if err := d.nrst.Out(gpio.High); err != nil {
		return fmt.Errorf("release MCU reset: %w", err)
	}
	return nil
}

func openAdapter() (*ftdi.FT232H, error) {
	var info ftdi.Info
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		for _, id := range adapterIDs {
			if info.VenID != id.vendor || info.DevID != id.product {
				continue
			}
			// only the MPSSE-capable channel comes back as *FT232H
			if ft, ok := dev.(*ftdi.FT232H); ok {
				return ft, nil
			}
		}
	}
	return nil, errors.New("no FT2232H programming adapter attached")
}
