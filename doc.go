// Package norflash drives a serial NOR flash chip over a full-duplex SPI bus.
//
// The driver exposes read, paged write, verified write and erase primitives
// for the main array and for the security register area. The last physical
// sector is kept as scratch space for force writes, so [Flash.Capacity]
// reports one sector less than the chip holds.
//
// A Flash is not safe for concurrent use. Callers sharing the bus must
// serialize access themselves.
//
// # References:
//
// SPI Flash
//   - [W25Q512JV]: W25Q512JV Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q512JV%20SPI%20RevD%2006252020%20133MHz.pdf)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
package norflash
