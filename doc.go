// go-mb4
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-mb4.
//
// go-mb4 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-mb4 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-mb4; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

/*
Package mb4 provides a pure Go driver for the iC-MB4 BiSS/SSI encoder master.

The iC-MB4 clocks an absolute encoder on its BiSS-C interface and exposes the
sampled single cycle data through a small register file reachable over SPI.
This library configures the chip for one encoder on channel 1, reads the raw
position under the data bank lock, classifies the encoder status and converts
raw counts to a physical distance with the strip wraparound correction applied.

Features:
  - Multiple transport support: Linux spidev (periph.io), Bus Pirate, TinyGo
  - Register level access with BiSS opcode framing
  - Bank-locked position reads that always release the lock
  - Sticky encoder alarm with explicit ClearAlarm
  - Device detection for spidev buses and USB serial bridges
  - Polling monitor with link health tracking

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-mb4"
	    "github.com/ZaparooProject/go-mb4/transport/spi"
	)

	// Open the SPI bus with GPIO8 as chip select
	transport, err := spi.New("/dev/spidev0.0", "GPIO8")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := mb4.New(transport, mb4.WithOffset(12.5))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	// Apply the register configuration and wait for the first sensor cycle
	if err := device.Configure(ctx); err != nil {
	    log.Fatal(err)
	}

	pos, err := device.Position()
	if err != nil {
	    log.Printf("read failed, last position %.4f: %v", pos, err)
	}
	fmt.Printf("%.4f (%s)\n", pos, device.Status())

Transport Selection:

  - spi: Linux spidev through periph.io with a GPIO driven select line
  - buspirate: Bus Pirate binary SPI mode over a USB serial port
  - tinyspi: any tinygo.org/x/drivers SPI bus on microcontrollers

A Device is not safe for concurrent use. When the bus is shared with other
peripherals the transport should implement sync.Locker; the device then
holds the lock for the whole lock, read, unlock sequence.

Error Handling:

Bus failures are returned as *TransportError and can be tested with
IsTransportError. Position and RawPosition return the last good value
together with any error, so callers can keep displaying it. Encoder
problems are not errors; they are reported through Status.
*/
package mb4
