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

package mb4

import (
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Transport defines the byte-level interface to the serial bus the iC-MB4 sits on.
// This can be implemented by a Linux spidev, a USB bridge, or a microcontroller SPI peripheral.
//
// A transport owns the select line of exactly one device. Implementations that share
// their bus with other peripherals should also implement sync.Locker; the Device then
// holds that lock for each transaction and for the whole bank-locked read region.
type Transport interface {
	// BeginTransaction applies clock rate, bit order and clock mode for the next exchange
	BeginTransaction(settings Settings) error

	// Transfer shifts one byte out and returns the byte shifted in
	Transfer(out byte) (byte, error)

	// TransferBuffer shifts buf out and overwrites it with the bytes shifted in
	TransferBuffer(buf []byte) error

	// SetSelect drives the select line; true selects the device
	SetSelect(active bool) error

	// EndTransaction releases the settings applied by BeginTransaction
	EndTransaction() error

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents a host SPI controller (spidev via periph.io).
	TransportSPI TransportType = "spi"
	// TransportBusPirate represents a Bus Pirate USB-serial SPI bridge.
	TransportBusPirate TransportType = "buspirate"
	// TransportTinyGo represents a microcontroller SPI peripheral.
	TransportTinyGo TransportType = "tinygo"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// BitOrder selects which end of each byte is shifted first.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

func (o BitOrder) String() string {
	if o == LSBFirst {
		return "lsb-first"
	}
	return "msb-first"
}

// Settings describes the bus parameters of one transaction.
type Settings struct {
	Clock    physic.Frequency
	BitOrder BitOrder
	Mode     spi.Mode
}

// DefaultSettings returns the bus settings the iC-MB4 SPI interface expects:
// 1 MHz, most significant bit first, clock idle low with sampling on the leading edge.
func DefaultSettings() Settings {
	return Settings{
		Clock:    physic.MegaHertz,
		BitOrder: MSBFirst,
		Mode:     spi.Mode0,
	}
}
