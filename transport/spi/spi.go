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

// Package spi provides a host SPI transport for the iC-MB4 with a GPIO select line
package spi

import (
	"fmt"
	"sync"

	mb4 "github.com/ZaparooProject/go-mb4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// wordBits is the SPI word size used for every transfer
const wordBits = 8

// Transport implements the mb4.Transport interface for a host SPI port.
// The chip select is driven through a GPIO pin so a transaction can span
// any number of transfers.
type Transport struct {
	port      spi.PortCloser
	conn      spi.Conn
	cs        gpio.PinOut
	busName   string
	out       []byte
	connected mb4.Settings
	rx        [1]byte
	tx        [1]byte
	mu        sync.Mutex
	closed    bool
}

// New opens busName (for example "/dev/spidev0.0" or "SPI0.0") and the GPIO
// select pin selectPin (for example "GPIO8").
func New(busName, selectPin string) (*Transport, error) {
	if selectPin == "" {
		return nil, fmt.Errorf("%w: select pin is required", mb4.ErrInvalidParameter)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", busName, err)
	}

	pin := gpioreg.ByName(selectPin)
	if pin == nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: unknown select pin %s", mb4.ErrInvalidParameter, selectPin)
	}

	transport, err := NewWithPort(port, pin, busName)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return transport, nil
}

// NewWithPort creates a transport on an already opened port and select pin.
// The select line is driven inactive (high) immediately.
func NewWithPort(port spi.PortCloser, cs gpio.PinOut, busName string) (*Transport, error) {
	if port == nil || cs == nil {
		return nil, fmt.Errorf("%w: nil port or select pin", mb4.ErrInvalidParameter)
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to drive select pin %s: %w", cs, err)
	}
	return &Transport{port: port, cs: cs, busName: busName}, nil
}

// BeginTransaction connects the port on first use. Later transactions must
// use the same settings since a periph port can only be connected once.
func (t *Transport) BeginTransaction(settings mb4.Settings) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return mb4.ErrTransportClosed
	}
	if t.conn != nil {
		if settings != t.connected {
			return fmt.Errorf("%w: bus settings changed after connect on %s", mb4.ErrInvalidParameter, t.busName)
		}
		return nil
	}

	mode := settings.Mode | spi.NoCS
	if settings.BitOrder == mb4.LSBFirst {
		mode |= spi.LSBFirst
	}
	conn, err := t.port.Connect(settings.Clock, mode, wordBits)
	if err != nil {
		return fmt.Errorf("failed to connect SPI port %s: %w", t.busName, err)
	}
	t.conn = conn
	t.connected = settings
	return nil
}

// Transfer shifts one byte out and returns the byte shifted in
func (t *Transport) Transfer(out byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ready(); err != nil {
		return 0, err
	}
	t.tx[0] = out
	if err := t.conn.Tx(t.tx[:], t.rx[:]); err != nil {
		return 0, fmt.Errorf("SPI transfer failed: %w", err)
	}
	return t.rx[0], nil
}

// TransferBuffer shifts buf out and overwrites it with the bytes shifted in
func (t *Transport) TransferBuffer(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ready(); err != nil {
		return err
	}
	t.out = append(t.out[:0], buf...)
	if err := t.conn.Tx(t.out, buf); err != nil {
		return fmt.Errorf("SPI transfer of %d bytes failed: %w", len(buf), err)
	}
	return nil
}

// SetSelect drives the active-low select pin
func (t *Transport) SetSelect(active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return mb4.ErrTransportClosed
	}
	level := gpio.High
	if active {
		level = gpio.Low
	}
	if err := t.cs.Out(level); err != nil {
		return fmt.Errorf("failed to drive select pin: %w", err)
	}
	return nil
}

// EndTransaction is a no-op; the connection stays open between transactions
func (*Transport) EndTransaction() error {
	return nil
}

// Close releases the select line and closes the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	_ = t.cs.Out(gpio.High)
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close SPI port %s: %w", t.busName, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() mb4.TransportType {
	return mb4.TransportSPI
}

func (t *Transport) ready() error {
	if t.closed {
		return mb4.ErrTransportClosed
	}
	if t.conn == nil {
		return fmt.Errorf("%w: transfer outside a transaction", mb4.ErrInvalidParameter)
	}
	return nil
}

var _ mb4.Transport = (*Transport)(nil)
