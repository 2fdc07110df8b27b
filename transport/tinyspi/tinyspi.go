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

// Package tinyspi adapts a TinyGo SPI peripheral to the iC-MB4 transport.
//
// The bus is configured by the board code before it is handed over, so
// BeginTransaction only checks that the requested settings are the ones the
// board was set up with.
package tinyspi

import (
	"fmt"

	mb4 "github.com/ZaparooProject/go-mb4"
	"tinygo.org/x/drivers"
)

// SelectFunc drives the select line; true selects the device
type SelectFunc func(active bool)

// Transport implements the mb4.Transport interface on a drivers.SPI
type Transport struct {
	bus        drivers.SPI
	selectLine SelectFunc
	out        []byte
	settings   mb4.Settings
	closed     bool
}

// New creates a transport on bus, configured by the caller with settings.
// selectLine is called with true before and false after every transaction.
func New(bus drivers.SPI, selectLine SelectFunc, settings mb4.Settings) (*Transport, error) {
	if bus == nil || selectLine == nil {
		return nil, fmt.Errorf("%w: nil bus or select line", mb4.ErrInvalidParameter)
	}
	selectLine(false)
	return &Transport{bus: bus, selectLine: selectLine, settings: settings}, nil
}

// BeginTransaction rejects settings the bus was not configured with
func (t *Transport) BeginTransaction(settings mb4.Settings) error {
	if t.closed {
		return mb4.ErrTransportClosed
	}
	if settings != t.settings {
		return fmt.Errorf("%w: bus configured for %s %s, transaction wants %s %s", mb4.ErrInvalidParameter,
			t.settings.Clock, t.settings.BitOrder, settings.Clock, settings.BitOrder)
	}
	return nil
}

// Transfer shifts one byte out and returns the byte shifted in
func (t *Transport) Transfer(out byte) (byte, error) {
	if t.closed {
		return 0, mb4.ErrTransportClosed
	}
	return t.bus.Transfer(out)
}

// TransferBuffer shifts buf out and overwrites it with the bytes shifted in
func (t *Transport) TransferBuffer(buf []byte) error {
	if t.closed {
		return mb4.ErrTransportClosed
	}
	t.out = append(t.out[:0], buf...)
	return t.bus.Tx(t.out, buf)
}

// SetSelect calls the select line function
func (t *Transport) SetSelect(active bool) error {
	if t.closed {
		return mb4.ErrTransportClosed
	}
	t.selectLine(active)
	return nil
}

// EndTransaction is a no-op
func (*Transport) EndTransaction() error {
	return nil
}

// Close deselects the device; the bus belongs to the board code
func (t *Transport) Close() error {
	if !t.closed {
		t.selectLine(false)
		t.closed = true
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() mb4.TransportType {
	return mb4.TransportTinyGo
}

var _ mb4.Transport = (*Transport)(nil)
