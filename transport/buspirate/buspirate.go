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

// Package buspirate provides an SPI transport through a Bus Pirate in binary
// SPI mode, for driving an iC-MB4 from a workstation over USB.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
	"github.com/ZaparooProject/go-mb4/internal/transport"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Binary mode commands
const (
	cmdReset        = 0x00 // bitbang reset, or leave SPI mode
	cmdEnterSPI     = 0x01
	cmdSelectLow    = 0x02
	cmdSelectHigh   = 0x03
	cmdHardwareRst  = 0x0F
	cmdBulkTransfer = 0x10 // low nibble is count-1
	cmdSpeed        = 0x60 // low 3 bits select the clock rate
	cmdConfig       = 0x80 // 1000wxyz

	configOutput33V    = 0x08 // w: 3.3V push-pull outputs
	configIdleHigh     = 0x04 // x: CKP
	configActiveToIdle = 0x02 // y: CKE
	configSampleEnd    = 0x01 // z: SMP

	ack          = 0x01
	maxBulk      = 16
	resetRetries = 20
)

var (
	bitbangBanner = []byte("BBIO1")
	spiBanner     = []byte("SPI1")
)

// speeds holds the clock rates selectable by cmdSpeed, indexed by the low bits
var speeds = []physic.Frequency{
	30 * physic.KiloHertz,
	125 * physic.KiloHertz,
	250 * physic.KiloHertz,
	1 * physic.MegaHertz,
	2 * physic.MegaHertz,
	2600 * physic.KiloHertz,
	4 * physic.MegaHertz,
	8 * physic.MegaHertz,
}

// Transport implements the mb4.Transport interface for a Bus Pirate
type Transport struct {
	port     serial.Port
	portName string
	buf      []byte
	applied  mb4.Settings
	mu       sync.Mutex
	timeout  time.Duration
	closed   bool
}

// New opens portName and switches the Bus Pirate into binary SPI mode
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	t, err := NewWithPort(port, portName)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewWithPort runs the binary mode handshake on an already opened port
func NewWithPort(port serial.Port, portName string) (*Transport, error) {
	t := &Transport{
		port:     port,
		portName: portName,
		timeout:  100 * time.Millisecond,
	}
	if err := port.SetReadTimeout(t.timeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := t.enterSPI(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transport) enterSPI() error {
	_ = t.port.ResetInputBuffer()

	_, err := transport.WithRetry(transport.RetryConfig{
		Description: "enter binary mode",
		Transport:   mb4.TransportBusPirate,
		MaxRetries:  resetRetries - 1,
		OnRetry: func() error {
			// Drop a partial banner so the next attempt starts aligned
			if err := t.port.ResetInputBuffer(); err != nil {
				return t.transportError("enter binary mode", err)
			}
			return nil
		},
	}, func() (struct{}, bool, error) {
		if _, err := t.port.Write([]byte{cmdReset}); err != nil {
			return struct{}{}, false, fmt.Errorf("failed to write reset: %w", err)
		}
		reply, err := t.read(len(bitbangBanner))
		if err != nil || !bytes.Equal(reply, bitbangBanner) {
			return struct{}{}, true, nil //nolint:nilerr // no banner yet, keep resetting
		}
		return struct{}{}, false, nil
	})
	if err != nil {
		return err
	}

	// Extra banners may still be queued from the reset loop
	_ = t.port.ResetInputBuffer()

	if _, err := t.port.Write([]byte{cmdEnterSPI}); err != nil {
		return t.transportError("enter SPI", err)
	}
	reply, err := t.read(len(spiBanner))
	if err != nil {
		return t.transportError("enter SPI", err)
	}
	if !bytes.Equal(reply, spiBanner) {
		return t.transportError("enter SPI", fmt.Errorf("%w: banner %q", mb4.ErrUnexpectedResponse, reply))
	}
	return nil
}

// BeginTransaction applies clock rate and clock mode when they differ from
// the previous transaction. The Bus Pirate only shifts MSB first.
func (t *Transport) BeginTransaction(settings mb4.Settings) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return mb4.ErrTransportClosed
	}
	if settings == t.applied {
		return nil
	}
	if settings.BitOrder != mb4.MSBFirst {
		return fmt.Errorf("%w: bus pirate does not support %s", mb4.ErrInvalidParameter, settings.BitOrder)
	}

	speed, err := speedIndex(settings.Clock)
	if err != nil {
		return err
	}
	config, err := configBits(settings.Mode)
	if err != nil {
		return err
	}

	if err := t.command("set speed", cmdSpeed|speed); err != nil {
		return err
	}
	if err := t.command("configure", cmdConfig|config); err != nil {
		return err
	}
	t.applied = settings
	return nil
}

// speedIndex picks the fastest rate not above clock
func speedIndex(clock physic.Frequency) (byte, error) {
	if clock < speeds[0] {
		return 0, fmt.Errorf("%w: clock %s below %s", mb4.ErrInvalidParameter, clock, speeds[0])
	}
	var index byte
	for i, f := range speeds {
		if f <= clock {
			index = byte(i)
		}
	}
	return index, nil
}

func configBits(mode spi.Mode) (byte, error) {
	bits := byte(configOutput33V)
	switch mode &^ (spi.NoCS | spi.HalfDuplex | spi.LSBFirst) {
	case spi.Mode0:
		bits |= configActiveToIdle
	case spi.Mode1:
	case spi.Mode2:
		bits |= configIdleHigh | configActiveToIdle
	case spi.Mode3:
		bits |= configIdleHigh
	default:
		return 0, fmt.Errorf("%w: spi mode %v", mb4.ErrInvalidParameter, mode)
	}
	return bits, nil
}

// Transfer shifts one byte out and returns the byte shifted in
func (t *Transport) Transfer(out byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf[:0], out)
	if err := t.bulk(t.buf); err != nil {
		return 0, err
	}
	return t.buf[0], nil
}

// TransferBuffer shifts buf out in chunks of up to 16 bytes and overwrites it
// with the bytes shifted in
func (t *Transport) TransferBuffer(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for start := 0; start < len(buf); start += maxBulk {
		end := min(start+maxBulk, len(buf))
		if err := t.bulk(buf[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) bulk(chunk []byte) error {
	if t.closed {
		return mb4.ErrTransportClosed
	}

	frame := make([]byte, 0, len(chunk)+1)
	frame = append(frame, cmdBulkTransfer|byte(len(chunk)-1))
	frame = append(frame, chunk...)
	if _, err := t.port.Write(frame); err != nil {
		return t.transportError("bulk transfer", err)
	}

	reply, err := t.read(len(chunk) + 1)
	if err != nil {
		return t.transportError("bulk transfer", err)
	}
	if reply[0] != ack {
		return t.transportError("bulk transfer", fmt.Errorf("%w: 0x%02X", mb4.ErrUnexpectedResponse, reply[0]))
	}
	copy(chunk, reply[1:])
	return nil
}

// SetSelect drives the Bus Pirate CS pin, active low
func (t *Transport) SetSelect(active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return mb4.ErrTransportClosed
	}
	if active {
		return t.command("select", cmdSelectLow)
	}
	return t.command("deselect", cmdSelectHigh)
}

// EndTransaction is a no-op; settings persist on the Bus Pirate
func (*Transport) EndTransaction() error {
	return nil
}

// Close returns the Bus Pirate to its terminal and closes the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	_, _ = t.port.Write([]byte{cmdReset, cmdHardwareRst})
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() mb4.TransportType {
	return mb4.TransportBusPirate
}

// command sends a one byte command and waits for its acknowledgement
func (t *Transport) command(op string, cmd byte) error {
	if _, err := t.port.Write([]byte{cmd}); err != nil {
		return t.transportError(op, err)
	}
	reply, err := t.read(1)
	if err != nil {
		return t.transportError(op, err)
	}
	if reply[0] != ack {
		return t.transportError(op, fmt.Errorf("%w: 0x%02X", mb4.ErrUnexpectedResponse, reply[0]))
	}
	return nil
}

// read reads exactly n bytes; a read that returns nothing within the port
// timeout ends with ErrTransportTimeout
func (t *Transport) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		r, err := t.port.Read(buf[got:])
		if err != nil && !errors.Is(err, io.EOF) {
			return buf[:got], fmt.Errorf("serial read failed: %w", err)
		}
		if r == 0 {
			return buf[:got], fmt.Errorf("%w: got %d of %d bytes", mb4.ErrTransportTimeout, got, n)
		}
		got += r
	}
	return buf, nil
}

func (t *Transport) transportError(op string, err error) error {
	return mb4.NewTransportError(op, mb4.TransportBusPirate, err)
}

var _ mb4.Transport = (*Transport)(nil)
