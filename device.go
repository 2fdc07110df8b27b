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
	"fmt"
	"io"
	"log/slog"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Logger receives status transitions and bring-up diagnostics
	Logger *slog.Logger
	// StatusObserver is called on every status transition
	StatusObserver StatusObserver
	// BringUp is the register configuration applied by Configure
	BringUp BringUpConfig
	// Correction holds the strip wraparound rules applied by Position
	Correction Correction
	// Bus holds the SPI settings used for every transaction
	Bus Settings
	// Offset is subtracted from every converted position
	Offset float64
	// ConversionFactor converts one encoder LSB to a physical distance
	ConversionFactor float64
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		BringUp:          DefaultBringUpConfig(),
		Correction:       DefaultCorrection(),
		Bus:              DefaultSettings(),
		ConversionFactor: ConversionFactor,
	}
}

// Device represents an iC-MB4 master with one BiSS-C encoder on channel 1.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization. If the
// transport is shared with other peripherals it should implement sync.Locker
// so bank-locked reads are not interleaved with foreign transactions.
type Device struct {
	transport   Transport
	config      *DeviceConfig
	logger      *slog.Logger
	settings    Settings
	rawPosition uint32
	status      Status
	busHeld     bool
	closed      bool

	// Fixed buffers to avoid per-call heap allocations.
	tx [1]byte
	rx [maxReadLen]byte
}

// New creates a new iC-MB4 device with the given transport. It does not touch
// the bus; call Configure to bring the chip up.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	device.logger = device.config.Logger.With("transport", string(transport.Type()))
	device.settings = device.config.Bus
	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Status returns the status of the most recent position read
func (d *Device) Status() Status {
	return d.status
}

// LastRawPosition returns the last committed raw position without touching the bus
func (d *Device) LastRawPosition() uint32 {
	return d.rawPosition
}

// Offset returns the configured distance offset
func (d *Device) Offset() float64 {
	return d.config.Offset
}

// ClearAlarm resets a latched encoder alarm. The next position read is
// classified from scratch.
func (d *Device) ClearAlarm() {
	if d.status != StatusEncoderAlarm {
		return
	}
	d.logger.Info("encoder alarm cleared")
	prev := d.status
	d.status = StatusNoErrors
	if d.config.StatusObserver != nil {
		d.config.StatusObserver(prev, d.status)
	}
}

// VersionInfo identifies the iC-MB4 silicon
type VersionInfo struct {
	Version  byte
	Revision byte
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("version 0x%02X revision 0x%02X", v.Version, v.Revision)
}

// Version reads the chip version and revision registers
func (d *Device) Version() (VersionInfo, error) {
	version, err := d.ReadRegister(RegVersion, 1)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("read version: %w", err)
	}
	revision, err := d.ReadRegister(RegRevision, 1)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("read revision: %w", err)
	}
	return VersionInfo{Version: byte(version), Revision: byte(revision)}, nil
}

// DataBank reads all eight sensor data registers under the bank lock
func (d *Device) DataBank() ([DataBankSize]byte, error) {
	var bank [DataBankSize]byte
	err := d.withBankLocked(func() error {
		for i := range bank {
			v, err := d.ReadRegister(RegSCData1+Register(i), 1)
			if err != nil {
				return fmt.Errorf("read data bank byte %d: %w", i, err)
			}
			bank[i] = byte(v)
		}
		return nil
	})
	return bank, err
}

// DumpRegisters reads the configuration and status registers that matter
// when diagnosing a link
func (d *Device) DumpRegisters() ([]RegisterValue, error) {
	values := make([]RegisterValue, 0, len(diagnosticRegisters))
	for _, reg := range diagnosticRegisters {
		v, err := d.ReadRegister(reg, 1)
		if err != nil {
			return values, fmt.Errorf("read %s: %w", reg, err)
		}
		values = append(values, RegisterValue{Register: reg, Value: byte(v)})
	}
	return values, nil
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
