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
	"errors"
	"sync"
	"testing"

	"github.com/ZaparooProject/go-mb4/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func newTestDevice(t *testing.T, opts ...Option) (*Device, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	device, err := New(mock, opts...)
	require.NoError(t, err)
	return device, mock
}

func TestReadRegister_MSBFirst(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetRegister(RegSCRCStart1, 0x12)
	mock.SetRegister(RegSCRCStart1+1, 0x34)

	value, err := device.ReadRegister(RegSCRCStart1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), value)

	txs := mock.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, byte(frame.OpReadData), txs[0].Opcode)
	assert.Equal(t, byte(RegSCRCStart1), txs[0].Address)
	assert.Equal(t, []byte{0x12, 0x34}, txs[0].Data)
}

func TestReadRegister_Widths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		regs  []byte
		want  uint32
		count int
	}{
		{name: "single", count: 1, regs: []byte{0xA5}, want: 0xA5},
		{name: "three", count: 3, regs: []byte{0x01, 0x02, 0x03}, want: 0x010203},
		{name: "four", count: 4, regs: []byte{0xDE, 0xAD, 0xBE, 0xEF}, want: 0xDEADBEEF},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock := newTestDevice(t)
			for i, b := range tt.regs {
				mock.SetRegister(RegCDSStatus0+Register(i), b)
			}

			value, err := device.ReadRegister(RegCDSStatus0, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestReadRegister_InvalidCount(t *testing.T) {
	t.Parallel()

	for _, count := range []int{-1, 0, 5} {
		device, mock := newTestDevice(t)

		_, err := device.ReadRegister(RegStatus, count)
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Empty(t, mock.Transactions(), "count %d must not reach the bus", count)
	}
}

func TestWriteRegister(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)

	require.NoError(t, device.WriteRegister(RegFreqAGS, 0x81))
	assert.Equal(t, byte(0x81), mock.Register(RegFreqAGS))

	txs := mock.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, byte(frame.OpWriteData), txs[0].Opcode)
	assert.Equal(t, byte(RegFreqAGS), txs[0].Address)
	assert.Equal(t, []byte{0x81}, txs[0].Data)
}

func TestWriteRegisters(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	data := []byte{0xAB, 0xCD}

	require.NoError(t, device.WriteRegisters(RegSCRCStart1, data))
	assert.Equal(t, byte(0xAB), mock.Register(RegSCRCStart1))
	assert.Equal(t, byte(0xCD), mock.Register(RegSCRCStart1+1))
	assert.Equal(t, []byte{0xAB, 0xCD}, data, "caller buffer must not be overwritten")

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		dev, _ := newTestDevice(t)
		require.ErrorIs(t, dev.WriteRegisters(RegSCRCStart1, nil), ErrInvalidParameter)
	})

	t.Run("overrun", func(t *testing.T) {
		t.Parallel()
		dev, _ := newTestDevice(t)
		require.ErrorIs(t, dev.WriteRegisters(RegCDSStatus1, make([]byte, 8)), ErrInvalidParameter)
	})
}

func TestWriteInstruction_NoAddress(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)

	require.NoError(t, device.WriteInstruction(InstrAutoGetSensor))

	txs := mock.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, byte(frame.OpWriteInstruction), txs[0].Opcode)
	assert.Equal(t, []byte{InstrAutoGetSensor}, txs[0].Data)
	assert.Equal(t, InstrAutoGetSensor, mock.Register(RegInstruction))
}

func TestExchange_ReleasesSelectOnError(t *testing.T) {
	t.Parallel()

	errBus := errors.New("bus fault")
	device, mock := newTestDevice(t)
	mock.SetReadError(RegStatus, errBus)

	_, err := device.ReadRegister(RegStatus, 1)
	require.ErrorIs(t, err, errBus)
	assert.True(t, IsTransportError(err))
	assert.False(t, mock.Selected(), "select line must be released")
	assert.False(t, mock.InTransaction(), "transaction must be ended")

	mock.SetReadError(RegStatus, nil)
	_, err = device.ReadRegister(RegStatus, 1)
	require.NoError(t, err)
}

func TestExchange_SelectFailure(t *testing.T) {
	t.Parallel()

	errPin := errors.New("pin busy")
	device, mock := newTestDevice(t)
	mock.SetSelectError(errPin)

	err := device.WriteRegister(RegChannelSel, Channel1)
	require.ErrorIs(t, err, errPin)
	assert.False(t, mock.Selected())
	assert.False(t, mock.InTransaction())
}

// ackLostTransport drives the select line and then reports the assert as
// failed, like a bridge whose acknowledgement never arrives
type ackLostTransport struct {
	*MockTransport
}

var errAckTimeout = errors.New("ack timeout")

func (a *ackLostTransport) SetSelect(active bool) error {
	if err := a.MockTransport.SetSelect(active); err != nil {
		return err
	}
	if active {
		return errAckTimeout
	}
	return nil
}

func TestExchange_ReleasesSelectAfterFailedAssert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call func(*Device) error
		name string
	}{
		{name: "read register", call: func(d *Device) error {
			_, err := d.ReadRegister(RegVersion, 1)
			return err
		}},
		{name: "write register", call: func(d *Device) error {
			return d.WriteRegister(RegChannelSel, Channel1)
		}},
		{name: "raw position", call: func(d *Device) error {
			_, err := d.RawPosition()
			return err
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus := &ackLostTransport{MockTransport: NewMockTransport()}
			device, err := New(bus)
			require.NoError(t, err)

			err = tt.call(device)
			require.ErrorIs(t, err, errAckTimeout)
			assert.True(t, IsTransportError(err))
			assert.False(t, bus.Selected(), "select line must be released")
			assert.False(t, bus.InTransaction())
			assert.Zero(t, bus.LockCount())
		})
	}
}

func TestExchange_DirectionMismatch(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)

	err := device.exchange("test", frame.OpReadData, byte(RegVersion), []byte{0x01}, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	err = device.exchange("test", frame.OpWriteData, byte(RegVersion), nil, make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidParameter)

	assert.Empty(t, mock.Transactions())
	assert.False(t, mock.Selected())
}

func TestExchange_DefaultSettings(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	_, err := device.ReadRegister(RegVersion, 1)
	require.NoError(t, err)

	settings := mock.Settings()
	assert.Equal(t, physic.MegaHertz, settings.Clock)
	assert.Equal(t, MSBFirst, settings.BitOrder)
	assert.Equal(t, spi.Mode0, settings.Mode)
}

func TestExchange_ClosedDevice(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	require.NoError(t, device.Close())
	require.NoError(t, device.Close())

	_, err := device.ReadRegister(RegVersion, 1)
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.Empty(t, mock.Transactions())
}

// sharedBus is a mock transport whose bus is shared with other peripherals
type sharedBus struct {
	*MockTransport
	mu    sync.Mutex
	locks int
}

func (s *sharedBus) Lock() {
	s.mu.Lock()
	s.locks++
}

func (s *sharedBus) Unlock() {
	s.mu.Unlock()
}

func TestSharedBus_HeldAcrossBankRead(t *testing.T) {
	t.Parallel()

	bus := &sharedBus{MockTransport: NewMockTransport()}
	device, err := New(bus)
	require.NoError(t, err)

	_, err = device.RawPosition()
	require.NoError(t, err)
	assert.Equal(t, 1, bus.locks, "bank-locked read must hold the bus once")

	_, err = device.ReadRegister(RegVersion, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, bus.locks)

	require.True(t, bus.mu.TryLock(), "bus must be released")
	bus.mu.Unlock()
}

func TestUpdateRegister(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetRegister(RegFreq, 0xFF)

	require.NoError(t, device.updateRegister(RegFreq, 0x1F, 0x03))
	assert.Equal(t, byte(0xE3), mock.Register(RegFreq))
}
