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

package tinyspi

import (
	"testing"

	mb4 "github.com/ZaparooProject/go-mb4"
	testutil "github.com/ZaparooProject/go-mb4/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// chipBus wires a drivers.SPI to the iC-MB4 simulator
type chipBus struct {
	chip *mb4.MockTransport
}

var _ drivers.SPI = (*chipBus)(nil)

func (b *chipBus) Tx(w, r []byte) error {
	for i, out := range w {
		in, err := b.chip.Transfer(out)
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

func (b *chipBus) Transfer(out byte) (byte, error) {
	return b.chip.Transfer(out)
}

func newTestTransport(t *testing.T) (*Transport, *mb4.MockTransport, *[]bool) {
	t.Helper()
	chip := mb4.NewMockTransport()
	var lines []bool
	transport, err := New(&chipBus{chip: chip}, func(active bool) {
		lines = append(lines, active)
		_ = chip.SetSelect(active)
	}, mb4.DefaultSettings())
	require.NoError(t, err)
	return transport, chip, &lines
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil, func(bool) {}, mb4.DefaultSettings())
	require.ErrorIs(t, err, mb4.ErrInvalidParameter)

	_, err = New(&chipBus{}, nil, mb4.DefaultSettings())
	require.ErrorIs(t, err, mb4.ErrInvalidParameter)

	_, _, lines := newTestTransport(t)
	assert.Equal(t, []bool{false}, *lines, "deselected on creation")
}

func TestBeginTransaction_Settings(t *testing.T) {
	t.Parallel()

	transport, _, _ := newTestTransport(t)
	require.NoError(t, transport.BeginTransaction(mb4.DefaultSettings()))

	faster := mb4.DefaultSettings()
	faster.Clock = 8 * physic.MegaHertz
	require.ErrorIs(t, transport.BeginTransaction(faster), mb4.ErrInvalidParameter)
}

func TestDevice_OverTinySPI(t *testing.T) {
	t.Parallel()

	transport, chip, lines := newTestTransport(t)
	device, err := mb4.New(transport)
	require.NoError(t, err)

	chip.SetRegister(mb4.RegSCRCStart1, 0xBE)
	chip.SetRegister(mb4.RegSCRCStart1+1, 0xEF)
	value, err := device.ReadRegister(mb4.RegSCRCStart1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xBEEF), value)

	require.NoError(t, device.WriteRegisters(mb4.RegSCRCStart1, []byte{0x01, 0x02}))
	assert.Equal(t, byte(0x02), chip.Register(mb4.RegSCRCStart1+1))

	chip.SetBank(testutil.BuildBank(99, testutil.StatusOK))
	raw, err := device.RawPosition()
	require.NoError(t, err)
	assert.Equal(t, uint32(99), raw)

	assert.False(t, (*lines)[len(*lines)-1], "ends deselected")
}

func TestClose(t *testing.T) {
	t.Parallel()

	transport, _, lines := newTestTransport(t)
	require.NoError(t, transport.SetSelect(true))
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	assert.Equal(t, []bool{false, true, false}, *lines)
	require.ErrorIs(t, transport.SetSelect(true), mb4.ErrTransportClosed)
	require.ErrorIs(t, transport.TransferBuffer([]byte{0}), mb4.ErrTransportClosed)
	assert.Equal(t, mb4.TransportTinyGo, transport.Type())
}
