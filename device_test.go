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
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	testutil "github.com/ZaparooProject/go-mb4/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport Transport
		name      string
		opts      []Option
		wantErr   bool
	}{
		{name: "Valid_MockTransport", transport: NewMockTransport()},
		{name: "Nil_Transport", transport: nil, wantErr: true},
		{name: "NaN_Offset", transport: NewMockTransport(), opts: []Option{WithOffset(math.NaN())}, wantErr: true},
		{name: "Zero_Factor", transport: NewMockTransport(), opts: []Option{WithConversionFactor(0)}, wantErr: true},
		{name: "Negative_Factor", transport: NewMockTransport(), opts: []Option{WithConversionFactor(-1)}, wantErr: true},
		{name: "Nil_Logger", transport: NewMockTransport(), opts: []Option{WithLogger(nil)}, wantErr: true},
		{name: "Negative_Settle", transport: NewMockTransport(), opts: []Option{WithSettleDelay(-1)}, wantErr: true},
		{name: "Zero_Clock", transport: NewMockTransport(), opts: []Option{WithBusSettings(Settings{})}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.transport, tt.opts...)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				assert.Nil(t, device)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.transport, device.Transport())
			assert.Equal(t, StatusNoErrors, device.Status())
			assert.Zero(t, device.LastRawPosition())
		})
	}
}

func TestNew_DoesNotTouchBus(t *testing.T) {
	t.Parallel()

	_, mock := newTestDevice(t)
	assert.Empty(t, mock.Transactions())
}

func TestWithBusSettings(t *testing.T) {
	t.Parallel()

	settings := DefaultSettings()
	settings.Clock = 4 * physic.MegaHertz
	device, mock := newTestDevice(t, WithBusSettings(settings))

	_, err := device.ReadRegister(RegStatus, 1)
	require.NoError(t, err)
	assert.Equal(t, 4*physic.MegaHertz, mock.Settings().Clock)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetRegister(RegVersion, 0x12)
	mock.SetRegister(RegRevision, 0x03)

	info, err := device.Version()
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{Version: 0x12, Revision: 0x03}, info)
	assert.Equal(t, "version 0x12 revision 0x03", info.String())
}

func TestVersion_ReadError(t *testing.T) {
	t.Parallel()

	errBus := errors.New("bus fault")
	device, mock := newTestDevice(t)
	mock.SetReadError(RegRevision, errBus)

	_, err := device.Version()
	require.ErrorIs(t, err, errBus)
	assert.Contains(t, err.Error(), "read revision")
}

func TestDataBank(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	want := testutil.BuildBank(0x123456, testutil.StatusWarning)
	want[7] = 0x3C
	mock.SetBank(want)

	bank, err := device.DataBank()
	require.NoError(t, err)
	assert.Equal(t, want, bank)
	assert.Equal(t, 1, mock.LockCount())
	assert.Equal(t, 1, mock.UnlockCount())
	assert.Equal(t, StatusNoErrors, device.Status(), "a raw bank read does not classify")
}

func TestDumpRegisters(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetRegister(RegCfgCh1, 0x05)

	values, err := device.DumpRegisters()
	require.NoError(t, err)
	require.Len(t, values, len(diagnosticRegisters))

	found := false
	for _, v := range values {
		if v.Register == RegCfgCh1 {
			assert.Equal(t, byte(0x05), v.Value)
			found = true
		}
	}
	assert.True(t, found)
}

func TestDumpRegisters_PartialOnError(t *testing.T) {
	t.Parallel()

	errBus := errors.New("bus fault")
	device, mock := newTestDevice(t)
	mock.SetReadError(RegFreq, errBus)

	values, err := device.DumpRegisters()
	require.ErrorIs(t, err, errBus)
	assert.Len(t, values, 4, "registers before FREQ are returned")
}

func TestClearAlarm_NoopWhenHealthy(t *testing.T) {
	t.Parallel()

	called := false
	device, _ := newTestDevice(t, WithStatusObserver(func(_, _ Status) { called = true }))
	device.ClearAlarm()
	assert.False(t, called)
	assert.Equal(t, StatusNoErrors, device.Status())
}

func TestStatusTransitions_Logged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	device, mock := newTestDevice(t, WithLogger(logger))
	mock.QueueSamples(
		testutil.BuildBank(1, testutil.StatusWarning),
		testutil.BuildBank(2, testutil.StatusOK),
	)

	_, err := device.RawPosition()
	require.NoError(t, err)
	_, err = device.RawPosition()
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=WARN"), out)
	assert.Contains(t, out, "encoder_warning")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "transport=mock")
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	require.NoError(t, device.Close())

	_, err := mock.Transfer(0x00)
	require.ErrorIs(t, err, ErrTransportClosed)
}
