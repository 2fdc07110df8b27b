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

package transport

import (
	"errors"
	"testing"

	mb4 "github.com/ZaparooProject/go-mb4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	errPermanent := errors.New("permanent")

	tests := []struct {
		name       string
		succeedAt  int
		failAt     int
		wantCalls  int
		wantResult int
		wantErr    error
	}{
		{name: "first attempt", succeedAt: 1, wantCalls: 1, wantResult: 1},
		{name: "third attempt", succeedAt: 3, wantCalls: 3, wantResult: 3},
		{name: "exhausted", wantCalls: 4, wantErr: mb4.ErrTransportTimeout},
		{name: "permanent error", failAt: 2, wantCalls: 2, wantErr: errPermanent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls, retries := 0, 0
			result, err := WithRetry(RetryConfig{
				Description: "probe",
				Transport:   mb4.TransportBusPirate,
				MaxRetries:  3,
				OnRetry: func() error {
					retries++
					return nil
				},
			}, func() (int, bool, error) {
				calls++
				if calls == tt.failAt {
					return 0, false, errPermanent
				}
				if calls == tt.succeedAt {
					return calls, false, nil
				}
				return 0, true, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, calls-1, retries)
		})
	}
}

func TestWithRetry_ExhaustedIsTransportError(t *testing.T) {
	t.Parallel()

	_, err := WithRetry(RetryConfig{
		Description: "enter binary mode",
		Transport:   mb4.TransportBusPirate,
	}, func() (struct{}, bool, error) {
		return struct{}{}, true, nil
	})

	require.Error(t, err)
	assert.True(t, mb4.IsTransportError(err))
	assert.Contains(t, err.Error(), "enter binary mode (buspirate)")
	assert.Contains(t, err.Error(), "after 1 attempts")
}

func TestWithRetry_OnRetryErrorStops(t *testing.T) {
	t.Parallel()

	errFlush := errors.New("flush failed")
	calls := 0
	_, err := WithRetry(RetryConfig{
		MaxRetries: 5,
		OnRetry:    func() error { return errFlush },
	}, func() (int, bool, error) {
		calls++
		return 0, true, nil
	})

	require.ErrorIs(t, err, errFlush)
	assert.Equal(t, 1, calls)
}
