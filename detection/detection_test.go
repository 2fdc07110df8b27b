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

package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	delay     time.Duration
}

func (s *stubDetector) Transport() string { return s.transport }

func (s *stubDetector) Detect(ctx context.Context, _ *Options) ([]DeviceInfo, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		case <-time.After(s.delay):
		}
	}
	return append([]DeviceInfo(nil), s.devices...), s.err
}

// withRegistry swaps the global registry for the duration of a test
func withRegistry(t *testing.T, detectors ...Detector) {
	t.Helper()
	registryMu.Lock()
	saved := registry
	registry = make(map[string]Detector)
	registryMu.Unlock()

	for _, d := range detectors {
		RegisterDetector(d)
	}
	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	})
}

//nolint:paralleltest // mutates the global detector registry
func TestDetectAll(t *testing.T) {
	withRegistry(t,
		&stubDetector{transport: "spi", devices: []DeviceInfo{
			{Transport: "spi", Path: "/dev/spidev0.0", Confidence: Low},
			{Transport: "spi", Path: "/dev/spidev0.1", Confidence: Medium},
		}},
		&stubDetector{transport: "buspirate", devices: []DeviceInfo{
			{Transport: "buspirate", Path: "/dev/ttyACM0", Confidence: High},
		}},
		&stubDetector{transport: "broken", err: ErrUnsupportedPlatform},
	)

	opts := DefaultOptions()
	opts.IgnorePaths = []string{"/dev/spidev0.1"}
	devices, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/ttyACM0", devices[0].Path, "highest confidence first")
	assert.Equal(t, "/dev/spidev0.0", devices[1].Path)
}

//nolint:paralleltest // mutates the global detector registry
func TestDetectAll_NothingFound(t *testing.T) {
	errProbe := errors.New("permission denied")
	withRegistry(t,
		&stubDetector{transport: "spi", err: errProbe},
		&stubDetector{transport: "buspirate", err: ErrNoDevicesFound},
	)

	_, err := DetectAll(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoDevicesFound)
	require.ErrorIs(t, err, errProbe)
}

//nolint:paralleltest // mutates the global detector registry
func TestDetectTransport(t *testing.T) {
	withRegistry(t,
		&stubDetector{transport: "slow", delay: time.Second},
		&stubDetector{transport: "spi", devices: []DeviceInfo{{Transport: "spi", Path: "/dev/spidev1.0"}}},
	)

	opts := Options{Timeout: 10 * time.Millisecond}
	_, err := DetectTransport(context.Background(), "slow", &opts)
	require.ErrorIs(t, err, ErrDetectionTimeout)

	devices, err := DetectTransport(context.Background(), "spi", &opts)
	require.NoError(t, err)
	assert.Len(t, devices, 1)

	_, err = DetectTransport(context.Background(), "i2c", &opts)
	require.ErrorIs(t, err, ErrUnknownTransport)

	names := make([]string, 0, 2)
	for _, d := range Detectors() {
		names = append(names, d.Transport())
	}
	assert.Equal(t, []string{"slow", "spi"}, names)
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := DefaultBlocklist()
	assert.True(t, IsBlocked("2341:0043", blocklist))
	assert.True(t, IsBlocked(" 2341:0042 ", blocklist))
	assert.False(t, IsBlocked("1209:7331", blocklist))
	assert.False(t, IsBlocked("1209:7331", nil))
}

func TestNormalizeVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vid  string
		pid  string
		want string
	}{
		{name: "upper case", vid: "0403", pid: "6001", want: "0403:6001"},
		{name: "lower case", vid: "04d8", pid: "fb00", want: "04D8:FB00"},
		{name: "padded", vid: " 1209 ", pid: "7331\n", want: "1209:7331"},
		{name: "non-usb port", vid: "", pid: "", want: ""},
		{name: "missing pid", vid: "0403", pid: "", want: ""},
		{name: "not hex", vid: "ZZZZ", pid: "0001", want: ""},
		{name: "too long", vid: "00403", pid: "6001", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeVIDPID(tt.vid, tt.pid))
		})
	}
}

func TestModeAndConfidenceStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "unknown", Confidence(9).String())
}
