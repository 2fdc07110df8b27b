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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
device:
  transport: SPI
  path: /dev/spidev0.0
  select_pin: GPIO8
  clock_hz: 2000000
  spi_mode: 0
sensor:
  offset: 12.5
  conversion_factor: 0.001
  settle_ms: 250
  correction:
    strip_low: 10
    strip_high: 100
    strip_length: 85.6
    wrap_threshold: 190
    wrap_length: 200
  bring_up:
    data_length: 31
poll:
  interval_ms: 20
  stale_timeout_ms: 500
  error_threshold: 5
publish:
  endpoint: 127.0.0.1:502
  unit_id: 7
  address: 100
log:
  level: DEBUG
  format: json
`

func TestParse_Full(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "spi", cfg.Device.Transport)
	assert.Equal(t, "GPIO8", cfg.Device.SelectPin)
	assert.Equal(t, int64(2_000_000), cfg.Device.ClockHz)
	assert.InDelta(t, 12.5, cfg.Sensor.Offset, 0)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay())
	assert.Equal(t, 20*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.StaleTimeout())
	assert.Equal(t, mb4.DefaultCorrection(), cfg.Sensor.Correction)

	// Unset bring-up keys keep their defaults
	assert.Equal(t, byte(31), cfg.Sensor.BringUp.DataLength)
	assert.Equal(t, mb4.ProtocolBiSSC, cfg.Sensor.BringUp.Protocol)
	assert.True(t, cfg.Sensor.BringUp.SingleCycleData)

	require.NotNil(t, cfg.Publish)
	assert.Equal(t, uint8(7), cfg.Publish.UnitID)
	assert.Equal(t, uint16(100), cfg.Publish.Address)
	assert.Equal(t, time.Second, cfg.Publish.Timeout(), "timeout filled by Normalize")

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, Validate(cfg))
	assert.Nil(t, cfg.Publish, "publishing is opt-in")
}

func TestParse_UnknownKey(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("device:\n  chip_select: 3\n"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mb4.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/spidev0.0", cfg.Device.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate func(*Config)
		name   string
	}{
		{name: "unknown transport", mutate: func(c *Config) { c.Device.Transport = "i2c" }},
		{name: "spi without path", mutate: func(c *Config) { c.Device.Transport = "spi"; c.Device.SelectPin = "GPIO8" }},
		{name: "spi without select pin", mutate: func(c *Config) { c.Device.Transport = "spi"; c.Device.Path = "/dev/spidev0.0" }},
		{name: "buspirate without path", mutate: func(c *Config) { c.Device.Transport = "buspirate" }},
		{name: "zero clock", mutate: func(c *Config) { c.Device.ClockHz = 0 }},
		{name: "bad spi mode", mutate: func(c *Config) { c.Device.SPIMode = 4 }},
		{name: "zero factor", mutate: func(c *Config) { c.Sensor.ConversionFactor = 0 }},
		{name: "negative settle", mutate: func(c *Config) { c.Sensor.SettleMs = -1 }},
		{name: "bad bring-up", mutate: func(c *Config) { c.Sensor.BringUp.DataLength = 0x40 }},
		{name: "zero interval", mutate: func(c *Config) { c.Poll.IntervalMs = 0 }},
		{name: "zero error threshold", mutate: func(c *Config) { c.Poll.ErrorThreshold = 0 }},
		{name: "publish without endpoint", mutate: func(c *Config) { c.Publish = &PublishConfig{TimeoutMs: 1} }},
		{name: "publish without port", mutate: func(c *Config) { c.Publish = &PublishConfig{Endpoint: "plc", TimeoutMs: 1} }},
		{name: "publish address overflow", mutate: func(c *Config) {
			c.Publish = &PublishConfig{Endpoint: "plc:502", TimeoutMs: 1, Address: 0xFFFE}
		}},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, Validate(cfg))
		})
	}

	require.Error(t, Validate(nil))
}
