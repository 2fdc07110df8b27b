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

// Package config loads the mb4read YAML configuration
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
	"gopkg.in/yaml.v3"
)

// Config is the mb4read configuration file
type Config struct {
	Device  DeviceConfig   `yaml:"device"`
	Sensor  SensorConfig   `yaml:"sensor"`
	Poll    PollConfig     `yaml:"poll"`
	Publish *PublishConfig `yaml:"publish"`
	Log     LogConfig      `yaml:"log"`
}

// ---- DEVICE ----

// DeviceConfig selects the transport and bus parameters
type DeviceConfig struct {
	// Transport is "spi" or "buspirate"; empty means auto-detect
	Transport string `yaml:"transport"`
	Path      string `yaml:"path"`
	SelectPin string `yaml:"select_pin"`
	ClockHz   int64  `yaml:"clock_hz"`
	SPIMode   int    `yaml:"spi_mode"`
}

// ---- SENSOR ----

// SensorConfig holds the bring-up registers and unit conversion
type SensorConfig struct {
	Correction       mb4.Correction    `yaml:"correction"`
	BringUp          mb4.BringUpConfig `yaml:"bring_up"`
	Offset           float64           `yaml:"offset"`
	ConversionFactor float64           `yaml:"conversion_factor"`
	SettleMs         int               `yaml:"settle_ms"`
}

// ---- POLL ----

// PollConfig controls the polling monitor
type PollConfig struct {
	IntervalMs     int `yaml:"interval_ms"`
	StaleTimeoutMs int `yaml:"stale_timeout_ms"`
	ErrorThreshold int `yaml:"error_threshold"`
}

// ---- PUBLISH ----

// PublishConfig enables mirroring readings to a Modbus TCP unit
type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- LOG ----

// LogConfig sets the log level (debug, info, warn, error) and format (text, json)
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ClockHz: 1_000_000,
		},
		Sensor: SensorConfig{
			Correction:       mb4.DefaultCorrection(),
			BringUp:          mb4.DefaultBringUpConfig(),
			ConversionFactor: mb4.ConversionFactor,
			SettleMs:         1000,
		},
		Poll: PollConfig{
			IntervalMs:     100,
			StaleTimeoutMs: 1000,
			ErrorThreshold: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	Normalize(cfg)
	return cfg, nil
}

// PollInterval returns poll.interval_ms as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// StaleTimeout returns poll.stale_timeout_ms as a duration
func (c *Config) StaleTimeout() time.Duration {
	return time.Duration(c.Poll.StaleTimeoutMs) * time.Millisecond
}

// SettleDelay returns sensor.settle_ms as a duration
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Sensor.SettleMs) * time.Millisecond
}

// Timeout returns timeout_ms as a duration
func (p *PublishConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}
