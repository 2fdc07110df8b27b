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
	"fmt"
	"math"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- device ----
	switch cfg.Device.Transport {
	case "":
	case "spi":
		if cfg.Device.Path == "" {
			return fmt.Errorf("device: spi transport requires path")
		}
		if cfg.Device.SelectPin == "" {
			return fmt.Errorf("device: spi transport requires select_pin")
		}
	case "buspirate":
		if cfg.Device.Path == "" {
			return fmt.Errorf("device: buspirate transport requires path")
		}
	default:
		return fmt.Errorf("device: unknown transport %q", cfg.Device.Transport)
	}
	if cfg.Device.ClockHz <= 0 {
		return fmt.Errorf("device: clock_hz must be positive, got %d", cfg.Device.ClockHz)
	}
	if cfg.Device.SPIMode < 0 || cfg.Device.SPIMode > 3 {
		return fmt.Errorf("device: spi_mode must be 0..3, got %d", cfg.Device.SPIMode)
	}

	// ---- sensor ----
	f := cfg.Sensor.ConversionFactor
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("sensor: conversion_factor must be positive, got %v", f)
	}
	if math.IsNaN(cfg.Sensor.Offset) || math.IsInf(cfg.Sensor.Offset, 0) {
		return fmt.Errorf("sensor: offset must be finite")
	}
	if cfg.Sensor.SettleMs < 0 {
		return fmt.Errorf("sensor: settle_ms must not be negative")
	}
	if err := cfg.Sensor.BringUp.Validate(); err != nil {
		return fmt.Errorf("sensor: bring_up: %w", err)
	}

	// ---- poll ----
	if cfg.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll: interval_ms must be positive")
	}
	if cfg.Poll.StaleTimeoutMs < 0 {
		return fmt.Errorf("poll: stale_timeout_ms must not be negative")
	}
	if cfg.Poll.ErrorThreshold < 1 {
		return fmt.Errorf("poll: error_threshold must be at least 1")
	}

	// ---- publish (optional) ----
	if p := cfg.Publish; p != nil {
		if p.Endpoint == "" {
			return fmt.Errorf("publish: endpoint required")
		}
		if !strings.Contains(p.Endpoint, ":") {
			return fmt.Errorf("publish: endpoint %q must be host:port", p.Endpoint)
		}
		if p.TimeoutMs <= 0 {
			return fmt.Errorf("publish: timeout_ms must be positive")
		}
		// five holding registers are written from address
		if int(p.Address)+5 > 0x10000 {
			return fmt.Errorf("publish: address %d leaves no room for 5 registers", p.Address)
		}
	}

	// ---- log ----
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.Log.Format)
	}

	return nil
}
