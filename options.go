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
	"log/slog"
	"math"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithOffset sets the distance subtracted from every converted position
func WithOffset(offset float64) Option {
	return func(d *Device) error {
		if math.IsNaN(offset) || math.IsInf(offset, 0) {
			return fmt.Errorf("%w: offset %v", ErrInvalidParameter, offset)
		}
		d.config.Offset = offset
		return nil
	}
}

// WithConversionFactor sets the distance per encoder LSB
func WithConversionFactor(factor float64) Option {
	return func(d *Device) error {
		if factor <= 0 || math.IsInf(factor, 0) || math.IsNaN(factor) {
			return fmt.Errorf("%w: conversion factor %v", ErrInvalidParameter, factor)
		}
		d.config.ConversionFactor = factor
		return nil
	}
}

// WithCorrection replaces the strip wraparound rules
func WithCorrection(correction Correction) Option {
	return func(d *Device) error {
		d.config.Correction = correction
		return nil
	}
}

// WithLogger sets the logger for status transitions and bring-up diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidParameter)
		}
		d.config.Logger = logger
		return nil
	}
}

// WithStatusObserver registers a callback for status transitions
func WithStatusObserver(observer StatusObserver) Option {
	return func(d *Device) error {
		d.config.StatusObserver = observer
		return nil
	}
}

// WithBringUp replaces the register configuration applied by Configure
func WithBringUp(config BringUpConfig) Option {
	return func(d *Device) error {
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid bring-up config: %w", err)
		}
		d.config.BringUp = config
		return nil
	}
}

// WithSettleDelay sets how long Configure waits for the first sensor cycle
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Device) error {
		if delay < 0 {
			return fmt.Errorf("%w: negative settle delay", ErrInvalidParameter)
		}
		d.config.BringUp.SettleDelay = delay
		return nil
	}
}

// WithBusSettings overrides the SPI settings used for every transaction
func WithBusSettings(settings Settings) Option {
	return func(d *Device) error {
		if settings.Clock <= 0 {
			return fmt.Errorf("%w: clock %v", ErrInvalidParameter, settings.Clock)
		}
		d.config.Bus = settings
		return nil
	}
}
