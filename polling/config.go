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

// Package polling reads an iC-MB4 position continuously and tracks link health
package polling

import (
	"fmt"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
)

// Config holds monitor timing
type Config struct {
	// PollInterval is the time between position reads
	PollInterval time.Duration
	// StaleTimeout is how long the link may go without a clean sample
	// before it is reported degraded
	StaleTimeout time.Duration
	// ErrorThreshold is the number of consecutive transport errors after
	// which the link is reported lost
	ErrorThreshold int
	// MaxReadings stops the monitor after that many readings; zero runs
	// until the context ends
	MaxReadings int
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   100 * time.Millisecond,
		StaleTimeout:   time.Second,
		ErrorThreshold: 3,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %v", mb4.ErrInvalidParameter, c.PollInterval)
	}
	if c.StaleTimeout < 0 {
		return fmt.Errorf("%w: stale timeout %v", mb4.ErrInvalidParameter, c.StaleTimeout)
	}
	if c.ErrorThreshold < 1 {
		return fmt.Errorf("%w: error threshold %d", mb4.ErrInvalidParameter, c.ErrorThreshold)
	}
	if c.MaxReadings < 0 {
		return fmt.Errorf("%w: max readings %d", mb4.ErrInvalidParameter, c.MaxReadings)
	}
	return nil
}
