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

package polling

import (
	"fmt"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
)

// LinkHealth represents the finite state machine for the encoder link
type LinkHealth int

const (
	// HealthIdle means no reading has been taken yet
	HealthIdle LinkHealth = iota
	// HealthTracking means the last sample was clean
	HealthTracking
	// HealthDegraded means reads succeed but samples are not clean, or no
	// clean sample arrived within the stale timeout
	HealthDegraded
	// HealthLost means transport errors reached the error threshold
	HealthLost
)

func (h LinkHealth) String() string {
	switch h {
	case HealthIdle:
		return "idle"
	case HealthTracking:
		return "tracking"
	case HealthDegraded:
		return "degraded"
	case HealthLost:
		return "lost"
	default:
		return fmt.Sprintf("health(%d)", int(h))
	}
}

// Reading is one polled position
type Reading struct {
	Time     time.Time
	Position float64
	Raw      uint32
	Status   mb4.Status
}

// LinkState tracks the health of the encoder link
type LinkState struct {
	LastGoodTime      time.Time
	LastReading       Reading
	ConsecutiveErrors int
	Readings          int
	Health            LinkHealth
}

// RecordReading applies a successful read and returns the new health
func (ls *LinkState) RecordReading(r Reading, staleTimeout time.Duration) LinkHealth {
	ls.LastReading = r
	ls.Readings++
	ls.ConsecutiveErrors = 0

	if r.Status.OK() {
		ls.LastGoodTime = r.Time
		ls.Health = HealthTracking
		return ls.Health
	}

	if ls.Health != HealthTracking || ls.IsStale(r.Time, staleTimeout) {
		ls.Health = HealthDegraded
	}
	return ls.Health
}

// RecordError applies a failed read and returns the new health
func (ls *LinkState) RecordError(threshold int) LinkHealth {
	ls.ConsecutiveErrors++
	if ls.ConsecutiveErrors >= threshold {
		ls.Health = HealthLost
	}
	return ls.Health
}

// IsStale reports whether no clean sample arrived within timeout before now
func (ls *LinkState) IsStale(now time.Time, timeout time.Duration) bool {
	if ls.LastGoodTime.IsZero() {
		return true
	}
	return now.Sub(ls.LastGoodTime) > timeout
}

// TransitionToIdle resets the link state
func (ls *LinkState) TransitionToIdle() {
	*ls = LinkState{}
}
