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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
)

// maxBackoffInterval caps the poll interval while the link is lost
const maxBackoffInterval = 500 * time.Millisecond

// Sensor is the part of *mb4.Device the monitor uses
type Sensor interface {
	Position() (float64, error)
	LastRawPosition() uint32
	Status() mb4.Status
}

// Metrics tracks operational counters of a Monitor
type Metrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Number of failed reads
	LastPollLatency time.Duration // Duration of the last read
}

// Monitor polls a sensor at a fixed interval and reports readings, status
// transitions and link health changes through its callbacks. Callbacks run
// on the polling goroutine.
type Monitor struct {
	sensor          Sensor
	config          *Config
	OnReading       func(Reading)
	OnStatusChanged func(from, to mb4.Status)
	OnHealthChanged func(from, to LinkHealth)
	OnError         func(error)
	now             func() time.Time
	state           LinkState
	mu              sync.Mutex
	isPaused        atomic.Bool
	pollCycles      atomic.Int64
	pollErrors      atomic.Int64
	lastPollLatency atomic.Int64
}

// NewMonitor creates a new position monitor
func NewMonitor(sensor Sensor, config *Config) (*Monitor, error) {
	if sensor == nil {
		return nil, fmt.Errorf("%w: nil sensor", mb4.ErrInvalidParameter)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		sensor: sensor,
		config: config,
		now:    time.Now,
	}, nil
}

// Start polls until ctx ends or MaxReadings readings were delivered. It
// returns nil in the latter case and ctx.Err() otherwise.
func (m *Monitor) Start(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if !m.isPaused.Load() {
			m.PollOnce()
			if limit := m.config.MaxReadings; limit > 0 && m.GetState().Readings >= limit {
				return nil
			}
		}
		timer.Reset(m.currentInterval())
	}
}

// PollOnce performs a single read and dispatches callbacks
func (m *Monitor) PollOnce() {
	prevStatus := m.sensor.Status()

	start := m.now()
	position, err := m.sensor.Position()
	latency := m.now().Sub(start)

	m.pollCycles.Add(1)
	m.lastPollLatency.Store(int64(latency))

	if status := m.sensor.Status(); status != prevStatus && m.OnStatusChanged != nil {
		m.OnStatusChanged(prevStatus, status)
	}

	m.mu.Lock()
	prevHealth := m.state.Health
	var reading Reading
	if err != nil {
		m.pollErrors.Add(1)
		m.state.RecordError(m.config.ErrorThreshold)
	} else {
		reading = Reading{
			Time:     start,
			Raw:      m.sensor.LastRawPosition(),
			Position: position,
			Status:   m.sensor.Status(),
		}
		m.state.RecordReading(reading, m.config.StaleTimeout)
	}
	health := m.state.Health
	m.mu.Unlock()

	if err != nil {
		if m.OnError != nil {
			m.OnError(err)
		}
	} else if m.OnReading != nil {
		m.OnReading(reading)
	}

	if health != prevHealth && m.OnHealthChanged != nil {
		m.OnHealthChanged(prevHealth, health)
	}
}

// currentInterval backs off while the link is lost
func (m *Monitor) currentInterval() time.Duration {
	interval := m.config.PollInterval
	if m.GetState().Health != HealthLost {
		return interval
	}
	slow := interval * 5
	if slow > maxBackoffInterval {
		slow = maxBackoffInterval
	}
	if slow < interval {
		return interval
	}
	return slow
}

// Pause suspends polling; Start keeps running
func (m *Monitor) Pause() {
	m.isPaused.Store(true)
}

// Resume continues polling after Pause
func (m *Monitor) Resume() {
	m.isPaused.Store(false)
}

// IsPaused reports whether polling is suspended
func (m *Monitor) IsPaused() bool {
	return m.isPaused.Load()
}

// GetState returns a copy of the link state
func (m *Monitor) GetState() LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the link state to idle
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TransitionToIdle()
}

// GetMetrics returns current operational metrics
func (m *Monitor) GetMetrics() Metrics {
	return Metrics{
		PollCycles:      m.pollCycles.Load(),
		PollErrors:      m.pollErrors.Load(),
		LastPollLatency: time.Duration(m.lastPollLatency.Load()),
	}
}
