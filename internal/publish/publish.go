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

// Package publish mirrors polled positions into Modbus holding registers
package publish

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
	"github.com/ZaparooProject/go-mb4/polling"
	"github.com/goburrow/modbus"
)

// RegisterCount is the number of holding registers written per reading:
// raw position high and low word, status code, position x1000 high and low word.
const RegisterCount = 5

// RegisterWriter is the part of modbus.Client the publisher uses
type RegisterWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Config addresses the Modbus TCP unit and its first holding register
type Config struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
	Timeout  time.Duration
}

// Publisher writes readings to one Modbus TCP unit. It serializes writes
// so it can be fed from monitor callbacks.
type Publisher struct {
	client  RegisterWriter
	handler *modbus.TCPClientHandler
	mu      sync.Mutex
	address uint16
}

// Dial connects to a Modbus TCP endpoint
func Dial(cfg Config) (*Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("publish: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", cfg.Endpoint, err)
	}

	p := New(modbus.NewClient(h), cfg.Address)
	p.handler = h
	return p, nil
}

// New creates a publisher on an existing client
func New(client RegisterWriter, address uint16) *Publisher {
	return &Publisher{client: client, address: address}
}

// Publish writes one reading
func (p *Publisher) Publish(r polling.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	regs := EncodeReading(r)
	if _, err := p.client.WriteMultipleRegisters(p.address, uint16(len(regs)), packRegisters(regs)); err != nil {
		return fmt.Errorf("publish: write registers at %d: %w", p.address, err)
	}
	return nil
}

// Close closes the TCP connection opened by Dial
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler == nil {
		return nil
	}
	return p.handler.Close()
}

// EncodeReading lays a reading out as holding registers. The position is
// stored in thousandths as a two's complement 32-bit value, clamped to range.
func EncodeReading(r polling.Reading) []uint16 {
	scaled := math.Round(r.Position * 1000)
	var milli int32
	switch {
	case math.IsNaN(scaled):
	case scaled > math.MaxInt32:
		milli = math.MaxInt32
	case scaled < math.MinInt32:
		milli = math.MinInt32
	default:
		milli = int32(scaled)
	}

	return []uint16{
		uint16(r.Raw >> 16),
		uint16(r.Raw),
		statusCode(r.Status),
		uint16(uint32(milli) >> 16),
		uint16(uint32(milli)),
	}
}

func statusCode(s mb4.Status) uint16 {
	switch s {
	case mb4.StatusNoErrors:
		return 0
	case mb4.StatusInvalidCRC:
		return 1
	case mb4.StatusEncoderWarning:
		return 2
	case mb4.StatusEncoderAlarm:
		return 3
	default:
		return 0xFFFF
	}
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
