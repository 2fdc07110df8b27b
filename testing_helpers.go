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
	"errors"
	"sync"

	"github.com/ZaparooProject/go-mb4/internal/frame"
)

// MockTransaction records one select-framed exchange seen by MockTransport
type MockTransaction struct {
	// Data holds the bytes written, or for reads the bytes returned
	Data    []byte
	Opcode  byte
	Address byte
}

// MockTransport simulates an iC-MB4 behind a transport. It keeps a register
// file, models the data bank freeze of the instruction register and records
// every transaction.
//
// The data bank has a live copy, refreshed by SetBank or by queued samples
// (one per lock, like the chip's autonomous cycles), and a frozen copy that
// is served while the bank is locked.
type MockTransport struct {
	readErrs     map[byte]error
	selectErr    error
	current      *MockTransaction
	transactions []MockTransaction
	samples      [][DataBankSize]byte
	settings     Settings
	mu           sync.Mutex
	regs         [256]byte
	live         [DataBankSize]byte
	frozen       [DataBankSize]byte
	position     int
	lockWrites   int
	unlockWrites int
	selected     bool
	began        bool
	closed       bool
}

// NewMockTransport creates a mock with a healthy, unconfigured chip
func NewMockTransport() *MockTransport {
	m := &MockTransport{
		readErrs: make(map[byte]error),
	}
	m.regs[RegSValid] = validityOK
	m.regs[RegVersion] = 0x10
	m.regs[RegRevision] = 0x02
	return m
}

// errNotSelected is returned when bytes are shifted without the select line
var errNotSelected = errors.New("mock: transfer while deselected")

// BeginTransaction records the settings
func (m *MockTransport) BeginTransaction(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	m.settings = settings
	m.began = true
	return nil
}

// EndTransaction ends the transaction
func (m *MockTransport) EndTransaction() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.began = false
	return nil
}

// SetSelect starts or finishes a frame
func (m *MockTransport) SetSelect(active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	if active && m.selectErr != nil {
		return m.selectErr
	}
	if !active && m.current != nil {
		m.transactions = append(m.transactions, *m.current)
		m.current = nil
	}
	m.selected = active
	m.position = 0
	return nil
}

// Transfer shifts one byte through the simulated chip
func (m *MockTransport) Transfer(out byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shift(out)
}

// TransferBuffer shifts buf through the simulated chip
func (m *MockTransport) TransferBuffer(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, out := range buf {
		in, err := m.shift(out)
		if err != nil {
			return err
		}
		buf[i] = in
	}
	return nil
}

func (m *MockTransport) shift(out byte) (byte, error) {
	if m.closed {
		return 0, ErrTransportClosed
	}
	if !m.selected {
		return 0, errNotSelected
	}

	pos := m.position
	m.position++

	if pos == 0 {
		m.current = &MockTransaction{Opcode: out}
		return 0, nil
	}

	op := m.current.Opcode
	header := 1
	if frame.HasAddress(op) {
		header = 2
		if pos == 1 {
			m.current.Address = out
			return 0, nil
		}
	}

	index := pos - header
	switch op {
	case frame.OpReadData:
		addr := m.current.Address + byte(index)
		if err := m.readErrs[addr]; err != nil {
			return 0, err
		}
		in := m.read(addr)
		m.current.Data = append(m.current.Data, in)
		return in, nil
	case frame.OpWriteData:
		m.write(m.current.Address+byte(index), out)
	case frame.OpWriteInstruction:
		m.instruction(out)
	}
	m.current.Data = append(m.current.Data, out)
	return 0, nil
}

func (m *MockTransport) bankLocked() bool {
	return m.regs[RegInstruction]&InstrHoldBank != 0
}

func (m *MockTransport) read(addr byte) byte {
	if addr < DataBankSize {
		if m.bankLocked() {
			return m.frozen[addr]
		}
		return m.live[addr]
	}
	return m.regs[addr]
}

func (m *MockTransport) write(addr, value byte) {
	if addr < DataBankSize {
		m.live[addr] = value
		return
	}
	m.regs[addr] = value
}

func (m *MockTransport) instruction(value byte) {
	// BREAK and INIT are actions, not state
	value &^= InstrBreak | InstrInit
	wasLocked := m.bankLocked()
	m.regs[RegInstruction] = value

	switch {
	case !wasLocked && m.bankLocked():
		m.lockWrites++
		if len(m.samples) > 0 {
			m.live = m.samples[0]
			m.samples = m.samples[1:]
		}
		m.frozen = m.live
	case wasLocked && !m.bankLocked():
		m.unlockWrites++
	}
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SetRegister sets a register value directly
func (m *MockTransport) SetRegister(reg Register, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(byte(reg), value)
}

// Register returns the current register value as the chip would report it
func (m *MockTransport) Register(reg Register) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(byte(reg))
}

// SetBank replaces the live data bank
func (m *MockTransport) SetBank(bank [DataBankSize]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = bank
}

// QueueSamples queues data bank refreshes; each bank lock consumes one
func (m *MockTransport) QueueSamples(banks ...[DataBankSize]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, banks...)
}

// SetValidity sets the SVALID register
func (m *MockTransport) SetValidity(value byte) {
	m.SetRegister(RegSValid, value)
}

// SetReadError makes reads of reg fail with err; a nil err clears it
func (m *MockTransport) SetReadError(reg Register, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.readErrs, byte(reg))
		return
	}
	m.readErrs[byte(reg)] = err
}

// SetSelectError makes asserting the select line fail with err
func (m *MockTransport) SetSelectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectErr = err
}

// Transactions returns a copy of the completed transactions
func (m *MockTransport) Transactions() []MockTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockTransaction(nil), m.transactions...)
}

// InstructionWrites returns every byte written to the instruction register
func (m *MockTransport) InstructionWrites() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var writes []byte
	for _, tx := range m.transactions {
		if tx.Opcode == frame.OpWriteInstruction {
			writes = append(writes, tx.Data...)
		}
	}
	return writes
}

// LockCount returns how many writes set the bank lock bit
func (m *MockTransport) LockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockWrites
}

// UnlockCount returns how many writes cleared the bank lock bit
func (m *MockTransport) UnlockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlockWrites
}

// Selected reports whether the select line is asserted
func (m *MockTransport) Selected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// InTransaction reports whether BeginTransaction was not yet matched by EndTransaction
func (m *MockTransport) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.began
}

// Settings returns the settings of the last transaction
func (m *MockTransport) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Ensure MockTransport implements Transport
var _ Transport = (*MockTransport)(nil)
