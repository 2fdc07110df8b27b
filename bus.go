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
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-mb4/internal/frame"
)

// ReadRegister reads count consecutive registers starting at reg in a single
// transaction. Bytes are accumulated most significant first, so reading two
// registers holding 0x12 and 0x34 returns 0x1234.
func (d *Device) ReadRegister(reg Register, count int) (uint32, error) {
	if count < 1 || count > maxReadLen {
		return 0, fmt.Errorf("%w: read count %d outside 1..%d", ErrInvalidParameter, count, maxReadLen)
	}

	rx := d.rx[:count]
	if err := d.exchange("ReadRegister", frame.OpReadData, byte(reg), nil, rx); err != nil {
		return 0, err
	}
	return frame.AccumulateMSB(rx), nil
}

// WriteRegister writes a single register
func (d *Device) WriteRegister(reg Register, value byte) error {
	d.tx[0] = value
	return d.exchange("WriteRegister", frame.OpWriteData, byte(reg), d.tx[:1], nil)
}

// WriteRegisters writes data to consecutive registers starting at reg
func (d *Device) WriteRegisters(reg Register, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty register write", ErrInvalidParameter)
	}
	if int(reg)+len(data) > 0x100 {
		return fmt.Errorf("%w: write of %d bytes at %s overruns register space", ErrInvalidParameter, len(data), reg)
	}

	// TransferBuffer overwrites its argument with received bytes
	buf := make([]byte, len(data))
	copy(buf, data)
	return d.exchange("WriteRegisters", frame.OpWriteData, byte(reg), buf, nil)
}

// WriteInstruction writes the instruction register. Instruction writes carry
// no address byte.
func (d *Device) WriteInstruction(instruction byte) error {
	d.tx[0] = instruction
	return d.exchange("WriteInstruction", frame.OpWriteInstruction, 0, d.tx[:1], nil)
}

// exchange runs one framed transaction: select, opcode, optional address,
// then either shifts tx out or clocks len(rx) bytes in. The select line is
// released on every path.
func (d *Device) exchange(op string, opcode, addr byte, tx, rx []byte) (err error) {
	if d.closed {
		return ErrTransportClosed
	}

	release := d.holdBus()
	defer release()

	if frame.IsRead(opcode) != (rx != nil) {
		return fmt.Errorf("%w: opcode %#02x does not match the data direction", ErrInvalidParameter, opcode)
	}

	// The assert may reach the line and still fail, so release is deferred first
	began := false
	defer func() {
		if selErr := d.transport.SetSelect(false); selErr != nil {
			err = errors.Join(err, d.transportError(op, selErr))
		}
		if began {
			if endErr := d.transport.EndTransaction(); endErr != nil {
				err = errors.Join(err, d.transportError(op, endErr))
			}
		}
	}()

	if err := d.transport.SetSelect(true); err != nil {
		return d.transportError(op, err)
	}

	if err := d.transport.BeginTransaction(d.settings); err != nil {
		return d.transportError(op, err)
	}
	began = true

	if _, err := d.transport.Transfer(opcode); err != nil {
		return d.transportError(op, err)
	}
	if frame.HasAddress(opcode) {
		if _, err := d.transport.Transfer(addr); err != nil {
			return d.transportError(op, err)
		}
	}

	switch {
	case rx != nil:
		for i := range rx {
			in, err := d.transport.Transfer(0)
			if err != nil {
				return d.transportError(op, err)
			}
			rx[i] = in
		}
	case len(tx) == 1:
		if _, err := d.transport.Transfer(tx[0]); err != nil {
			return d.transportError(op, err)
		}
	case len(tx) > 1:
		if err := d.transport.TransferBuffer(tx); err != nil {
			return d.transportError(op, err)
		}
	}
	return nil
}

func (d *Device) transportError(op string, err error) error {
	return NewTransportError(op, d.transport.Type(), err)
}

// holdBus takes the transport's bus lock when it has one. Calls nested inside
// a held region are no-ops so the bank-locked read can span many transactions.
func (d *Device) holdBus() func() {
	locker, ok := d.transport.(sync.Locker)
	if !ok || d.busHeld {
		return func() {}
	}
	locker.Lock()
	d.busHeld = true
	return func() {
		d.busHeld = false
		locker.Unlock()
	}
}

// applyInstructionMask sets or clears mask in the instruction register with a
// read-modify-write. written reports whether the write was put on the bus, so
// callers know the chip may have seen the new value even when err is set.
func (d *Device) applyInstructionMask(mask byte, set bool) (written bool, err error) {
	current, err := d.ReadRegister(RegInstruction, 1)
	if err != nil {
		return false, fmt.Errorf("read instruction register: %w", err)
	}

	instr := byte(current)
	if set {
		instr |= mask
	} else {
		instr &^= mask
	}

	if err := d.WriteInstruction(instr); err != nil {
		return true, fmt.Errorf("write instruction register: %w", err)
	}
	return true, nil
}

// updateRegister clears the bits in clear and then sets the bits in set.
func (d *Device) updateRegister(reg Register, clear, set byte) error {
	current, err := d.ReadRegister(reg, 1)
	if err != nil {
		return err
	}
	return d.WriteRegister(reg, byte(current)&^clear|set)
}

// withBankLocked runs fn with the sensor data bank frozen. The bank is
// released on every path once the lock instruction has been issued, and a
// shared bus stays held for the whole region.
func (d *Device) withBankLocked(fn func() error) (err error) {
	release := d.holdBus()
	defer release()

	written, lockErr := d.applyInstructionMask(InstrHoldBank, true)
	if written {
		defer func() {
			if _, unlockErr := d.applyInstructionMask(InstrHoldBank, false); unlockErr != nil {
				err = errors.Join(err, fmt.Errorf("unlock data bank: %w", unlockErr))
			}
		}()
	}
	if lockErr != nil {
		return fmt.Errorf("lock data bank: %w", lockErr)
	}

	return fn()
}
