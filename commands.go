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

// Instruction register (INSTR, 0xF4) bits
const (
	// InstrAutoGetSensor starts the chip's autonomous sensor data cycles (AGS)
	InstrAutoGetSensor byte = 0x01
	// InstrInit sends an MA pulse train on all MA clock lines
	InstrInit byte = 0x10
	// InstrHoldBank freezes the sensor data bank against refresh
	InstrHoldBank byte = 0x40
	// InstrBreak stops all ongoing processes of the master
	InstrBreak byte = 0x80
)

// Encoder status codes carried in the two low bits of the data bank
const (
	encoderStatusOK      = 0
	encoderStatusWarning = 1
	encoderStatusAlarm   = 2

	// EncoderStatusMask selects the status bits from the first data bank byte
	EncoderStatusMask byte = 0x03
)

// validityOK is the SVALID value reported when the single cycle data CRC matched
const validityOK = 2

// Raw sample layout
const (
	// RawBits is the width of a position sample in encoder units
	RawBits = 26
	// RawMask keeps the position bits of a sample
	RawMask uint32 = 1<<RawBits - 1

	statusBits = 2
	maxReadLen = 4
)
