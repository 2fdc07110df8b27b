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

// Package frame provides the SPI command framing of the iC-MB4.
package frame

// Opcodes of the iC-MB4 SPI interface
const (
	OpWriteData        = 0x02 // followed by address and data bytes
	OpReadData         = 0x03 // followed by address, then data is clocked out
	OpReadStatus       = 0x05
	OpWriteInstruction = 0x07 // followed by the instruction byte, no address
	OpReadDataFast     = 0x09 // register 0 fast access
	OpWriteDataFast    = 0x0B
)

// HasAddress reports whether op is followed by an address byte.
func HasAddress(op byte) bool {
	switch op {
	case OpWriteData, OpReadData:
		return true
	default:
		return false
	}
}

// IsRead reports whether the data phase of op is clocked in from the chip.
func IsRead(op byte) bool {
	return op == OpReadData || op == OpReadStatus || op == OpReadDataFast
}
