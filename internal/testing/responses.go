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

// Package testing builds sensor data bank images for tests.
package testing

import "encoding/binary"

// Encoder status bits as the LMA10 reports them in the low bits of a frame
const (
	StatusOK      byte = 0
	StatusWarning byte = 1
	StatusAlarm   byte = 2
)

// BuildBank returns the eight data bank bytes for a 26 bit position and the
// two encoder status bits. The lowest register holds the least significant byte.
func BuildBank(raw uint32, status byte) [8]byte {
	var bank [8]byte
	binary.LittleEndian.PutUint32(bank[:4], raw<<2|uint32(status&0x03))
	return bank
}

// BuildBankBytes returns a bank with the first four registers set verbatim
func BuildBankBytes(b0, b1, b2, b3 byte) [8]byte {
	return [8]byte{b0, b1, b2, b3}
}

// RawFromBytes computes the position a driver must report for a data bank
// beginning with b0..b3.
func RawFromBytes(b0, b1, b2, b3 byte) uint32 {
	word := uint32(b3)<<24 | uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
	return word >> 2 & (1<<26 - 1)
}
