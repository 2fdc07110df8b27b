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

	"github.com/ZaparooProject/go-mb4/internal/frame"
)

// ConversionFactor converts one encoder LSB to inches. The LMA10 resolves
// 0.244 µm per count over its 26 bit range.
const ConversionFactor = 0.000000244 * 39.3701

// Correction holds the wraparound rules for a finite magnetic strip. A reading
// strictly between StripLow and StripHigh means the read head ran just past the
// end of the strip; a reading above WrapThreshold wrapped in the upper range.
type Correction struct {
	StripLow      float64 `yaml:"strip_low"`
	StripHigh     float64 `yaml:"strip_high"`
	StripLength   float64 `yaml:"strip_length"`
	WrapThreshold float64 `yaml:"wrap_threshold"`
	WrapLength    float64 `yaml:"wrap_length"`
	Disabled      bool    `yaml:"disabled"`
}

// DefaultCorrection returns the rules measured for the 85.6 inch LMA10 strip.
func DefaultCorrection() Correction {
	return Correction{
		StripLow:      10.0,
		StripHigh:     100,
		StripLength:   85.60,
		WrapThreshold: 190,
		WrapLength:    200,
	}
}

// Apply corrects a converted distance
func (c Correction) Apply(distance float64) float64 {
	if c.Disabled {
		return distance
	}
	if distance > c.StripLow && distance < c.StripHigh {
		return distance - c.StripLength
	}
	if distance > c.WrapThreshold {
		return distance - c.WrapLength
	}
	return distance
}

// ToPhysical converts a raw sample to inches using ConversionFactor and subtracts offset.
func ToPhysical(raw uint32, offset float64) float64 {
	return convert(raw, ConversionFactor, offset)
}

func convert(raw uint32, factor, offset float64) float64 {
	return float64(raw)*factor - offset
}

// RawPosition reads the sensor data bank under the bank lock and returns the
// last known-good 26 bit position.
//
// A sample is only committed when the status classification of the same
// snapshot is no_errors; otherwise the previous value is returned and the
// reason is available from Status. An error is returned only when the
// transport fails, together with the previous value.
func (d *Device) RawPosition() (uint32, error) {
	err := d.withBankLocked(func() error {
		var bank [4]byte
		for i := range bank {
			v, err := d.ReadRegister(RegSCData1+Register(i), 1)
			if err != nil {
				return fmt.Errorf("read data bank byte %d: %w", i, err)
			}
			bank[i] = byte(v)
		}

		// The two low bits are the encoder's error and warning flags
		candidate := (frame.PackBank(bank) >> statusBits) & RawMask

		validity, err := d.ReadRegister(RegSValid, 1)
		if err != nil {
			return fmt.Errorf("read validity: %w", err)
		}

		if d.classify(bank[0]&EncoderStatusMask, validity == validityOK).OK() {
			d.rawPosition = candidate
		}
		return nil
	})
	return d.rawPosition, err
}

// Position returns the offset-corrected physical position of the read head.
// On a transport error the position derived from the last good sample is
// returned alongside the error.
func (d *Device) Position() (float64, error) {
	raw, err := d.RawPosition()
	distance := convert(raw, d.config.ConversionFactor, d.config.Offset)
	return d.config.Correction.Apply(distance), err
}
