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
	"context"
	"log/slog"
)

// Status is the coarse health of the encoder link as seen by the driver.
type Status uint8

const (
	// StatusNoErrors means the last sample was valid and may be released
	StatusNoErrors Status = iota
	// StatusInvalidCRC means the single cycle data CRC between master and encoder failed
	StatusInvalidCRC
	// StatusEncoderWarning means the encoder reported a warning (close to overspeed)
	StatusEncoderWarning
	// StatusEncoderAlarm means the encoder reported invalid position data. It is sticky.
	StatusEncoderAlarm
)

func (s Status) String() string {
	switch s {
	case StatusNoErrors:
		return "no_errors"
	case StatusInvalidCRC:
		return "invalid_crc"
	case StatusEncoderWarning:
		return "encoder_warning"
	case StatusEncoderAlarm:
		return "encoder_alarm"
	default:
		return "unknown"
	}
}

// OK reports whether the status allows a sample to be committed
func (s Status) OK() bool {
	return s == StatusNoErrors
}

// Classify derives the next status from the encoder status code and the
// validity flag. The first matching rule wins:
//
//  1. code 0 and valid, not alarmed: no_errors
//  2. not valid, not alarmed: invalid_crc
//  3. code 1, not alarmed: encoder_warning
//  4. code 2, or already alarmed: encoder_alarm
//
// Any other combination leaves prev unchanged. Once alarmed, none of the
// rules lead back out; only Device.ClearAlarm does.
func Classify(code uint8, valid bool, prev Status) Status {
	alarmed := prev == StatusEncoderAlarm

	switch {
	case code == encoderStatusOK && valid && !alarmed:
		return StatusNoErrors
	case !valid && !alarmed:
		return StatusInvalidCRC
	case code == encoderStatusWarning && !alarmed:
		return StatusEncoderWarning
	case code == encoderStatusAlarm || alarmed:
		return StatusEncoderAlarm
	default:
		return prev
	}
}

// StatusObserver is notified when the device status changes.
type StatusObserver func(from, to Status)

// classify updates the stored status from one locked bank snapshot.
func (d *Device) classify(code uint8, valid bool) Status {
	prev := d.status
	next := Classify(code, valid, prev)
	d.status = next

	if next != prev {
		level := slog.LevelWarn
		if next.OK() {
			level = slog.LevelInfo
		}
		d.logger.Log(context.Background(), level, "status transition",
			"from", prev.String(),
			"to", next.String(),
			"code", code,
			"valid", valid,
		)
		if d.config.StatusObserver != nil {
			d.config.StatusObserver(prev, next)
		}
	}
	return next
}
