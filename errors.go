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
)

// Common errors
var (
	// ErrInvalidParameter is returned when an argument is outside what the chip accepts
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrTransportClosed is returned when the device is used after Close
	ErrTransportClosed = errors.New("transport closed")

	// ErrTransportTimeout is returned by transports when the peer stops answering
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrUnexpectedResponse is returned by bridge transports on a malformed reply
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// TransportError wraps a failure of the underlying transport with the
// operation that was in progress.
type TransportError struct {
	Err       error
	Op        string
	Transport TransportType
}

func (e *TransportError) Error() string {
	if e.Transport == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error
func NewTransportError(op string, transport TransportType, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Transport: transport,
		Err:       err,
	}
}

// IsTransportError reports whether err came from the transport rather than
// from argument validation.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
