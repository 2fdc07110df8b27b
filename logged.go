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
	"sync"
)

// LogOption is a bitmask for selecting which transport operations to log.
type LogOption uint8

const (
	LogNone   LogOption = 0
	LogSelect LogOption = 1 << iota
	LogTransfer
	LogAll = LogSelect | LogTransfer
)

// NewLoggedTransport wraps the given Transport and logs selected operations
// at the given level. Errors are always logged at error level. A shared-bus
// transport keeps its sync.Locker behaviour through the wrapper.
func NewLoggedTransport(inner Transport, logger *slog.Logger, level slog.Level, opts LogOption) Transport {
	logged := &loggedTransport{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
	}
	if locker, ok := inner.(sync.Locker); ok {
		return &lockingLoggedTransport{loggedTransport: logged, Locker: locker}
	}
	return logged
}

type lockingLoggedTransport struct {
	*loggedTransport
	sync.Locker
}

type loggedTransport struct {
	inner  Transport
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
}

func (l *loggedTransport) log(msg string, args ...any) {
	l.logger.Log(context.Background(), l.level, msg, args...)
}

func (l *loggedTransport) logErr(op string, err error) {
	if err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "transport error", "op", op, "error", err)
	}
}

func (l *loggedTransport) BeginTransaction(settings Settings) error {
	err := l.inner.BeginTransaction(settings)
	l.logErr("begin", err)
	return err
}

func (l *loggedTransport) Transfer(out byte) (byte, error) {
	in, err := l.inner.Transfer(out)
	if l.opts&LogTransfer != 0 && err == nil {
		l.log("spi transfer", "out", out, "in", in)
	}
	l.logErr("transfer", err)
	return in, err
}

func (l *loggedTransport) TransferBuffer(buf []byte) error {
	var out []byte
	if l.opts&LogTransfer != 0 {
		out = append(out, buf...)
	}
	err := l.inner.TransferBuffer(buf)
	if l.opts&LogTransfer != 0 && err == nil {
		l.log("spi transfer buffer", "out", out, "in", buf)
	}
	l.logErr("transfer buffer", err)
	return err
}

func (l *loggedTransport) SetSelect(active bool) error {
	err := l.inner.SetSelect(active)
	if l.opts&LogSelect != 0 && err == nil {
		l.log("spi select", "active", active)
	}
	l.logErr("select", err)
	return err
}

func (l *loggedTransport) EndTransaction() error {
	err := l.inner.EndTransaction()
	l.logErr("end", err)
	return err
}

func (l *loggedTransport) Close() error {
	err := l.inner.Close()
	l.logErr("close", err)
	return err
}

func (l *loggedTransport) Type() TransportType {
	return l.inner.Type()
}
