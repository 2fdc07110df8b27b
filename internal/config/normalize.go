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

package config

import "strings"

// Normalize applies post-decode normalization.
// It is allowed to mutate configuration.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Device.Transport = strings.ToLower(strings.TrimSpace(cfg.Device.Transport))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	// Publishing is opt-in; fill the timeout only when a block is present
	if cfg.Publish != nil && cfg.Publish.TimeoutMs == 0 {
		cfg.Publish.TimeoutMs = 1000
	}
}
