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

// Package spi detects Linux spidev nodes an iC-MB4 may be wired to
package spi

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/ZaparooProject/go-mb4/detection"
)

// devGlob matches spidev nodes
const devGlob = "/dev/spidev*"

// detector implements the Detector interface for SPI buses
type detector struct {
	glob string
}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{glob: devGlob}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect lists spidev nodes; in Safe mode each node is opened and its
// maximum clock rate is read
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if runtime.GOOS != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	matches, err := filepath.Glob(d.glob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for SPI devices: %w", err)
	}
	sort.Strings(matches)

	devices := make([]detection.DeviceInfo, 0, len(matches))
	for _, path := range matches {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		device, ok := deviceInfo(path)
		if !ok || detection.IsPathIgnored(path, opts.IgnorePaths) {
			continue
		}
		if opts.Mode == detection.Safe {
			probe(path, &device)
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// deviceInfo builds the passive description of a spidevB.C node
func deviceInfo(path string) (detection.DeviceInfo, bool) {
	var bus, chipSelect int
	if _, err := fmt.Sscanf(filepath.Base(path), "spidev%d.%d", &bus, &chipSelect); err != nil {
		return detection.DeviceInfo{}, false
	}
	return detection.DeviceInfo{
		Transport:  "spi",
		Path:       path,
		Name:       fmt.Sprintf("SPI bus %d chip select %d", bus, chipSelect),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"bus":         fmt.Sprintf("%d", bus),
			"chip_select": fmt.Sprintf("%d", chipSelect),
		},
	}, true
}
