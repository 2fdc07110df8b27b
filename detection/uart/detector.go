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

// Package uart detects Bus Pirate USB serial bridges
package uart

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-mb4/detection"
	"go.bug.st/serial/enumerator"
)

// knownBridge is a USB serial device that can run the Bus Pirate binary SPI mode
type knownBridge struct {
	name       string
	confidence detection.Confidence
}

// knownBridges maps VID:PID to bridge descriptions. The FTDI ID is shared
// with many unrelated adapters, hence its lower confidence.
var knownBridges = map[string]knownBridge{
	"0403:6001": {name: "Bus Pirate v3 (FTDI)", confidence: detection.Low},
	"04D8:FB00": {name: "Bus Pirate v4", confidence: detection.High},
	"1209:7331": {name: "Bus Pirate 5", confidence: detection.High},
}

type portLister func() ([]*enumerator.PortDetails, error)

// detector implements the Detector interface for USB serial bridges
type detector struct {
	list portLister
}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "buspirate"
}

// Detect enumerates USB serial ports and reports known Bus Pirate IDs.
// Ports are never opened: entering binary mode resets the bridge.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if port == nil || !port.IsUSB {
			continue
		}
		vidpid := detection.NormalizeVIDPID(port.VID, port.PID)
		if vidpid == "" || detection.IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		if detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
			continue
		}
		bridge, ok := knownBridges[vidpid]
		if !ok {
			continue
		}

		devices = append(devices, detection.DeviceInfo{
			Transport:  "buspirate",
			Path:       port.Name,
			Name:       bridge.name,
			Confidence: bridge.confidence,
			Metadata: map[string]string{
				"vidpid":  vidpid,
				"serial":  port.SerialNumber,
				"product": port.Product,
			},
		})
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
