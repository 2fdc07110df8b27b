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

// Package detection finds buses an iC-MB4 may be attached to. Detectors for
// each transport register themselves on import; DetectAll runs all of them.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNoDevicesFound is returned when no candidate bus is present
	ErrNoDevicesFound = errors.New("no devices found")

	// ErrUnsupportedPlatform is returned by detectors that cannot run on this OS
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")

	// ErrDetectionTimeout is returned when the context ends during detection
	ErrDetectionTimeout = errors.New("detection timed out")

	// ErrUnknownTransport is returned by DetectTransport for an unregistered transport
	ErrUnknownTransport = errors.New("no detector registered for transport")
)

// Mode controls how far detection goes
type Mode int

const (
	// Passive only lists device nodes and USB descriptors
	Passive Mode = iota
	// Safe additionally opens nodes and issues read-only queries
	Safe
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Confidence expresses how likely a DeviceInfo is an iC-MB4 link
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one candidate bus
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures detection
type Options struct {
	// Blocklist holds VID:PID pairs that must never be opened
	Blocklist []string
	// IgnorePaths holds device paths to skip
	IgnorePaths []string
	// Timeout bounds each detector
	Timeout time.Duration
	Mode    Mode
}

// DefaultOptions returns safe-mode options with the default blocklist
func DefaultOptions() Options {
	return Options{
		Mode:      Safe,
		Timeout:   2 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds candidate devices for one transport
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Detector)
)

// RegisterDetector adds d to the registry, replacing any detector for the same transport
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Transport()] = d
}

// Detectors returns the registered detectors ordered by transport name
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	detectors := make([]Detector, 0, len(registry))
	for _, d := range registry {
		detectors = append(detectors, d)
	}
	sort.Slice(detectors, func(i, j int) bool {
		return detectors[i].Transport() < detectors[j].Transport()
	})
	return detectors
}

// DetectTransport runs the detector registered for transport
func DetectTransport(ctx context.Context, transport string, opts *Options) ([]DeviceInfo, error) {
	registryMu.RLock()
	d, ok := registry[transport]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, transport)
	}
	return runDetector(ctx, d, opts)
}

// DetectAll runs every registered detector and merges their results, highest
// confidence first. Detector failures are skipped unless nothing was found,
// in which case they are returned joined with ErrNoDevicesFound.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for _, d := range Detectors() {
		found, err := runDetector(ctx, d, opts)
		if err != nil {
			if !errors.Is(err, ErrNoDevicesFound) && !errors.Is(err, ErrUnsupportedPlatform) {
				errs = append(errs, fmt.Errorf("%s: %w", d.Transport(), err))
			}
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		return nil, errors.Join(append([]error{ErrNoDevicesFound}, errs...)...)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

func runDetector(ctx context.Context, d Detector, opts *Options) ([]DeviceInfo, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	devices, err := d.Detect(ctx, opts)
	if err != nil {
		return nil, err
	}

	kept := devices[:0]
	for _, dev := range devices {
		if IsPathIgnored(dev.Path, opts.IgnorePaths) {
			continue
		}
		kept = append(kept, dev)
	}
	if len(kept) == 0 {
		return nil, ErrNoDevicesFound
	}
	return kept, nil
}
