//go:build !linux

package spi

import "github.com/ZaparooProject/go-mb4/detection"

// probe is a stub for non-Linux platforms
func probe(string, *detection.DeviceInfo) {}
