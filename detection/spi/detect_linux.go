//go:build linux

package spi

import (
	"fmt"

	"github.com/ZaparooProject/go-mb4/detection"
	"golang.org/x/sys/unix"
)

// spiIocRdMaxSpeedHz is SPI_IOC_RD_MAX_SPEED_HZ from linux/spi/spidev.h
const spiIocRdMaxSpeedHz = 0x80046b04

// probe issues only read ioctls. A node that opens and answers is a usable bus.
func probe(path string, device *detection.DeviceInfo) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		device.Metadata["error"] = err.Error()
		return
	}
	defer func() { _ = unix.Close(fd) }()

	speed, err := unix.IoctlGetUint32(fd, spiIocRdMaxSpeedHz)
	if err != nil {
		device.Metadata["error"] = err.Error()
		return
	}
	device.Metadata["max_speed_hz"] = fmt.Sprintf("%d", speed)
	device.Confidence = detection.Medium
}
