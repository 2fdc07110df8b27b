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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mb4 "github.com/ZaparooProject/go-mb4"
	"github.com/ZaparooProject/go-mb4/detection"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-mb4/detection/spi"
	_ "github.com/ZaparooProject/go-mb4/detection/uart"
	"github.com/ZaparooProject/go-mb4/internal/config"
	"github.com/ZaparooProject/go-mb4/internal/publish"
	"github.com/ZaparooProject/go-mb4/polling"
	"github.com/ZaparooProject/go-mb4/transport/buspirate"
	"github.com/ZaparooProject/go-mb4/transport/spi"
	"periph.io/x/conn/v3/physic"
	periphspi "periph.io/x/conn/v3/spi"
)

type flags struct {
	configPath *string
	devicePath *string
	transport  *string
	selectPin  *string
	offset     *float64
	interval   *time.Duration
	count      *int
	debug      *bool
	detect     *bool
	dump       *bool
	clearAlarm *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", "", "Path to a YAML configuration file"),
		devicePath: flag.String("device", "",
			"SPI bus (e.g., /dev/spidev0.0) or Bus Pirate serial port. Leave empty for auto-detection."),
		transport: flag.String("transport", "", "Transport: spi or buspirate (default: from config or detection)"),
		selectPin: flag.String("select", "", "GPIO used as chip select for the spi transport (e.g., GPIO8)"),
		offset:    flag.Float64("offset", 0, "Distance subtracted from every position"),
		interval:  flag.Duration("interval", 0, "Polling interval (default: from config, 100ms)"),
		count:     flag.Int("count", 0, "Stop after this many readings (0 runs until interrupted)"),
		debug:     flag.Bool("debug", false, "Log every bus transfer"),
		detect:    flag.Bool("detect", false, "List detected devices and exit"),
		dump:      flag.Bool("dump", false, "Print the diagnostic registers after bring-up"),
		clearAlarm: flag.Bool("clear-alarm", false,
			"Clear a latched encoder alarm so positions resume on the next clean sample"),
	}
	flag.Parse()
	return f
}

// loadConfig merges the config file with flags set on the command line
func loadConfig(f *flags) (*config.Config, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			cfg.Device.Path = *f.devicePath
		case "transport":
			cfg.Device.Transport = strings.ToLower(*f.transport)
		case "select":
			cfg.Device.SelectPin = *f.selectPin
		case "offset":
			cfg.Sensor.Offset = *f.offset
		case "interval":
			cfg.Poll.IntervalMs = int(f.interval.Milliseconds())
		case "debug":
			if *f.debug {
				cfg.Log.Level = "debug"
			}
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newTransport opens the transport named in the device config
func newTransport(dev config.DeviceConfig) (mb4.Transport, error) {
	switch dev.Transport {
	case "spi":
		transport, err := spi.New(dev.Path, dev.SelectPin)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	case "buspirate":
		transport, err := buspirate.New(dev.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bus Pirate transport: %w", err)
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %q", dev.Transport)
	}
}

// resolveDevice fills in transport and path from detection when they are not configured
func resolveDevice(ctx context.Context, dev *config.DeviceConfig, logger *slog.Logger) error {
	if dev.Transport != "" && dev.Path != "" {
		return nil
	}

	opts := detection.DefaultOptions()
	var (
		devices []detection.DeviceInfo
		err     error
	)
	if dev.Transport != "" {
		devices, err = detection.DetectTransport(ctx, dev.Transport, &opts)
	} else {
		devices, err = detection.DetectAll(ctx, &opts)
	}
	if err != nil {
		return fmt.Errorf("auto-detection failed: %w", err)
	}

	found := devices[0]
	dev.Transport = found.Transport
	dev.Path = found.Path
	logger.Info("detected device",
		"transport", found.Transport, "path", found.Path,
		"name", found.Name, "confidence", found.Confidence)

	if dev.Transport == "spi" && dev.SelectPin == "" {
		return errors.New("detected an SPI bus but no select pin is configured")
	}
	return nil
}

func listDevices(ctx context.Context) error {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return err
	}
	for _, d := range devices {
		_, _ = fmt.Printf("%-10s %-24s %-8s %s\n", d.Transport, d.Path, d.Confidence, d.Name)
	}
	return nil
}

func deviceOptions(cfg *config.Config, logger *slog.Logger) []mb4.Option {
	return []mb4.Option{
		mb4.WithLogger(logger),
		mb4.WithOffset(cfg.Sensor.Offset),
		mb4.WithConversionFactor(cfg.Sensor.ConversionFactor),
		mb4.WithCorrection(cfg.Sensor.Correction),
		mb4.WithBringUp(cfg.Sensor.BringUp),
		mb4.WithSettleDelay(cfg.SettleDelay()),
		mb4.WithBusSettings(mb4.Settings{
			Clock:    physic.Frequency(cfg.Device.ClockHz) * physic.Hertz,
			BitOrder: mb4.MSBFirst,
			Mode:     periphspi.Mode(cfg.Device.SPIMode),
		}),
	}
}

func openDevice(ctx context.Context, cfg *config.Config, logger *slog.Logger, debug bool) (*mb4.Device, error) {
	if err := resolveDevice(ctx, &cfg.Device, logger); err != nil {
		return nil, err
	}

	transport, err := newTransport(cfg.Device)
	if err != nil {
		return nil, err
	}
	if debug {
		transport = mb4.NewLoggedTransport(transport, logger, slog.LevelDebug, mb4.LogAll)
	}

	device, err := mb4.New(transport, deviceOptions(cfg, logger)...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	if version, err := device.Version(); err == nil {
		logger.Info("iC-MB4 found", "version", version.String())
	}

	if err := device.Configure(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("bring-up failed: %w", err)
	}
	return device, nil
}

func dumpRegisters(device *mb4.Device) error {
	values, err := device.DumpRegisters()
	for _, v := range values {
		_, _ = fmt.Printf("%-10s 0x%02X\n", v.Register, v.Value)
	}
	if err != nil {
		return fmt.Errorf("register dump incomplete: %w", err)
	}
	return nil
}

// alarmClearer is the part of mb4.Device the alarm handler needs
type alarmClearer interface {
	ClearAlarm()
}

// alarmHandler reports a latched encoder alarm and, with autoClear, clears it.
// It runs on the polling goroutine, which is the only user of the device.
func alarmHandler(device alarmClearer, logger *slog.Logger, autoClear bool) func(from, to mb4.Status) {
	return func(from, to mb4.Status) {
		if to != mb4.StatusEncoderAlarm {
			return
		}
		if autoClear {
			logger.Warn("encoder alarm latched, clearing", "from", from)
			device.ClearAlarm()
			return
		}
		logger.Warn("encoder alarm latched, positions are held until it is cleared (run with -clear-alarm)",
			"from", from)
	}
}

func newMonitor(
	device *mb4.Device,
	cfg *config.Config,
	f *flags,
	logger *slog.Logger,
) (*polling.Monitor, error) {
	pollConfig := polling.DefaultConfig()
	pollConfig.PollInterval = cfg.PollInterval()
	pollConfig.StaleTimeout = cfg.StaleTimeout()
	pollConfig.ErrorThreshold = cfg.Poll.ErrorThreshold
	pollConfig.MaxReadings = *f.count

	monitor, err := polling.NewMonitor(device, pollConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	monitor.OnStatusChanged = alarmHandler(device, logger, *f.clearAlarm)
	monitor.OnHealthChanged = func(from, to polling.LinkHealth) {
		logger.Info("link health changed", "from", from, "to", to)
	}
	monitor.OnError = func(err error) {
		logger.Error("read failed", "error", err)
	}
	return monitor, nil
}

func printReading(r polling.Reading) {
	_, _ = fmt.Printf("%s raw=%-9d pos=%10.4f status=%s\n",
		r.Time.Format("15:04:05.000"), r.Raw, r.Position, r.Status)
}

func run(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	if *f.detect {
		return listDevices(ctx)
	}

	device, err := openDevice(ctx, cfg, logger, *f.debug)
	if err != nil {
		return err
	}
	defer func() { _ = device.Close() }()

	if *f.dump {
		if err := dumpRegisters(device); err != nil {
			return err
		}
	}

	monitor, err := newMonitor(device, cfg, f, logger)
	if err != nil {
		return err
	}

	var publisher *publish.Publisher
	if p := cfg.Publish; p != nil {
		publisher, err = publish.Dial(publish.Config{
			Endpoint: p.Endpoint,
			UnitID:   p.UnitID,
			Address:  p.Address,
			Timeout:  p.Timeout(),
		})
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		logger.Info("publishing readings", "endpoint", p.Endpoint, "address", p.Address)
	}

	monitor.OnReading = func(r polling.Reading) {
		printReading(r)
		if publisher == nil {
			return
		}
		if err := publisher.Publish(r); err != nil {
			logger.Warn("publish failed", "error", err)
		}
	}

	err = monitor.Start(ctx)
	m := monitor.GetMetrics()
	logger.Info("polling stopped", "cycles", m.PollCycles, "errors", m.PollErrors)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	f := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
