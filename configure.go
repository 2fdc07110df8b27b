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
	"fmt"
	"time"
)

// Protocol and line settings understood by the iC-MB4
const (
	ProtocolBiSSC byte = 5    // CFGCH1 bits 3:0, REGVERS bit 6
	Channel1      byte = 0x01 // CHSEL: channel 1 active, channel 2 off
	LineRS422     byte = 0x02 // CFGIF bits 3:2
	AllSensors    byte = 0x00 // ACTnSENS: every slave is a sensor
)

// BringUpConfig is the register configuration written by Configure. The
// defaults drive a Renishaw LMA10 with 26 position bits and 2 status bits.
type BringUpConfig struct {
	// SettleDelay is how long to wait for the first automatic sensor cycle
	SettleDelay time.Duration `yaml:"-"`
	// Channel is written to CHSEL
	Channel byte `yaml:"channel"`
	// Protocol selects the serial protocol in CFGCH1 and REGVERS
	Protocol byte `yaml:"protocol"`
	// ClockDivisor goes into FREQ bits 4:0
	ClockDivisor byte `yaml:"clock_divisor"`
	// AutoPollFrequency is written to FREQAGS
	AutoPollFrequency byte `yaml:"auto_poll_frequency"`
	// LineLevel goes into CFGIF bits 3:2
	LineLevel byte `yaml:"line_level"`
	// DataLength is the single cycle data length minus one, SCDLEN1 bits 5:0
	DataLength byte `yaml:"data_length"`
	// CRCSelect goes into SELCRCS1 bit 7
	CRCSelect byte `yaml:"crc_select"`
	// CRCPolynomial goes into SCRCLEN1 bits 6:0
	CRCPolynomial byte `yaml:"crc_polynomial"`
	// CRCStart is the CRC start value, written to both SCRCSTART1 bytes
	CRCStart byte `yaml:"crc_start"`
	// SlaveTypes is written to ACTnSENS
	SlaveTypes byte `yaml:"slave_types"`
	// InternalClock enables the internal clock source in CFGIF bit 0
	InternalClock bool `yaml:"internal_clock"`
	// SingleCycleData enables SCD in ENSCD1 (SCDLEN1 bit 6)
	SingleCycleData bool `yaml:"single_cycle_data"`
}

// DefaultBringUpConfig returns the configuration for a BiSS-C LMA10 on channel 1
func DefaultBringUpConfig() BringUpConfig {
	return BringUpConfig{
		SettleDelay:       time.Second,
		Channel:           Channel1,
		Protocol:          ProtocolBiSSC,
		ClockDivisor:      0x03,
		AutoPollFrequency: 0x81,
		LineLevel:         LineRS422,
		DataLength:        27, // 26 position + 2 status bits, minus one
		CRCSelect:         0,
		CRCPolynomial:     6,
		CRCStart:          0,
		SlaveTypes:        AllSensors,
		InternalClock:     true,
		SingleCycleData:   true,
	}
}

// Validate checks that every field fits its register bits
func (c BringUpConfig) Validate() error {
	fields := []struct {
		name  string
		value byte
		max   byte
	}{
		{"protocol", c.Protocol, 0x0F},
		{"clock divisor", c.ClockDivisor, 0x1F},
		{"line level", c.LineLevel, 0x03},
		{"data length", c.DataLength, 0x3F},
		{"crc select", c.CRCSelect, 0x01},
		{"crc polynomial", c.CRCPolynomial, 0x7F},
	}
	for _, f := range fields {
		if f.value > f.max {
			return fmt.Errorf("%w: %s 0x%02X exceeds 0x%02X", ErrInvalidParameter, f.name, f.value, f.max)
		}
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("%w: negative settle delay", ErrInvalidParameter)
	}
	return nil
}

type bringUpStep struct {
	apply func() error
	name  string
	reg   Register
	count int
}

// Configure brings the master up: it stops any running cycle, selects
// channel 1 with the configured protocol, clocking, frame length and CRC,
// starts automatic sensor cycles, waits for the first cycle and takes a
// first reading. Register read-backs are logged at debug level.
func (d *Device) Configure(ctx context.Context) error {
	c := d.config.BringUp
	if err := c.Validate(); err != nil {
		return err
	}

	if err := d.WriteInstruction(InstrBreak); err != nil {
		return fmt.Errorf("break: %w", err)
	}

	ifBits := c.LineLevel << 2
	if c.InternalClock {
		ifBits |= 0x01
	}
	scdLen := c.DataLength
	if c.SingleCycleData {
		scdLen |= 1 << 6
	}

	steps := []bringUpStep{
		{name: "channel select", reg: RegChannelSel, count: 1, apply: func() error {
			return d.WriteRegister(RegChannelSel, c.Channel)
		}},
		{name: "register version", reg: RegRegVers, count: 1, apply: func() error {
			return d.WriteRegister(RegRegVers, c.Protocol<<6)
		}},
		{name: "clock frequency", reg: RegFreq, count: 1, apply: func() error {
			return d.updateRegister(RegFreq, 0x1F, c.ClockDivisor)
		}},
		{name: "channel config", reg: RegCfgCh1, count: 1, apply: func() error {
			return d.updateRegister(RegCfgCh1, 0x0F, c.Protocol)
		}},
		{name: "auto poll frequency", reg: RegFreqAGS, count: 1, apply: func() error {
			return d.WriteRegister(RegFreqAGS, c.AutoPollFrequency)
		}},
		{name: "interface config", reg: RegCfgIF, count: 1, apply: func() error {
			return d.updateRegister(RegCfgIF, 0x0F, ifBits)
		}},
		{name: "single cycle data length", reg: RegSCDLen1, count: 1, apply: func() error {
			return d.updateRegister(RegSCDLen1, 0xFF, scdLen)
		}},
		{name: "crc select", reg: RegSelCRCS1, count: 1, apply: func() error {
			return d.WriteRegister(RegSelCRCS1, c.CRCSelect<<7|c.CRCPolynomial)
		}},
		{name: "crc start", reg: RegSCRCStart1, count: 2, apply: func() error {
			return d.WriteRegisters(RegSCRCStart1, []byte{c.CRCStart, c.CRCStart})
		}},
		{name: "slave types", reg: RegActNSens, count: 1, apply: func() error {
			return d.WriteRegister(RegActNSens, c.SlaveTypes)
		}},
	}

	for _, step := range steps {
		if err := step.apply(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		readBack, err := d.ReadRegister(step.reg, step.count)
		if err != nil {
			return fmt.Errorf("%s read-back: %w", step.name, err)
		}
		d.logger.Debug("bring-up", "step", step.name, "register", step.reg.String(), "value", readBack)
	}

	if _, err := d.applyInstructionMask(InstrAutoGetSensor, true); err != nil {
		return fmt.Errorf("start automatic sensor cycles: %w", err)
	}
	if instr, err := d.ReadRegister(RegInstruction, 1); err != nil {
		d.logger.Warn("bring-up read-back failed", "step", "instruction", "error", err)
	} else {
		d.logger.Debug("bring-up", "step", "instruction", "value", fmt.Sprintf("%08b", instr))
	}

	version, err := d.Version()
	if err != nil {
		return err
	}
	d.logger.Info("iC-MB4 configured", "version", version.Version, "revision", version.Revision)

	if c.SettleDelay > 0 {
		timer := time.NewTimer(c.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("waiting for first sensor cycle: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if bank, err := d.DataBank(); err != nil {
		d.logger.Warn("initial data bank unreadable", "error", err)
	} else {
		d.logger.Debug("initial data bank", "bank", fmt.Sprintf("% X", bank[:]))
	}

	raw, err := d.RawPosition()
	if err != nil {
		return fmt.Errorf("first reading: %w", err)
	}
	d.logger.Info("first reading", "raw", raw, "status", d.status.String())
	return nil
}
