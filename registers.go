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

import "fmt"

// Register is an 8-bit address in the iC-MB4 register space.
// Names follow the iC-MB4 datasheet.
type Register byte

const (
	RegSCData1     Register = 0x00 // sensor data bank, channel 1 (0x00-0x07)
	RegSCData1CRC  Register = 0x07
	RegSCDLen1     Register = 0xC0 // SCDLEN1 bits 5:0, ENSCD1 bit 6
	RegSelCRCS1    Register = 0xC1 // SELCRCS1 bit 7, SCRCLEN1 bits 6:0
	RegSCRCStart1  Register = 0xC2 // 16 bit, 0xC2-0xC3
	RegChannelSel  Register = 0xE4 // CHSEL
	RegRegVers     Register = 0xE5 // REGVERS
	RegFreq        Register = 0xE6 // FREQ
	RegFreqAGS     Register = 0xE8 // FREQAGS
	RegRevision    Register = 0xEA
	RegVersion     Register = 0xEB
	RegEC          Register = 0xEC
	RegCfgCh1      Register = 0xED // CFGCH1
	RegActNSens    Register = 0xEF // ACTnSENS
	RegStatus      Register = 0xF0
	RegSValid      Register = 0xF1 // SVALID
	RegCDMTimeout  Register = 0xF3
	RegInstruction Register = 0xF4 // INSTR
	RegCfgIF       Register = 0xF5 // CFGIF
	RegCDSStatus0  Register = 0xF8
	RegCDSStatus1  Register = 0xF9
)

// DataBankSize is the number of registers in the sensor data bank
const DataBankSize = 8

var registerNames = map[Register]string{
	RegSCData1:     "SCDATA1",
	RegSCData1CRC:  "SCDATA1_CRC",
	RegSCDLen1:     "SCDLEN1",
	RegSelCRCS1:    "SELCRCS1",
	RegSCRCStart1:  "SCRCSTART1",
	RegChannelSel:  "CHSEL",
	RegRegVers:     "REGVERS",
	RegFreq:        "FREQ",
	RegFreqAGS:     "FREQAGS",
	RegRevision:    "REVISION",
	RegVersion:     "VERSION",
	RegEC:          "EC",
	RegCfgCh1:      "CFGCH1",
	RegActNSens:    "ACTnSENS",
	RegStatus:      "STATUS",
	RegSValid:      "SVALID",
	RegCDMTimeout:  "CDMTIMEOUT",
	RegInstruction: "INSTR",
	RegCfgIF:       "CFGIF",
	RegCDSStatus0:  "CDS_STATUS0",
	RegCDSStatus1:  "CDS_STATUS1",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return fmt.Sprintf("%s(0x%02X)", name, byte(r))
	}
	return fmt.Sprintf("0x%02X", byte(r))
}

// diagnosticRegisters are dumped by DumpRegisters, in datasheet order.
var diagnosticRegisters = []Register{
	RegSCDLen1, RegSelCRCS1, RegChannelSel, RegRegVers, RegFreq, RegFreqAGS,
	RegRevision, RegVersion, RegEC, RegCfgCh1, RegStatus, RegSValid,
	RegCDMTimeout, RegCfgIF, RegCDSStatus0, RegCDSStatus1,
}

// RegisterValue is one entry of a register dump
type RegisterValue struct {
	Register Register
	Value    byte
}
