// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package msp implements version 1 of the MultiWii Serial Protocol:
//
//	'$' 'M' <direction> <size> <command> <payload...> <checksum>
//
// where the checksum is the XOR of size, command and every payload byte.
// Multi-byte payload fields are little-endian.
package msp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Command identifies an MSP message.
type Command uint8

const (
	CmdReboot   Command = 68
	CmdIdent    Command = 100
	CmdStatus   Command = 101
	CmdRawIMU   Command = 102
	CmdMotor    Command = 104
	CmdRC       Command = 105
	CmdAttitude Command = 108
	CmdSetMotor Command = 214
)

var commandNames = map[Command]string{
	CmdReboot:   "MSP_REBOOT",
	CmdIdent:    "MSP_IDENT",
	CmdStatus:   "MSP_STATUS",
	CmdRawIMU:   "MSP_RAW_IMU",
	CmdMotor:    "MSP_MOTOR",
	CmdRC:       "MSP_RC",
	CmdAttitude: "MSP_ATTITUDE",
	CmdSetMotor: "MSP_SET_MOTOR",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("MSP_%d", uint8(c))
}

// Direction is the third header byte.
type Direction byte

const (
	ToBoard    Direction = '<'
	FromBoard  Direction = '>'
	ErrorReply Direction = '!'
)

// MaxPayload is the largest payload a v1 size byte can describe.
const MaxPayload = 255

var (
	ErrChecksum        = errors.New("msp: checksum mismatch")
	ErrDirection       = errors.New("msp: bad direction byte")
	ErrPayloadTooLarge = errors.New("msp: payload too large")
)

// Frame is one decoded message.
type Frame struct {
	Direction Direction
	Command   Command
	Payload   []byte
}

func checksum(size byte, cmd Command, payload []byte) byte {
	c := size ^ byte(cmd)
	for _, b := range payload {
		c ^= b
	}
	return c
}

// Encode frames payload for cmd.
func Encode(dir Direction, cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%s: %d bytes", cmd, len(payload))
	}
	out := make([]byte, 0, len(payload)+6)
	out = append(out, '$', 'M', byte(dir), byte(len(payload)), byte(cmd))
	out = append(out, payload...)
	return append(out, checksum(byte(len(payload)), cmd, payload)), nil
}

// Request encodes a host-to-board frame.
func Request(cmd Command, payload []byte) ([]byte, error) {
	return Encode(ToBoard, cmd, payload)
}
