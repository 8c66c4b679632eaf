// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxMotors is the number of motor slots in MSP_MOTOR and MSP_SET_MOTOR.
const MaxMotors = 8

// Multitype values for IdentData.
const (
	MultitypeQuadX = 3
	MultitypeHex6X = 10
)

type IdentData struct {
	Version    uint8
	Multitype  uint8
	MSPVersion uint8
	Capability uint32
}

type StatusData struct {
	CycleTime  uint16 // us
	I2CErrors  uint16
	Sensors    uint16
	Flags      uint32
	CurrentSet uint8
}

// Sensor bits for StatusData.Sensors.
const (
	SensorAcc  = 1 << 0
	SensorBaro = 1 << 1
	SensorMag  = 1 << 2
	SensorGPS  = 1 << 3
	SensorGyro = 1 << 5
)

type RawIMUData struct {
	AccX, AccY, AccZ    int16
	GyroX, GyroY, GyroZ int16
	MagX, MagY, MagZ    int16
}

type AttitudeData struct {
	AngX    int16 // 1/10 degree
	AngY    int16 // 1/10 degree
	Heading int16 // degrees
}

// Marshal encodes a fixed-size payload struct or slice of fixed-size values.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, errors.Wrap(err, "msp: marshal payload")
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes payload into v. Trailing bytes are ignored so newer
// peers can append fields.
func Unmarshal(payload []byte, v interface{}) error {
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, v); err != nil {
		return errors.Wrap(err, "msp: unmarshal payload")
	}
	return nil
}

// Uint16s decodes a payload of consecutive little-endian uint16 values, the
// MSP_RC, MSP_MOTOR and MSP_SET_MOTOR layout.
func Uint16s(payload []byte) ([]uint16, error) {
	if len(payload)%2 != 0 {
		return nil, errors.Errorf("msp: odd payload length %d", len(payload))
	}
	out := make([]uint16, len(payload)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(payload[2*i:])
	}
	return out, nil
}

// PutUint16s encodes values as consecutive little-endian uint16.
func PutUint16s(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[2*i:], v)
	}
	return out
}
