// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package board defines the hardware boundary between flight software and a
// physical (or simulated) flight-controller board.
//
// A caller constructs one concrete board, calls Init once, and then drives it
// from a single goroutine: IMU reads, RC reads, serial servicing and motor
// writes once per control cycle, LED and reboot handling opportunistically.
package board

import (
	"github.com/relabs-tech/flight_board/internal/imu"
)

// LED identifies one of the two status indicators.
type LED uint8

const (
	Green LED = iota
	Red
)

func (l LED) String() string {
	switch l {
	case Green:
		return "green"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// LEDs lists the indicators every board provides.
var LEDs = []LED{Green, Red}

// Board is the contract a concrete flight-controller board implements.
//
// Every operation except Micros and Close fails with KindNotInitialized
// until Init has succeeded.
type Board interface {
	// Init performs one-time setup. Calling it again is a no-op.
	Init() error

	// CheckReboot latches a pending reboot request and, once one is latched,
	// reboots the board. pending=false with nothing latched does nothing.
	CheckReboot(pending bool) error

	// DelayMilliseconds blocks for at least msec milliseconds.
	DelayMilliseconds(msec uint32)

	// Micros returns microseconds since Init. The counter is monotonically
	// non-decreasing and wraps modulo 2^32 (about 71.6 minutes); use
	// MicrosSince for deltas.
	Micros() uint32

	// IMUInit initializes the inertial sensor and returns its scale factors.
	IMUInit() (imu.Scale, error)

	// IMURead returns the latest accelerometer and gyroscope sample.
	IMURead() (imu.Sample, error)

	LEDOn(led LED) error
	LEDOff(led LED) error
	LEDToggle(led LED) error

	// ReadPWM returns the last decoded RC pulse width in microseconds for
	// channel, or 0 if no pulse has been seen yet.
	ReadPWM(channel uint8) (uint16, error)

	// Reboot restarts the board. It only returns if the restart could not be
	// triggered.
	Reboot() error

	// SerialAvailableBytes reports how many bytes SerialReadByte can return
	// without blocking.
	SerialAvailableBytes() int

	// SerialReadByte returns the next received byte or KindNoData.
	SerialReadByte() (byte, error)

	// SerialWriteByte queues c for transmission. It never blocks; a full
	// transmit queue drops c and returns KindTxOverflow.
	SerialWriteByte(c byte) error

	// WriteMotor sets the output pulse width of motor index, clamped to the
	// board's motor range.
	WriteMotor(index uint8, value uint16) error

	// Close releases the hardware, leaving motors at minimum and LEDs off.
	Close() error
}

// Info describes the fixed parameters of a board.
type Info struct {
	Name       string `json:"name"`
	Motors     int    `json:"motors"`
	Channels   int    `json:"channels"`
	MotorMinUS uint16 `json:"motor_min_us"`
	MotorMaxUS uint16 `json:"motor_max_us"`
}

// Describer is implemented by boards that can report their Info.
type Describer interface {
	Describe() Info
}

// MotorReader is implemented by boards that can report the last value
// written to a motor.
type MotorReader interface {
	Motor(index uint8) (uint16, error)
}

// LEDReader is implemented by boards that can report the state of an LED.
type LEDReader interface {
	LEDState(led LED) (bool, error)
}

// ClampMotor limits value to [min, max].
func ClampMotor(value, min, max uint16) uint16 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ValidLED reports whether led names a known indicator.
func ValidLED(led LED) bool {
	return led == Green || led == Red
}
