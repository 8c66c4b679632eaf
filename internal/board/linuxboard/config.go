// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package linuxboard

import (
	"io"

	"github.com/pkg/errors"
)

// Config describes the wiring of a Linux flight-controller board.
type Config struct {
	Name string

	// One PWM-capable pin per motor, in motor index order.
	MotorPins  []string
	MotorMinUS uint16
	MotorMaxUS uint16
	MotorPWMHz int

	// RC receiver: one GPIO line offset per channel on RCChip.
	RCChip  string
	RCLines []int

	LEDGreenPin  string
	LEDRedPin    string
	LEDActiveLow bool

	IMUSPIDevice  string
	IMUCSPin      string
	IMUAccelRange byte
	IMUGyroRange  byte
	IMUSelfTest   bool

	SerialPort       string
	SerialBaudRate   uint
	SerialBufferSize int

	// OpenSerial opens the UART. Nil uses go-serial.
	OpenSerial func(port string, baud uint) (io.ReadWriteCloser, error)
}

// Validate checks the parts of the wiring that do not need hardware.
func (c Config) Validate() error {
	if c.MotorMinUS >= c.MotorMaxUS {
		return errors.Errorf("motor range %d-%d us is empty", c.MotorMinUS, c.MotorMaxUS)
	}
	if len(c.MotorPins) > 0 {
		if c.MotorPWMHz <= 0 {
			return errors.Errorf("motor PWM frequency %d Hz must be positive", c.MotorPWMHz)
		}
		periodUS := 1_000_000 / c.MotorPWMHz
		if int(c.MotorMaxUS) > periodUS {
			return errors.Errorf("motor max %d us does not fit a %d Hz period", c.MotorMaxUS, c.MotorPWMHz)
		}
	}
	if len(c.RCLines) > 0 && c.RCChip == "" {
		return errors.New("RC lines configured without a GPIO chip")
	}
	if c.IMUAccelRange > 3 {
		return errors.Errorf("accel range %d out of 0-3", c.IMUAccelRange)
	}
	if c.IMUGyroRange > 3 {
		return errors.Errorf("gyro range %d out of 0-3", c.IMUGyroRange)
	}
	return nil
}
