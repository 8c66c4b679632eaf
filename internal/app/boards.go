// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/board/linuxboard"
	"github.com/relabs-tech/flight_board/internal/board/sim"
	"github.com/relabs-tech/flight_board/internal/config"
)

// NewBoard builds the board selected by cfg.Board. The board is not
// initialized.
func NewBoard(cfg *config.Config, logger *zap.SugaredLogger) (board.Board, error) {
	switch cfg.Board {
	case config.BoardSim:
		return sim.New(sim.Config{
			Name:             cfg.BoardName,
			Motors:           cfg.MotorCount,
			Channels:         cfg.RCChannels,
			MotorMinUS:       cfg.MotorMinUS,
			MotorMaxUS:       cfg.MotorMaxUS,
			AccelRange:       cfg.IMUAccelRange,
			GyroRange:        cfg.IMUGyroRange,
			Noise:            cfg.SimNoise,
			Seed:             cfg.SimSeed,
			SerialBufferSize: cfg.SerialBufferSize,
		}, logger.Named("sim")), nil
	case config.BoardLinux:
		return linuxboard.New(linuxboard.Config{
			Name:             cfg.BoardName,
			MotorPins:        cfg.MotorPins,
			MotorMinUS:       cfg.MotorMinUS,
			MotorMaxUS:       cfg.MotorMaxUS,
			MotorPWMHz:       cfg.MotorPWMHz,
			RCChip:           cfg.RCGPIOChip,
			RCLines:          cfg.RCLines,
			LEDGreenPin:      cfg.LEDGreenPin,
			LEDRedPin:        cfg.LEDRedPin,
			LEDActiveLow:     cfg.LEDActiveLow,
			IMUSPIDevice:     cfg.IMUSPIDevice,
			IMUCSPin:         cfg.IMUCSPin,
			IMUAccelRange:    cfg.IMUAccelRange,
			IMUGyroRange:     cfg.IMUGyroRange,
			IMUSelfTest:      cfg.IMUSelfTest,
			SerialPort:       cfg.SerialPort,
			SerialBaudRate:   cfg.SerialBaudRate,
			SerialBufferSize: cfg.SerialBufferSize,
		}, logger.Named("linux"))
	default:
		return nil, errors.Errorf("unknown board kind %q", cfg.Board)
	}
}
