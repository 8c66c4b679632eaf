// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package linuxboard

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/imu"
)

var accelRangeG = []int{2, 4, 8, 16}
var gyroRangeDPS = []int{250, 500, 1000, 2000}

// openMPU9250 brings up the MPU9250 on the configured SPI device. Self-test
// and calibration failures only warn.
func openMPU9250(cfg Config, logger *zap.SugaredLogger) (*mpu9250.MPU9250, error) {
	const op = "IMUInit"
	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, board.NewError(board.KindSensorUnavailable, op, "CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, board.WrapError(board.KindSensorUnavailable, op, errors.Wrapf(err, "SPI transport (%s)", cfg.IMUSPIDevice))
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, board.WrapError(board.KindSensorUnavailable, op, errors.Wrap(err, "device creation"))
	}
	if err := dev.Init(); err != nil {
		return nil, board.WrapError(board.KindSensorUnavailable, op, errors.Wrap(err, "initialization"))
	}

	if err := dev.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, board.WrapError(board.KindBusError, op, errors.Wrap(err, "set accel range"))
	}
	logger.Infow("linuxboard: accelerometer range set", "code", cfg.IMUAccelRange, "g", accelRangeG[cfg.IMUAccelRange])

	if err := dev.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, board.WrapError(board.KindBusError, op, errors.Wrap(err, "set gyro range"))
	}
	logger.Infow("linuxboard: gyroscope range set", "code", cfg.IMUGyroRange, "dps", gyroRangeDPS[cfg.IMUGyroRange])

	if cfg.IMUSelfTest {
		if res, err := dev.SelfTest(); err != nil {
			logger.Warnw("linuxboard: IMU self-test failed", "error", err)
		} else {
			logger.Infow("linuxboard: IMU self-test passed", "result", res)
		}
		if err := dev.Calibrate(); err != nil {
			logger.Warnw("linuxboard: IMU calibration failed", "error", err)
		} else {
			logger.Info("linuxboard: IMU calibration complete")
		}
	}
	return dev, nil
}

// readMPU9250 reads accelerometer then gyroscope, one register pair per axis.
func readMPU9250(dev *mpu9250.MPU9250) (imu.Sample, error) {
	const op = "IMURead"
	readers := []struct {
		axis string
		get  func() (int16, error)
	}{
		{"accel X", dev.GetAccelerationX},
		{"accel Y", dev.GetAccelerationY},
		{"accel Z", dev.GetAccelerationZ},
		{"gyro X", dev.GetRotationX},
		{"gyro Y", dev.GetRotationY},
		{"gyro Z", dev.GetRotationZ},
	}
	var v [6]int16
	for i, r := range readers {
		x, err := r.get()
		if err != nil {
			return imu.Sample{}, board.WrapError(board.KindBusError, op, errors.Wrap(err, r.axis))
		}
		v[i] = x
	}
	return imu.Sample{Ax: v[0], Ay: v[1], Az: v[2], Gx: v[3], Gy: v[4], Gz: v[5]}, nil
}
