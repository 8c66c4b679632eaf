// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/flight_board/internal/imu"
)

// SampleReader is the IMU half of a board.
type SampleReader interface {
	IMURead() (imu.Sample, error)
}

type imuSource struct {
	r SampleReader
}

// NewIMUSource returns a Source that reads roll/pitch from the accelerometer
// of an already initialized IMU. Yaw stays 0 until a magnetometer is fused.
func NewIMUSource(r SampleReader) Source {
	return &imuSource{r: r}
}

func (s *imuSource) Next() (Pose, error) {
	sample, err := s.r.IMURead()
	if err != nil {
		return Pose{}, errors.Wrap(err, "orientation: IMU read")
	}
	return PoseFromSample(sample), nil
}
