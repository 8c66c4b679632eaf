// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/flight_board/internal/imu"
)

// Pose is the attitude reported over telemetry and MSP_ATTITUDE, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Any consistent unit works since only ratios matter. Yaw is always 0.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// PoseFromSample is ComputePoseFromAccel on the accelerometer slots of a raw
// sample.
func PoseFromSample(s imu.Sample) Pose {
	return ComputePoseFromAccel(float64(s.Ax), float64(s.Ay), float64(s.Az))
}

// Decidegrees returns roll and pitch in tenths of a degree and yaw in whole
// degrees normalized to [0, 360), the MSP_ATTITUDE layout.
func (p Pose) Decidegrees() (roll, pitch, yaw int16) {
	y := math.Mod(p.Yaw, 360)
	if y < 0 {
		y += 360
	}
	return int16(math.Round(p.Roll * 10)), int16(math.Round(p.Pitch * 10)), int16(math.Round(y)) % 360
}
