// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// Sample represents a single raw accelerometer + gyroscope reading in sensor counts.
type Sample struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Scale is the calibration output of IMU initialization.
type Scale struct {
	Acc1G     uint16  `json:"acc_1g"`     // accelerometer counts per 1 g
	GyroScale float32 `json:"gyro_scale"` // rad/s per gyro count
}

// Accel returns the accelerometer triple.
func (s Sample) Accel() [3]int16 { return [3]int16{s.Ax, s.Ay, s.Az} }

// Gyro returns the gyroscope triple.
func (s Sample) Gyro() [3]int16 { return [3]int16{s.Gx, s.Gy, s.Gz} }

// AccelG converts the accelerometer counts to g using the given scale.
// A zero Acc1G yields zeros.
func (s Sample) AccelG(sc Scale) [3]float64 {
	if sc.Acc1G == 0 {
		return [3]float64{}
	}
	d := float64(sc.Acc1G)
	return [3]float64{float64(s.Ax) / d, float64(s.Ay) / d, float64(s.Az) / d}
}

// GyroRadPerSec converts the gyroscope counts to rad/s using the given scale.
func (s Sample) GyroRadPerSec(sc Scale) [3]float64 {
	k := float64(sc.GyroScale)
	return [3]float64{float64(s.Gx) * k, float64(s.Gy) * k, float64(s.Gz) * k}
}

// AccelRangeToAcc1G returns counts per g for an MPU-class accel range code:
// 0=±2g, 1=±4g, 2=±8g, 3=±16g.
func AccelRangeToAcc1G(rangeCode byte) uint16 {
	if rangeCode > 3 {
		rangeCode = 3
	}
	return uint16(16384 >> rangeCode)
}

// GyroRangeToScale returns rad/s per count for an MPU-class gyro range code:
// 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s.
func GyroRangeToScale(rangeCode byte) float32 {
	if rangeCode > 3 {
		rangeCode = 3
	}
	fullScaleDeg := float64(int(250) << rangeCode)
	return float32(fullScaleDeg / 32768.0 * math.Pi / 180.0)
}

// ScaleForRanges combines AccelRangeToAcc1G and GyroRangeToScale.
func ScaleForRanges(accelRange, gyroRange byte) Scale {
	return Scale{
		Acc1G:     AccelRangeToAcc1G(accelRange),
		GyroScale: GyroRangeToScale(gyroRange),
	}
}
