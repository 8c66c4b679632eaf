// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAccelRangeToAcc1G(t *testing.T) {
	test.That(t, AccelRangeToAcc1G(0), test.ShouldEqual, uint16(16384))
	test.That(t, AccelRangeToAcc1G(1), test.ShouldEqual, uint16(8192))
	test.That(t, AccelRangeToAcc1G(2), test.ShouldEqual, uint16(4096))
	test.That(t, AccelRangeToAcc1G(3), test.ShouldEqual, uint16(2048))
	// out of range codes saturate at ±16g
	test.That(t, AccelRangeToAcc1G(9), test.ShouldEqual, uint16(2048))
}

func TestGyroRangeToScale(t *testing.T) {
	// ±2000°/s -> 16.384 counts per °/s
	want := 2000.0 / 32768.0 * math.Pi / 180.0
	test.That(t, float64(GyroRangeToScale(3)), test.ShouldAlmostEqual, want, 1e-9)
	test.That(t, float64(GyroRangeToScale(0))*8, test.ShouldAlmostEqual, want, 1e-9)
}

func TestSampleConversions(t *testing.T) {
	sc := ScaleForRanges(2, 3)
	s := Sample{Ax: 0, Ay: -2048, Az: 4096, Gx: 100, Gy: 0, Gz: -100}

	g := s.AccelG(sc)
	test.That(t, g[0], test.ShouldEqual, 0.0)
	test.That(t, g[1], test.ShouldEqual, -0.5)
	test.That(t, g[2], test.ShouldEqual, 1.0)

	w := s.GyroRadPerSec(sc)
	test.That(t, w[0], test.ShouldAlmostEqual, 100*float64(sc.GyroScale), 1e-9)
	test.That(t, w[2], test.ShouldAlmostEqual, -w[0], 1e-9)

	test.That(t, s.AccelG(Scale{}), test.ShouldResemble, [3]float64{})
	test.That(t, s.Accel(), test.ShouldResemble, [3]int16{0, -2048, 4096})
	test.That(t, s.Gyro(), test.ShouldResemble, [3]int16{100, 0, -100})
}
