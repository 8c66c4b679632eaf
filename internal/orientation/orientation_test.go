// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/relabs-tech/flight_board/internal/imu"
)

func TestComputePoseFromAccel(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 1)
	test.That(t, p.Roll, test.ShouldEqual, 0.0)
	test.That(t, p.Pitch, test.ShouldEqual, 0.0)

	p = ComputePoseFromAccel(0, 1, 0)
	test.That(t, p.Roll, test.ShouldAlmostEqual, 90.0)

	p = ComputePoseFromAccel(-1, 0, 0)
	test.That(t, p.Pitch, test.ShouldAlmostEqual, 90.0)

	p = PoseFromSample(imu.Sample{Ax: 0, Ay: 4096, Az: 4096})
	test.That(t, p.Roll, test.ShouldAlmostEqual, 45.0)
}

func TestDecidegrees(t *testing.T) {
	r, p, y := Pose{Roll: 12.34, Pitch: -5.06, Yaw: -30}.Decidegrees()
	test.That(t, r, test.ShouldEqual, int16(123))
	test.That(t, p, test.ShouldEqual, int16(-51))
	test.That(t, y, test.ShouldEqual, int16(330))

	_, _, y = Pose{Yaw: 359.7}.Decidegrees()
	test.That(t, y, test.ShouldEqual, int16(0))
}

type fakeReader struct {
	sample imu.Sample
	err    error
}

func (f fakeReader) IMURead() (imu.Sample, error) { return f.sample, f.err }

func TestIMUSource(t *testing.T) {
	src := NewIMUSource(fakeReader{sample: imu.Sample{Ay: -100, Az: 100}})
	p, err := src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Roll, test.ShouldAlmostEqual, -45.0)

	cause := errors.New("bus")
	_, err = NewIMUSource(fakeReader{err: cause}).Next()
	test.That(t, errors.Cause(err), test.ShouldEqual, cause)
}

func TestMockSource(t *testing.T) {
	mock := clock.NewMock()
	src := NewMockSource(mock)

	p, err := src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Roll, test.ShouldEqual, 0.0)
	test.That(t, p.Pitch, test.ShouldEqual, 15.0)

	mock.Add(2 * time.Second)
	p, err = src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Yaw, test.ShouldAlmostEqual, 60.0)
}
