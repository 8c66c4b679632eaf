// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calib runs a stationary self-test of a board's IMU: it collects
// still samples, estimates gyro bias and accelerometer noise, and checks the
// measured gravity against the sensor's 1 g scale.
package calib

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/imu"
)

// Vec3 is one value per sensor axis.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func (v Vec3) mean() float64 { return (v.X + v.Y + v.Z) / 3 }

// AxisStats are per-axis statistics in raw counts.
type AxisStats struct {
	Mean   Vec3 `json:"mean"`
	StdDev Vec3 `json:"stddev"`
}

// Report is the result of a self-test run.
type Report struct {
	Board       string    `json:"board"`
	Timestamp   time.Time `json:"timestamp"`
	Samples     int       `json:"samples"`
	DurationSec float64   `json:"duration_sec"`
	Scale       imu.Scale `json:"scale"`

	Accel AxisStats `json:"accel"`
	Gyro  AxisStats `json:"gyro"`

	// GyroBias is the mean rate while still, in rad/s.
	GyroBias Vec3 `json:"gyro_bias"`
	// GravityG is the magnitude of the mean acceleration in g; 1 when the
	// accelerometer scale is right.
	GravityG float64 `json:"gravity_g"`

	GyroConfidence  float64 `json:"gyro_confidence"`
	AccelConfidence float64 `json:"accel_confidence"`

	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// Options tune a self-test run.
type Options struct {
	Samples    int
	IntervalMS uint32
	// BlinkEvery toggles both LEDs every this many samples; 0 disables it.
	BlinkEvery int

	MaxGravityError float64 // fraction of 1 g
	MaxGyroBias     float64 // rad/s
}

// DefaultOptions samples for about two seconds.
func DefaultOptions() Options {
	return Options{
		Samples:         200,
		IntervalMS:      10,
		BlinkEvery:      10,
		MaxGravityError: 0.1,
		MaxGyroBias:     0.1,
	}
}

// Run initializes b and its IMU, collects opts.Samples readings and returns
// the report. When it finishes the green LED is lit on pass, the red one on
// failure.
func Run(b board.Board, opts Options, logger *zap.SugaredLogger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Samples < 2 {
		return Report{}, errors.Errorf("self-test needs at least 2 samples, got %d", opts.Samples)
	}
	if err := b.Init(); err != nil {
		return Report{}, errors.Wrap(err, "self-test: board init")
	}
	scale, err := b.IMUInit()
	if err != nil {
		return Report{}, errors.Wrap(err, "self-test: IMU init")
	}

	rep := Report{Timestamp: time.Now(), Scale: scale}
	if d, ok := b.(board.Describer); ok {
		rep.Board = d.Describe().Name
	}
	logger.Infow("calib: collecting still samples", "samples", opts.Samples, "interval_ms", opts.IntervalMS)

	var acc, gyro [3][]float64
	start := b.Micros()
	for i := 0; i < opts.Samples; i++ {
		s, err := b.IMURead()
		if err != nil {
			return Report{}, errors.Wrapf(err, "self-test: sample %d", i)
		}
		for axis, v := range s.Accel() {
			acc[axis] = append(acc[axis], float64(v))
		}
		for axis, v := range s.Gyro() {
			gyro[axis] = append(gyro[axis], float64(v))
		}
		if opts.BlinkEvery > 0 && i%opts.BlinkEvery == 0 {
			blink(b, logger)
		}
		b.DelayMilliseconds(opts.IntervalMS)
	}
	rep.Samples = opts.Samples
	rep.DurationSec = float64(board.MicrosSince(start, b.Micros())) / 1e6

	rep.Accel = axisStats(acc)
	rep.Gyro = axisStats(gyro)
	k := float64(scale.GyroScale)
	rep.GyroBias = Vec3{X: rep.Gyro.Mean.X * k, Y: rep.Gyro.Mean.Y * k, Z: rep.Gyro.Mean.Z * k}
	if scale.Acc1G > 0 {
		rep.GravityG = rep.Accel.Mean.Norm() / float64(scale.Acc1G)
	}

	gyroStd := rep.Gyro.StdDev.mean() * k
	rep.GyroConfidence = 100.0 / (1.0 + gyroStd*1000.0)
	if scale.Acc1G > 0 {
		accelStd := rep.Accel.StdDev.mean() / float64(scale.Acc1G)
		rep.AccelConfidence = 100.0 / (1.0 + accelStd*100.0)
	}

	if e := math.Abs(rep.GravityG - 1); e > opts.MaxGravityError {
		rep.Failures = append(rep.Failures, "gravity magnitude off by more than tolerance")
	}
	if rep.GyroBias.Norm() > opts.MaxGyroBias {
		rep.Failures = append(rep.Failures, "gyro bias above tolerance")
	}
	rep.Passed = len(rep.Failures) == 0

	showResult(b, rep.Passed, logger)
	logger.Infow("calib: self-test complete",
		"passed", rep.Passed, "gravity_g", rep.GravityG,
		"gyro_confidence", rep.GyroConfidence, "accel_confidence", rep.AccelConfidence)
	return rep, nil
}

func axisStats(data [3][]float64) AxisStats {
	var out AxisStats
	mean := [3]*float64{&out.Mean.X, &out.Mean.Y, &out.Mean.Z}
	std := [3]*float64{&out.StdDev.X, &out.StdDev.Y, &out.StdDev.Z}
	for axis := range data {
		*mean[axis], *std[axis] = stat.MeanStdDev(data[axis], nil)
	}
	return out
}

func blink(b board.Board, logger *zap.SugaredLogger) {
	for _, led := range board.LEDs {
		if err := b.LEDToggle(led); err != nil {
			logger.Debugw("calib: LED toggle", "led", led, "error", err)
		}
	}
}

func showResult(b board.Board, passed bool, logger *zap.SugaredLogger) {
	on, off := board.Green, board.Red
	if !passed {
		on, off = off, on
	}
	if err := b.LEDOff(off); err != nil {
		logger.Debugw("calib: LED off", "led", off, "error", err)
	}
	if err := b.LEDOn(on); err != nil {
		logger.Debugw("calib: LED on", "led", on, "error", err)
	}
}
