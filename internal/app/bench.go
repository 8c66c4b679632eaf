// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/config"
	"github.com/relabs-tech/flight_board/internal/imu"
	"github.com/relabs-tech/flight_board/internal/msp"
	"github.com/relabs-tech/flight_board/internal/orientation"
	"github.com/relabs-tech/flight_board/internal/telemetry"
)

// BenchConfig controls the bench control loop.
type BenchConfig struct {
	LoopIntervalMS      uint32
	HeartbeatCycles     int
	MotorTestTimeoutMS  uint32
	TelemetryIntervalMS uint32

	// Used when the board does not describe itself.
	Info board.Info
}

// BenchConfigFrom maps the file configuration onto the bench loop.
func BenchConfigFrom(cfg *config.Config) BenchConfig {
	return BenchConfig{
		LoopIntervalMS:      uint32(cfg.LoopInterval),
		HeartbeatCycles:     cfg.HeartbeatCycles,
		MotorTestTimeoutMS:  uint32(cfg.MotorTestTimeoutMS),
		TelemetryIntervalMS: uint32(cfg.TelemetryInterval),
		Info: board.Info{
			Name:       cfg.BoardName,
			Motors:     cfg.MotorCount,
			Channels:   cfg.RCChannels,
			MotorMinUS: cfg.MotorMinUS,
			MotorMaxUS: cfg.MotorMaxUS,
		},
	}
}

// Bench drives a board the way flight firmware would, without flight
// control: it samples the IMU and receiver, serves MSP on the serial link,
// holds motors at minimum unless an operator runs a motor test, and
// publishes telemetry.
type Bench struct {
	b      board.Board
	cfg    BenchConfig
	info   board.Info
	sink   telemetry.Sink
	logger *zap.SugaredLogger
	server *msp.Server

	scale     imu.Scale
	sample    imu.Sample
	imuOK     bool
	rc        []uint16
	motors    []uint16
	motorTest []uint16
	// Elapsed bench time in us, summed per cycle so it outlives the 32-bit
	// counter wrap.
	elapsedUS uint64
	testStart uint64

	rebootRequested bool

	cycle         uint64
	cycleStart    uint32
	cycleTimeUS   uint32
	errCount      uint64
	lastErr       error
	lastTelemetry uint64
	sentTelemetry bool
}

// NewBench prepares a bench loop. sink may be nil.
func NewBench(b board.Board, cfg BenchConfig, sink telemetry.Sink, logger *zap.SugaredLogger) *Bench {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.HeartbeatCycles <= 0 {
		cfg.HeartbeatCycles = 1
	}
	info := cfg.Info
	if d, ok := b.(board.Describer); ok {
		info = d.Describe()
	}
	bn := &Bench{
		b:      b,
		cfg:    cfg,
		info:   info,
		sink:   sink,
		logger: logger,
		rc:     make([]uint16, info.Channels),
		motors: make([]uint16, info.Motors),
	}
	bn.server = msp.NewServer(bn.dispatcher())
	return bn
}

// Start initializes the board and its IMU. Failure of either is fatal for
// the bench.
func (bn *Bench) Start() error {
	if err := bn.b.Init(); err != nil {
		return errors.Wrap(err, "bench: board init")
	}
	scale, err := bn.b.IMUInit()
	if err != nil {
		return errors.Wrap(err, "bench: IMU init")
	}
	bn.scale = scale
	bn.cycleStart = bn.b.Micros()
	bn.logger.Infow("bench: started", "board", bn.info.Name, "acc_1g", scale.Acc1G, "gyro_scale", scale.GyroScale)
	return nil
}

// Step runs one control cycle. The returned error combines every failure of
// the cycle; the red LED shows whether there was one.
func (bn *Bench) Step() error {
	var err error
	record := func(e error) {
		if e != nil {
			err = multierr.Append(err, e)
		}
	}

	// MSP_REBOOT takes effect one cycle after it was acknowledged.
	pending := bn.rebootRequested
	bn.rebootRequested = false
	record(bn.b.CheckReboot(pending))

	now := bn.b.Micros()
	bn.cycleTimeUS = board.MicrosSince(bn.cycleStart, now)
	bn.cycleStart = now
	bn.elapsedUS += uint64(bn.cycleTimeUS)

	if s, e := bn.b.IMURead(); e != nil {
		bn.imuOK = false
		record(e)
	} else {
		bn.sample, bn.imuOK = s, true
	}

	for ch := range bn.rc {
		v, e := bn.b.ReadPWM(uint8(ch))
		if e != nil {
			record(e)
			continue
		}
		bn.rc[ch] = v
	}

	if _, e := bn.server.Poll(bn.b); e != nil {
		bn.logger.Debugw("bench: MSP", "error", e)
		if board.KindOf(e) == board.KindTxOverflow {
			record(e)
		}
	}

	record(bn.writeMotors())

	if bn.cycle%uint64(bn.cfg.HeartbeatCycles) == 0 {
		record(bn.b.LEDToggle(board.Green))
	}

	if err != nil {
		bn.errCount++
		bn.lastErr = err
		record(bn.b.LEDOn(board.Red))
	} else {
		record(bn.b.LEDOff(board.Red))
	}

	if bn.sink != nil && bn.telemetryDue() {
		if e := bn.sink.Publish(bn.Snapshot()); e != nil {
			bn.logger.Warnw("bench: telemetry publish", "error", e)
		}
		bn.lastTelemetry, bn.sentTelemetry = bn.elapsedUS, true
	}

	bn.cycle++
	return err
}

func (bn *Bench) writeMotors() error {
	if bn.motorTest != nil && bn.elapsedUS-bn.testStart >= uint64(bn.cfg.MotorTestTimeoutMS)*1000 {
		bn.logger.Infow("bench: motor test expired")
		bn.motorTest = nil
	}
	var err error
	for i := range bn.motors {
		v := bn.info.MotorMinUS
		if bn.motorTest != nil {
			v = board.ClampMotor(bn.motorTest[i], bn.info.MotorMinUS, bn.info.MotorMaxUS)
		}
		if e := bn.b.WriteMotor(uint8(i), v); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		bn.motors[i] = v
	}
	return err
}

func (bn *Bench) telemetryDue() bool {
	if !bn.sentTelemetry {
		return true
	}
	return bn.elapsedUS-bn.lastTelemetry >= uint64(bn.cfg.TelemetryIntervalMS)*1000
}

// Run starts the board and steps it every LoopIntervalMS until ctx is done,
// then idles the motors and turns the LEDs off.
func (bn *Bench) Run(ctx context.Context) error {
	if err := bn.Start(); err != nil {
		return err
	}
	for ctx.Err() == nil {
		if err := bn.Step(); err != nil {
			bn.logger.Errorw("bench: cycle error", "cycle", bn.cycle, "error", err)
		}
		bn.b.DelayMilliseconds(bn.cfg.LoopIntervalMS)
	}
	bn.logger.Infow("bench: stopping", "cycles", bn.cycle, "errors", bn.errCount)

	var err error
	for i := range bn.motors {
		err = multierr.Append(err, bn.b.WriteMotor(uint8(i), bn.info.MotorMinUS))
	}
	for _, led := range board.LEDs {
		err = multierr.Append(err, bn.b.LEDOff(led))
	}
	return err
}

// Snapshot captures the bench state for telemetry.
func (bn *Bench) Snapshot() telemetry.Snapshot {
	s := telemetry.Snapshot{
		Board:     bn.info.Name,
		Time:      time.Now(),
		Micros:    bn.b.Micros(),
		Cycle:     bn.cycle,
		IMU:       bn.sample,
		Scale:     bn.scale,
		Pose:      orientation.PoseFromSample(bn.sample),
		RC:        append([]uint16(nil), bn.rc...),
		Motors:    append([]uint16(nil), bn.motors...),
		MSPFrames: bn.server.Frames,
		Errors:    bn.errCount,
	}
	if bn.lastErr != nil {
		s.LastError = bn.lastErr.Error()
	}
	if lr, ok := bn.b.(board.LEDReader); ok {
		s.LEDs = map[string]bool{}
		for _, led := range board.LEDs {
			if on, err := lr.LEDState(led); err == nil {
				s.LEDs[led.String()] = on
			}
		}
	}
	return s
}
