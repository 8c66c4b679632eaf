// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/board/sim"
	"github.com/relabs-tech/flight_board/internal/config"
	"github.com/relabs-tech/flight_board/internal/msp"
	"github.com/relabs-tech/flight_board/internal/telemetry"
)

type recordingSink struct {
	snaps []telemetry.Snapshot
	err   error
}

func (s *recordingSink) Publish(snap telemetry.Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

type benchFixture struct {
	clk   *clock.Mock
	board *sim.Board
	sink  *recordingSink
	bench *Bench
}

func newBenchFixture(t *testing.T) *benchFixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	mock := clock.NewMock()
	cfg := sim.DefaultConfig()
	cfg.Clock = mock
	cfg.Restart = func() {}
	b := sim.New(cfg, logger)
	t.Cleanup(func() { _ = b.Close() })

	sink := &recordingSink{}
	bn := NewBench(b, BenchConfig{
		LoopIntervalMS:      10,
		HeartbeatCycles:     2,
		MotorTestTimeoutMS:  500,
		TelemetryIntervalMS: 100,
	}, sink, logger)
	test.That(t, bn.Start(), test.ShouldBeNil)
	return &benchFixture{clk: mock, board: b, sink: sink, bench: bn}
}

func (f *benchFixture) request(t *testing.T, cmd msp.Command, payload []byte) {
	t.Helper()
	req, err := msp.Request(cmd, payload)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.board.Inject(req), test.ShouldEqual, len(req))
}

func (f *benchFixture) replies(t *testing.T) []msp.Frame {
	t.Helper()
	var p msp.Parser
	var frames []msp.Frame
	for _, c := range f.board.Transmitted() {
		frame, ok, err := p.Feed(c)
		test.That(t, err, test.ShouldBeNil)
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

func (f *benchFixture) motor(t *testing.T, i uint8) uint16 {
	t.Helper()
	v, err := f.board.Motor(i)
	test.That(t, err, test.ShouldBeNil)
	return v
}

func (f *benchFixture) led(t *testing.T, led board.LED) bool {
	t.Helper()
	on, err := f.board.LEDState(led)
	test.That(t, err, test.ShouldBeNil)
	return on
}

func TestBenchStepIdle(t *testing.T) {
	f := newBenchFixture(t)

	test.That(t, f.bench.Step(), test.ShouldBeNil)
	for i := uint8(0); i < 4; i++ {
		test.That(t, f.motor(t, i), test.ShouldEqual, uint16(1000))
	}
	test.That(t, f.led(t, board.Green), test.ShouldBeTrue)
	test.That(t, f.led(t, board.Red), test.ShouldBeFalse)

	// heartbeat every second cycle
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.led(t, board.Green), test.ShouldBeTrue)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.led(t, board.Green), test.ShouldBeFalse)

	test.That(t, f.sink.snaps, test.ShouldHaveLength, 1)
	snap := f.sink.snaps[0]
	test.That(t, snap.Board, test.ShouldEqual, "sim")
	test.That(t, snap.IMU.Az, test.ShouldEqual, int16(4096))
	test.That(t, snap.RC, test.ShouldResemble, []uint16{1500, 1500, 1000, 1500, 1500, 1500, 1500, 1500})
	test.That(t, snap.Motors, test.ShouldResemble, []uint16{1000, 1000, 1000, 1000})
	test.That(t, snap.LEDs["green"], test.ShouldBeTrue)
}

func TestBenchTelemetryInterval(t *testing.T) {
	f := newBenchFixture(t)

	for i := 0; i < 5; i++ {
		test.That(t, f.bench.Step(), test.ShouldBeNil)
		f.clk.Add(10 * time.Millisecond)
	}
	test.That(t, f.sink.snaps, test.ShouldHaveLength, 1)

	f.clk.Add(50 * time.Millisecond)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.sink.snaps, test.ShouldHaveLength, 2)
	test.That(t, f.sink.snaps[1].Cycle, test.ShouldEqual, uint64(5))

	// a failing sink is logged, not a cycle error
	f.sink.err = errors.New("broker down")
	f.clk.Add(100 * time.Millisecond)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.sink.snaps, test.ShouldHaveLength, 3)
}

func TestBenchMSPQueries(t *testing.T) {
	f := newBenchFixture(t)
	test.That(t, f.board.SetChannel(0, 1234), test.ShouldBeNil)
	f.board.SetAttitude(0, 0)
	test.That(t, f.bench.Step(), test.ShouldBeNil)

	f.request(t, msp.CmdIdent, nil)
	f.request(t, msp.CmdStatus, nil)
	f.request(t, msp.CmdRawIMU, nil)
	f.request(t, msp.CmdRC, nil)
	f.request(t, msp.CmdAttitude, nil)
	f.request(t, msp.CmdMotor, nil)
	f.request(t, msp.Command(1), nil)
	test.That(t, f.bench.Step(), test.ShouldBeNil)

	frames := f.replies(t)
	test.That(t, frames, test.ShouldHaveLength, 7)

	var ident msp.IdentData
	test.That(t, msp.Unmarshal(frames[0].Payload, &ident), test.ShouldBeNil)
	test.That(t, ident.Multitype, test.ShouldEqual, uint8(msp.MultitypeQuadX))

	var status msp.StatusData
	test.That(t, msp.Unmarshal(frames[1].Payload, &status), test.ShouldBeNil)
	test.That(t, status.Sensors, test.ShouldEqual, uint16(msp.SensorAcc|msp.SensorGyro))

	var raw msp.RawIMUData
	test.That(t, msp.Unmarshal(frames[2].Payload, &raw), test.ShouldBeNil)
	test.That(t, raw.AccZ, test.ShouldEqual, int16(4096))

	rc, err := msp.Uint16s(frames[3].Payload)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rc, test.ShouldHaveLength, 8)
	test.That(t, rc[0], test.ShouldEqual, uint16(1234))

	var att msp.AttitudeData
	test.That(t, msp.Unmarshal(frames[4].Payload, &att), test.ShouldBeNil)
	test.That(t, att, test.ShouldResemble, msp.AttitudeData{})

	motors, err := msp.Uint16s(frames[5].Payload)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, motors, test.ShouldResemble, []uint16{1000, 1000, 1000, 1000, 0, 0, 0, 0})

	test.That(t, frames[6].Direction, test.ShouldEqual, msp.ErrorReply)
	test.That(t, f.led(t, board.Red), test.ShouldBeFalse)
}

func TestBenchMotorTest(t *testing.T) {
	f := newBenchFixture(t)
	test.That(t, f.bench.Step(), test.ShouldBeNil)

	f.request(t, msp.CmdSetMotor, msp.PutUint16s([]uint16{1200, 2500, 0, 1500, 1900}))
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.replies(t)[0].Direction, test.ShouldEqual, msp.FromBoard)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1200))
	test.That(t, f.motor(t, 1), test.ShouldEqual, uint16(2000))
	test.That(t, f.motor(t, 2), test.ShouldEqual, uint16(1000))
	test.That(t, f.motor(t, 3), test.ShouldEqual, uint16(1500))

	f.clk.Add(499 * time.Millisecond)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1200))

	f.clk.Add(time.Millisecond)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1000))
	test.That(t, f.motor(t, 1), test.ShouldEqual, uint16(1000))

	// too many slots is rejected
	f.request(t, msp.CmdSetMotor, msp.PutUint16s(make([]uint16, 9)))
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.replies(t)[0].Direction, test.ShouldEqual, msp.ErrorReply)
}

func TestBenchMotorTestLongTimeout(t *testing.T) {
	f := newBenchFixture(t)
	f.bench.cfg.MotorTestTimeoutMS = config.MaxIntervalMS
	test.That(t, f.bench.Step(), test.ShouldBeNil)

	f.request(t, msp.CmdSetMotor, msp.PutUint16s([]uint16{1500, 1500, 1500, 1500}))
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1500))

	f.clk.Add(706 * time.Second)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1500))

	// just short of the 32-bit microsecond wrap
	f.clk.Add(3588 * time.Second)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1500))

	f.clk.Add(time.Second)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.motor(t, 0), test.ShouldEqual, uint16(1000))
}

func TestBenchReboot(t *testing.T) {
	f := newBenchFixture(t)

	f.request(t, msp.CmdReboot, nil)
	test.That(t, f.bench.Step(), test.ShouldBeNil)
	frames := f.replies(t)
	test.That(t, frames, test.ShouldHaveLength, 1)
	test.That(t, frames[0].Command, test.ShouldEqual, msp.CmdReboot)
	test.That(t, f.board.RebootCount(), test.ShouldEqual, 0)

	// the sim restart hook returns, so the reboot surfaces as a cycle error
	err := f.bench.Step()
	test.That(t, errors.Is(err, board.KindRebootFailed), test.ShouldBeTrue)
	test.That(t, f.board.RebootCount(), test.ShouldEqual, 1)
	test.That(t, f.led(t, board.Red), test.ShouldBeTrue)

	test.That(t, f.bench.Step(), test.ShouldBeNil)
	test.That(t, f.board.RebootCount(), test.ShouldEqual, 1)
	test.That(t, f.led(t, board.Red), test.ShouldBeFalse)
}

func TestBenchIMUFailure(t *testing.T) {
	f := newBenchFixture(t)
	f.board.SetIMUPresent(false)

	err := f.bench.Step()
	test.That(t, board.KindOf(err), test.ShouldEqual, board.KindSensorUnavailable)
	test.That(t, f.led(t, board.Red), test.ShouldBeTrue)

	snap := f.bench.Snapshot()
	test.That(t, snap.Errors, test.ShouldEqual, uint64(1))
	test.That(t, snap.LastError, test.ShouldContainSubstring, "sensor_unavailable")

	f.request(t, msp.CmdAttitude, nil)
	f.bench.Step()
	test.That(t, f.replies(t)[0].Direction, test.ShouldEqual, msp.ErrorReply)
}

func TestBenchStartFailure(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Restart = func() {}
	b := sim.New(cfg, zaptest.NewLogger(t).Sugar())
	test.That(t, b.Init(), test.ShouldBeNil)
	b.SetIMUPresent(false)

	bn := NewBench(b, BenchConfig{}, nil, nil)
	err := bn.Start()
	test.That(t, board.KindOf(err), test.ShouldEqual, board.KindSensorUnavailable)
	test.That(t, bn.Run(context.Background()), test.ShouldNotBeNil)
}

func TestBenchRun(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Restart = func() {}
	b := sim.New(cfg, zaptest.NewLogger(t).Sugar())
	sink := &telemetry.Latest{}
	bn := NewBench(b, BenchConfig{LoopIntervalMS: 1, HeartbeatCycles: 1}, sink, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	test.That(t, bn.Run(ctx), test.ShouldBeNil)

	snap, ok := sink.Get()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, snap.Cycle, test.ShouldBeGreaterThan, uint64(0))
	on, err := b.LEDState(board.Green)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeFalse)
}

func TestBenchConfigFrom(t *testing.T) {
	bc := BenchConfigFrom(config.Default())
	test.That(t, bc.LoopIntervalMS, test.ShouldEqual, uint32(10))
	test.That(t, bc.Info.Motors, test.ShouldEqual, 4)
	test.That(t, bc.Info.MotorMaxUS, test.ShouldEqual, uint16(2000))
}
