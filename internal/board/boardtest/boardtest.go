// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package boardtest is a conformance suite any board.Board implementation can
// run from its own tests.
package boardtest

import (
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/relabs-tech/flight_board/internal/board"
)

// Suite describes how to build boards for the conformance checks.
type Suite struct {
	// New returns a fresh, uninitialized board. Required.
	New func(t *testing.T) board.Board

	// NewRebootable returns a fresh, uninitialized board whose restart action
	// sends on restarted and then calls runtime.Goexit, standing in for the
	// device going away. Optional; the reboot check is skipped without it.
	NewRebootable func(t *testing.T, restarted chan<- struct{}) board.Board

	// Inject delivers bytes to the board's serial receiver and returns once
	// they are readable. Optional.
	Inject func(b board.Board, p []byte)

	// NoIMU marks boards built without an inertial sensor; IMUInit must then
	// fail with KindSensorUnavailable.
	NoIMU bool
}

// Goexit is a restart action for NewRebootable implementations.
func Goexit(restarted chan<- struct{}) func() {
	return func() {
		restarted <- struct{}{}
		runtime.Goexit()
	}
}

// Run executes every check as a subtest.
func Run(t *testing.T, s Suite) {
	t.Helper()
	t.Run("NotInitialized", func(t *testing.T) { checkNotInitialized(t, s) })
	t.Run("InitIdempotent", func(t *testing.T) { checkInitIdempotent(t, s) })
	t.Run("MicrosMonotonic", func(t *testing.T) { checkMicros(t, s) })
	t.Run("Delay", func(t *testing.T) { checkDelay(t, s) })
	t.Run("IMU", func(t *testing.T) { checkIMU(t, s) })
	t.Run("LEDToggle", func(t *testing.T) { checkLEDs(t, s) })
	t.Run("Serial", func(t *testing.T) { checkSerial(t, s) })
	t.Run("Motors", func(t *testing.T) { checkMotors(t, s) })
	t.Run("RC", func(t *testing.T) { checkRC(t, s) })
	t.Run("Reboot", func(t *testing.T) { checkReboot(t, s) })
}

func initialized(t *testing.T, s Suite) board.Board {
	t.Helper()
	b := s.New(t)
	test.That(t, b.Init(), test.ShouldBeNil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func info(b board.Board) (board.Info, bool) {
	d, ok := b.(board.Describer)
	if !ok {
		return board.Info{}, false
	}
	return d.Describe(), true
}

func checkNotInitialized(t *testing.T, s Suite) {
	b := s.New(t)
	defer b.Close()

	test.That(t, b.Micros(), test.ShouldEqual, uint32(0))
	_, err := b.IMUInit()
	test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)
	_, err = b.IMURead()
	test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)
	test.That(t, errors.Is(b.LEDOn(board.Green), board.KindNotInitialized), test.ShouldBeTrue)
	test.That(t, errors.Is(b.WriteMotor(0, 1500), board.KindNotInitialized), test.ShouldBeTrue)
	_, err = b.ReadPWM(0)
	test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)
	test.That(t, b.SerialAvailableBytes(), test.ShouldEqual, 0)
	_, err = b.SerialReadByte()
	test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)
	test.That(t, errors.Is(b.SerialWriteByte('x'), board.KindNotInitialized), test.ShouldBeTrue)
	test.That(t, errors.Is(b.CheckReboot(false), board.KindNotInitialized), test.ShouldBeTrue)
}

func checkInitIdempotent(t *testing.T, s Suite) {
	b := initialized(t, s)
	test.That(t, b.Init(), test.ShouldBeNil)
	test.That(t, b.CheckReboot(false), test.ShouldBeNil)
}

func checkMicros(t *testing.T, s Suite) {
	b := initialized(t, s)
	prev := b.Micros()
	for i := 0; i < 1000; i++ {
		now := b.Micros()
		test.That(t, now, test.ShouldBeGreaterThanOrEqualTo, prev)
		prev = now
	}
}

func checkDelay(t *testing.T, s Suite) {
	b := initialized(t, s)
	start := time.Now()
	before := b.Micros()
	b.DelayMilliseconds(5)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 5*time.Millisecond)
	test.That(t, board.MicrosSince(before, b.Micros()), test.ShouldBeGreaterThanOrEqualTo, uint32(5000))
}

func checkIMU(t *testing.T, s Suite) {
	b := initialized(t, s)
	_, err := b.IMURead()
	test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)

	if s.NoIMU {
		_, err = b.IMUInit()
		test.That(t, errors.Is(err, board.KindSensorUnavailable), test.ShouldBeTrue)
		_, err = b.IMURead()
		test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)
		return
	}

	scale, err := b.IMUInit()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scale.Acc1G, test.ShouldBeGreaterThan, uint16(0))
	test.That(t, scale.GyroScale, test.ShouldBeGreaterThan, float32(0))

	for i := 0; i < 10; i++ {
		sample, err := b.IMURead()
		test.That(t, err, test.ShouldBeNil)
		// a board at rest senses gravity, so the accel triple cannot be all zero
		acc := sample.Accel()
		test.That(t, acc[0] != 0 || acc[1] != 0 || acc[2] != 0, test.ShouldBeTrue)
	}
}

func checkLEDs(t *testing.T, s Suite) {
	b := initialized(t, s)
	reader, canRead := b.(board.LEDReader)

	for _, led := range board.LEDs {
		test.That(t, b.LEDOff(led), test.ShouldBeNil)
		var before bool
		if canRead {
			var err error
			before, err = reader.LEDState(led)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, before, test.ShouldBeFalse)
		}

		test.That(t, b.LEDToggle(led), test.ShouldBeNil)
		if canRead {
			on, err := reader.LEDState(led)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, on, test.ShouldNotEqual, before)
		}
		test.That(t, b.LEDToggle(led), test.ShouldBeNil)
		if canRead {
			on, err := reader.LEDState(led)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, on, test.ShouldEqual, before)
		}

		test.That(t, b.LEDOn(led), test.ShouldBeNil)
		if canRead {
			on, _ := reader.LEDState(led)
			test.That(t, on, test.ShouldBeTrue)
		}
	}

	// the indicators are independent
	if canRead {
		test.That(t, b.LEDOff(board.Red), test.ShouldBeNil)
		green, _ := reader.LEDState(board.Green)
		test.That(t, green, test.ShouldBeTrue)
	}

	test.That(t, errors.Is(b.LEDOn(board.LED(7)), board.KindIndexOutOfRange), test.ShouldBeTrue)
}

func checkSerial(t *testing.T, s Suite) {
	b := initialized(t, s)

	if b.SerialAvailableBytes() == 0 {
		_, err := b.SerialReadByte()
		test.That(t, errors.Is(err, board.KindNoData), test.ShouldBeTrue)
	}
	test.That(t, b.SerialWriteByte(0x24), test.ShouldBeNil)

	if s.Inject == nil {
		return
	}
	payload := []byte("$M<\x00\x64\x64")
	s.Inject(b, payload)
	test.That(t, b.SerialAvailableBytes(), test.ShouldEqual, len(payload))

	got := make([]byte, 0, len(payload))
	for b.SerialAvailableBytes() > 0 {
		c, err := b.SerialReadByte()
		test.That(t, err, test.ShouldBeNil)
		got = append(got, c)
	}
	test.That(t, got, test.ShouldResemble, payload)

	test.That(t, b.SerialAvailableBytes(), test.ShouldEqual, 0)
	_, err := b.SerialReadByte()
	test.That(t, errors.Is(err, board.KindNoData), test.ShouldBeTrue)
}

func checkMotors(t *testing.T, s Suite) {
	b := initialized(t, s)
	inf, ok := info(b)
	if !ok {
		t.Skip("board does not describe its motors")
	}

	reader, canRead := b.(board.MotorReader)
	for i := 0; i < inf.Motors; i++ {
		idx := uint8(i)
		if canRead {
			v, err := reader.Motor(idx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, v, test.ShouldEqual, inf.MotorMinUS)
		}

		for _, v := range []uint16{0, inf.MotorMinUS, 1500, inf.MotorMaxUS, 0xFFFF} {
			test.That(t, b.WriteMotor(idx, v), test.ShouldBeNil)
			if canRead {
				got, err := reader.Motor(idx)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, got, test.ShouldEqual, board.ClampMotor(v, inf.MotorMinUS, inf.MotorMaxUS))
			}
		}
	}

	err := b.WriteMotor(uint8(inf.Motors), 1500)
	test.That(t, errors.Is(err, board.KindIndexOutOfRange), test.ShouldBeTrue)
}

func checkRC(t *testing.T, s Suite) {
	b := initialized(t, s)
	inf, ok := info(b)
	if !ok {
		t.Skip("board does not describe its channels")
	}
	for i := 0; i < inf.Channels; i++ {
		_, err := b.ReadPWM(uint8(i))
		test.That(t, err, test.ShouldBeNil)
	}
	_, err := b.ReadPWM(uint8(inf.Channels))
	test.That(t, errors.Is(err, board.KindIndexOutOfRange), test.ShouldBeTrue)
}

func checkReboot(t *testing.T, s Suite) {
	if s.NewRebootable == nil {
		t.Skip("no rebootable factory")
	}

	for _, viaCheck := range []bool{false, true} {
		restarted := make(chan struct{}, 1)
		b := s.NewRebootable(t, restarted)
		test.That(t, b.Init(), test.ShouldBeNil)

		returned := make(chan error, 1)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if viaCheck {
				returned <- b.CheckReboot(true)
			} else {
				returned <- b.Reboot()
			}
		}()

		select {
		case <-restarted:
		case <-time.After(5 * time.Second):
			t.Fatal("restart action never ran")
		}
		<-done

		select {
		case err := <-returned:
			t.Fatalf("reboot returned to the caller: %v", err)
		default:
		}
		_ = b.Close()
	}
}
