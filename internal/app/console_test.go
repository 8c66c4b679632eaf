// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"go.viam.com/test"

	"github.com/relabs-tech/flight_board/internal/imu"
	"github.com/relabs-tech/flight_board/internal/orientation"
	"github.com/relabs-tech/flight_board/internal/telemetry"
)

func TestFormatSnapshot(t *testing.T) {
	color.NoColor = true

	out := formatSnapshot(telemetry.Snapshot{
		Board:     "sim",
		Cycle:     3,
		Pose:      orientation.Pose{Roll: 1.5, Pitch: -2.25},
		IMU:       imu.Sample{Az: 4096},
		RC:        []uint16{1500, 1000},
		Motors:    []uint16{1000},
		MSPFrames: 4,
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	test.That(t, lines, test.ShouldHaveLength, 6)
	test.That(t, lines[0], test.ShouldEqual, "[BOARD] sim cycle=3 micros=0")
	test.That(t, lines[1], test.ShouldContainSubstring, "ROLL=  1.50  PITCH= -2.25")
	test.That(t, lines[2], test.ShouldContainSubstring, "az=  4096")
	test.That(t, lines[3], test.ShouldEndWith, "[1500 1000]")
	test.That(t, lines[5], test.ShouldEndWith, "ok msp=4")

	out = formatSnapshot(telemetry.Snapshot{Errors: 2, LastError: "IMURead: bus_error"})
	test.That(t, out, test.ShouldContainSubstring, `errors=2 last="IMURead: bus_error"`)
}

func TestRunMockConsole(t *testing.T) {
	mock := clock.NewMock()
	var buf syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunMockConsole(ctx, mock, &buf, 100*time.Millisecond) }()

	deadline := time.Now().Add(5 * time.Second)
	for strings.Count(buf.String(), "\n") < 3 && time.Now().Before(deadline) {
		mock.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldStartWith, "ROLL=")
}

type syncBuffer struct {
	mu sync.Mutex
	bb bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bb.String()
}
