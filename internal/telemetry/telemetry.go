// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries periodic board snapshots off the bench harness.
package telemetry

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/relabs-tech/flight_board/internal/imu"
	"github.com/relabs-tech/flight_board/internal/orientation"
)

// Snapshot is the state of one board at the end of a control cycle.
type Snapshot struct {
	Board  string    `json:"board"`
	Time   time.Time `json:"time"`
	Micros uint32    `json:"micros"`
	Cycle  uint64    `json:"cycle"`

	IMU   imu.Sample       `json:"imu"`
	Scale imu.Scale        `json:"scale"`
	Pose  orientation.Pose `json:"pose"`

	RC     []uint16        `json:"rc"`
	Motors []uint16        `json:"motors"`
	LEDs   map[string]bool `json:"leds"`

	MSPFrames int    `json:"msp_frames"`
	Errors    uint64 `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// Decode parses a JSON snapshot.
func Decode(payload []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "telemetry: decode snapshot")
	}
	return s, nil
}

// Sink receives snapshots.
type Sink interface {
	Publish(s Snapshot) error
	Close() error
}

// DefaultTopicTemplate is expanded by Topic.
const DefaultTopicTemplate = "flightboard/<board>/telemetry"

// Topic replaces "<board>" in template with the board name.
func Topic(template, board string) string {
	if template == "" {
		template = DefaultTopicTemplate
	}
	return strings.ReplaceAll(template, "<board>", board)
}

// Latest keeps the most recent snapshot. It is a Sink and safe for
// concurrent use.
type Latest struct {
	mu   sync.RWMutex
	snap Snapshot
	ok   bool
}

func (l *Latest) Publish(s Snapshot) error {
	l.mu.Lock()
	l.snap, l.ok = s, true
	l.mu.Unlock()
	return nil
}

// Get returns the last snapshot and whether one was published yet.
func (l *Latest) Get() (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap, l.ok
}

func (l *Latest) Close() error { return nil }
