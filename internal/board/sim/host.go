// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import "github.com/relabs-tech/flight_board/internal/board"

// Host-side controls. These model the world around the board and are not
// part of the board contract.

// SetAttitude sets the roll and pitch, in radians, the accelerometer senses.
func (b *Board) SetAttitude(roll, pitch float64) {
	b.mu.Lock()
	b.roll, b.pitch = roll, pitch
	b.mu.Unlock()
}

// SetRates sets the body rates, in rad/s, the gyroscope senses.
func (b *Board) SetRates(x, y, z float64) {
	b.mu.Lock()
	b.rates = [3]float64{x, y, z}
	b.mu.Unlock()
}

// SetIMUPresent simulates plugging or unplugging the inertial sensor.
func (b *Board) SetIMUPresent(present bool) {
	b.mu.Lock()
	b.imuPresent = present
	b.mu.Unlock()
}

// SetChannel sets the pulse width the receiver reports on channel.
func (b *Board) SetChannel(channel uint8, us uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(channel) >= len(b.channels) {
		return board.ErrIndex("SetChannel", int(channel), len(b.channels))
	}
	b.channels[channel] = us
	return nil
}

// Inject delivers bytes to the board's serial receiver and returns how many
// fit in the receive queue.
func (b *Board) Inject(p []byte) int {
	return b.rx.Push(p)
}

// Transmitted drains and returns everything the board has sent.
func (b *Board) Transmitted() []byte {
	return b.tx.Drain()
}

// RebootCount returns how many times Reboot has triggered the restart hook.
func (b *Board) RebootCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reboots
}
