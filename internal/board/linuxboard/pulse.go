// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package linuxboard

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// frameGap separates RC frames: a high time longer than this is not a pulse.
const frameGap = 10 * time.Millisecond

// pulseDecoder turns the edges of one RC line into pulse widths.
type pulseDecoder struct {
	rise    time.Time
	rising  bool
	widthUS uint16
}

// edge feeds one edge and reports whether it completed a pulse.
func (d *pulseDecoder) edge(rising bool, at time.Time) bool {
	if rising {
		d.rise = at
		d.rising = true
		return false
	}
	if !d.rising {
		return false
	}
	d.rising = false
	width := at.Sub(d.rise)
	if width <= 0 || width > frameGap {
		return false
	}
	d.widthUS = uint16(width / time.Microsecond)
	return true
}

// pulseDuty converts a pulse width into a PWM duty cycle at hz.
func pulseDuty(us uint16, hz int) gpio.Duty {
	periodUS := int64(1_000_000 / hz)
	d := int64(gpio.DutyMax) * int64(us) / periodUS
	if d > int64(gpio.DutyMax) {
		d = int64(gpio.DutyMax)
	}
	return gpio.Duty(d)
}

// ledLevel maps a lit/unlit state to the pin level.
func ledLevel(on, activeLow bool) gpio.Level {
	return gpio.Level(on != activeLow)
}
