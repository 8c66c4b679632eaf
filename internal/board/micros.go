// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import "time"

// MicrosSince returns now-prev on the wrapping 32-bit microsecond counter.
// The result is correct as long as less than one full wrap has elapsed.
func MicrosSince(prev, now uint32) uint32 {
	return now - prev
}

// MicrosFromDuration truncates an elapsed duration onto the wrapping counter.
func MicrosFromDuration(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(uint64(d / time.Microsecond))
}
