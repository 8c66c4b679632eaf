// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialbuf provides the bounded byte queues boards use between the
// control loop and a serial port.
package serialbuf

import "sync"

// DefaultSize is used when a FIFO is created with size <= 0.
const DefaultSize = 1024

// FIFO is a bounded, goroutine-safe byte queue. Readable fires (non-blocking,
// coalesced) whenever data is pushed.
type FIFO struct {
	mu    sync.Mutex
	buf   []byte
	head  int
	n     int
	ready chan struct{}
}

// New creates a FIFO holding at most size bytes.
func New(size int) *FIFO {
	if size <= 0 {
		size = DefaultSize
	}
	return &FIFO{buf: make([]byte, size), ready: make(chan struct{}, 1)}
}

// Cap returns the capacity in bytes.
func (f *FIFO) Cap() int { return len(f.buf) }

// Len returns the number of queued bytes.
func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// PushByte appends c. It returns false when the FIFO is full.
func (f *FIFO) PushByte(c byte) bool {
	f.mu.Lock()
	if f.n == len(f.buf) {
		f.mu.Unlock()
		return false
	}
	f.buf[(f.head+f.n)%len(f.buf)] = c
	f.n++
	f.mu.Unlock()
	f.signal()
	return true
}

// Push appends as much of p as fits and returns the count written.
func (f *FIFO) Push(p []byte) int {
	f.mu.Lock()
	w := 0
	for _, c := range p {
		if f.n == len(f.buf) {
			break
		}
		f.buf[(f.head+f.n)%len(f.buf)] = c
		f.n++
		w++
	}
	f.mu.Unlock()
	if w > 0 {
		f.signal()
	}
	return w
}

// PopByte removes and returns the oldest byte.
func (f *FIFO) PopByte() (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return 0, false
	}
	c := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.n--
	return c, true
}

// Pop moves up to len(p) bytes into p.
func (f *FIFO) Pop(p []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := 0
	for r < len(p) && f.n > 0 {
		p[r] = f.buf[f.head]
		f.head = (f.head + 1) % len(f.buf)
		f.n--
		r++
	}
	return r
}

// Drain removes and returns everything queued.
func (f *FIFO) Drain() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, f.n)
	for i := range out {
		out[i] = f.buf[(f.head+i)%len(f.buf)]
	}
	f.head = 0
	f.n = 0
	return out
}

// Reset discards all queued bytes.
func (f *FIFO) Reset() {
	f.mu.Lock()
	f.head = 0
	f.n = 0
	f.mu.Unlock()
}

// Readable returns a channel that receives after data was pushed.
func (f *FIFO) Readable() <-chan struct{} { return f.ready }

func (f *FIFO) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}
