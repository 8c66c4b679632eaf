// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package linuxboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// rcInput holds the latest pulse width of every RC channel. Monitors write
// the widths from their own goroutines.
type rcInput struct {
	widths []atomic.Uint32
	closer func() error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRCInput(channels int) *rcInput {
	return &rcInput{widths: make([]atomic.Uint32, channels)}
}

// monitor decodes one channel's edges until ctx is done.
func (r *rcInput) monitor(ctx context.Context, ch int, edges <-chan edgeEvent) {
	var d pulseDecoder
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-edges:
			if !ok {
				return
			}
			if d.edge(e.rising, e.at) {
				r.widths[ch].Store(uint32(d.widthUS))
			}
		}
	}
}

func (r *rcInput) width(ch int) uint16 {
	return uint16(r.widths[ch].Load())
}

func (r *rcInput) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	var err error
	if r.closer != nil {
		err = r.closer()
	}
	r.wg.Wait()
	return err
}

type edgeEvent struct {
	rising bool
	at     time.Time
}
