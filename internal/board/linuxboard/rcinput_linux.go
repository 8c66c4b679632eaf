// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build linux

package linuxboard

import (
	"context"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

func openRCInput(chipPath string, offsets []int) (*rcInput, error) {
	chip, err := gpio.OpenChip(chipPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", chipPath)
	}
	defer chip.Close()

	lines := make([]*gpio.LineWithEvent, 0, len(offsets))
	closeLines := func() error {
		var err error
		for _, l := range lines {
			err = multierr.Append(err, l.Close())
		}
		return err
	}
	for _, off := range offsets {
		line, err := chip.OpenLineWithEvents(uint32(off), gpio.Input, gpio.BothEdges, "flightboard-rc")
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "open RC line %d", off), closeLines())
		}
		lines = append(lines, line)
	}

	r := newRCInput(len(offsets))
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.closer = closeLines
	for ch, line := range lines {
		edges := make(chan edgeEvent, 16)
		r.wg.Add(2)
		go func(line *gpio.LineWithEvent) {
			defer r.wg.Done()
			defer close(edges)
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-line.Events():
					select {
					case edges <- edgeEvent{rising: ev.RisingEdge, at: ev.Time}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(line)
		go func(ch int) {
			defer r.wg.Done()
			r.monitor(ctx, ch, edges)
		}(ch)
	}
	return r, nil
}
