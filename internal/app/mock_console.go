// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/flight_board/internal/orientation"
)

// RunMockConsole prints a synthetic attitude every interval until ctx is
// done. It exercises the console output without a broker or a board.
func RunMockConsole(ctx context.Context, clk clock.Clock, w io.Writer, interval time.Duration) error {
	if clk == nil {
		clk = clock.New()
	}
	src := orientation.NewMockSource(clk)
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pose, err := src.Next()
		if err != nil {
			return err
		}

		fmt.Fprintf(w,
			"ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n",
			pose.Roll,
			pose.Pitch,
			pose.Yaw,
		)
	}
}
