// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package linuxboard

import "github.com/relabs-tech/flight_board/internal/board"

func openRCInput(chipPath string, offsets []int) (*rcInput, error) {
	return nil, board.NewError(board.KindUnsupported, "Init", "RC input needs linux gpio character devices")
}
