// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package linuxboard

import "github.com/relabs-tech/flight_board/internal/board"

func restartSystem() error {
	return &board.Error{Kind: board.KindUnsupported, Op: "Reboot", Msg: "not a linux host"}
}
