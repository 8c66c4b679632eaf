// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

import (
	"go.uber.org/multierr"
)

// Port is the byte-level serial interface of a board.
type Port interface {
	SerialAvailableBytes() int
	SerialReadByte() (byte, error)
	SerialWriteByte(c byte) error
}

// Server answers requests arriving on a Port.
type Server struct {
	parser     Parser
	dispatcher *Dispatcher

	// Counters since creation.
	Frames     int
	BadFrames  int
	ErrReplies int
}

func NewServer(d *Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Poll drains the bytes currently available on p, dispatches every complete
// request and writes the replies. Frames sent by the board itself are
// ignored. The returned error combines the decode, handler and write
// failures of this poll.
func (s *Server) Poll(p Port) (handled int, err error) {
	for n := p.SerialAvailableBytes(); n > 0; n-- {
		c, rerr := p.SerialReadByte()
		if rerr != nil {
			return handled, multierr.Append(err, rerr)
		}
		frame, ok, ferr := s.parser.Feed(c)
		if ferr != nil {
			s.BadFrames++
			err = multierr.Append(err, ferr)
			continue
		}
		if !ok || frame.Direction != ToBoard {
			continue
		}
		s.Frames++
		handled++
		reply, derr := s.dispatcher.Dispatch(frame)
		if derr != nil {
			s.ErrReplies++
			err = multierr.Append(err, derr)
		}
		for _, b := range reply {
			if werr := p.SerialWriteByte(b); werr != nil {
				return handled, multierr.Append(err, werr)
			}
		}
	}
	return handled, err
}
