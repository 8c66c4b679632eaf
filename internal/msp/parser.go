// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

import "github.com/pkg/errors"

type parserState int

const (
	stateIdle parserState = iota
	stateM
	stateDirection
	stateSize
	stateCommand
	statePayload
	stateChecksum
)

// Parser decodes frames one byte at a time. Bytes outside a frame are
// skipped. The zero value is ready to use.
type Parser struct {
	state   parserState
	frame   Frame
	size    int
	payload []byte
}

// Feed consumes c. It returns a frame once the checksum byte of a valid frame
// arrives, or an error when a frame is rejected. Either way the parser is
// ready for the next frame.
func (p *Parser) Feed(c byte) (Frame, bool, error) {
	switch p.state {
	case stateIdle:
		if c == '$' {
			p.state = stateM
		}
	case stateM:
		if c == 'M' {
			p.state = stateDirection
		} else {
			p.state = stateIdle
		}
	case stateDirection:
		switch d := Direction(c); d {
		case ToBoard, FromBoard, ErrorReply:
			p.frame = Frame{Direction: d}
			p.state = stateSize
		default:
			p.state = stateIdle
			return Frame{}, false, errors.Wrapf(ErrDirection, "got %q", c)
		}
	case stateSize:
		p.size = int(c)
		p.payload = make([]byte, 0, p.size)
		p.state = stateCommand
	case stateCommand:
		p.frame.Command = Command(c)
		if p.size == 0 {
			p.state = stateChecksum
		} else {
			p.state = statePayload
		}
	case statePayload:
		p.payload = append(p.payload, c)
		if len(p.payload) == p.size {
			p.state = stateChecksum
		}
	case stateChecksum:
		p.state = stateIdle
		want := checksum(byte(p.size), p.frame.Command, p.payload)
		if c != want {
			return Frame{}, false, errors.Wrapf(ErrChecksum, "%s: got 0x%02x, want 0x%02x", p.frame.Command, c, want)
		}
		f := p.frame
		f.Payload = p.payload
		p.payload = nil
		return f, true, nil
	}
	return Frame{}, false, nil
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state = stateIdle
	p.payload = nil
}

// InFrame reports whether a frame is partially received.
func (p *Parser) InFrame() bool { return p.state != stateIdle }
