// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func feedAll(t *testing.T, p *Parser, data []byte) ([]Frame, []error) {
	t.Helper()
	var frames []Frame
	var errs []error
	for _, c := range data {
		f, ok, err := p.Feed(c)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			frames = append(frames, f)
		}
	}
	return frames, errs
}

func TestEncode(t *testing.T) {
	out, err := Request(CmdIdent, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []byte{'$', 'M', '<', 0, 100, 100})

	out, err = Encode(FromBoard, CmdAttitude, []byte{1, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []byte{'$', 'M', '>', 2, 108, 1, 2, 2 ^ 108 ^ 1 ^ 2})

	_, err = Encode(FromBoard, CmdRC, make([]byte, 256))
	test.That(t, errors.Is(err, ErrPayloadTooLarge), test.ShouldBeTrue)
}

func TestParserRoundTrip(t *testing.T) {
	var p Parser
	payload := PutUint16s([]uint16{1000, 1500, 2000})
	data, err := Request(CmdSetMotor, payload)
	test.That(t, err, test.ShouldBeNil)

	// garbage and a stray '$' before the frame are skipped
	stream := append([]byte{0x00, 'x', '$', 'Q'}, data...)
	frames, errs := feedAll(t, &p, stream)
	test.That(t, errs, test.ShouldBeEmpty)
	test.That(t, frames, test.ShouldHaveLength, 1)
	test.That(t, frames[0].Direction, test.ShouldEqual, ToBoard)
	test.That(t, frames[0].Command, test.ShouldEqual, CmdSetMotor)
	test.That(t, frames[0].Payload, test.ShouldResemble, payload)
	test.That(t, p.InFrame(), test.ShouldBeFalse)
}

func TestParserBackToBack(t *testing.T) {
	var p Parser
	a, _ := Request(CmdStatus, nil)
	b, _ := Encode(ErrorReply, CmdRC, nil)
	frames, errs := feedAll(t, &p, append(a, b...))
	test.That(t, errs, test.ShouldBeEmpty)
	test.That(t, frames, test.ShouldHaveLength, 2)
	test.That(t, frames[0].Command, test.ShouldEqual, CmdStatus)
	test.That(t, frames[1].Direction, test.ShouldEqual, ErrorReply)
}

func TestParserRejects(t *testing.T) {
	var p Parser
	data, _ := Request(CmdRawIMU, nil)
	data[len(data)-1] ^= 0xFF
	frames, errs := feedAll(t, &p, data)
	test.That(t, frames, test.ShouldBeEmpty)
	test.That(t, errs, test.ShouldHaveLength, 1)
	test.That(t, errors.Is(errs[0], ErrChecksum), test.ShouldBeTrue)

	frames, errs = feedAll(t, &p, []byte("$M?"))
	test.That(t, frames, test.ShouldBeEmpty)
	test.That(t, errs, test.ShouldHaveLength, 1)
	test.That(t, errors.Is(errs[0], ErrDirection), test.ShouldBeTrue)

	// the parser recovers for the next frame
	data, _ = Request(CmdRawIMU, nil)
	frames, errs = feedAll(t, &p, data)
	test.That(t, errs, test.ShouldBeEmpty)
	test.That(t, frames, test.ShouldHaveLength, 1)

	feedAll(t, &p, []byte("$M<"))
	test.That(t, p.InFrame(), test.ShouldBeTrue)
	p.Reset()
	test.That(t, p.InFrame(), test.ShouldBeFalse)
}

func TestPayloads(t *testing.T) {
	out, err := Marshal(AttitudeData{AngX: -15, AngY: 300, Heading: 90})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []byte{0xF1, 0xFF, 0x2C, 0x01, 90, 0})

	out, err = Marshal(IdentData{Version: 240, Multitype: MultitypeQuadX, Capability: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 7)

	out, err = Marshal(StatusData{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 11)

	var imu RawIMUData
	raw, err := Marshal(RawIMUData{AccZ: 4096, GyroX: -3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw, test.ShouldHaveLength, 18)
	test.That(t, Unmarshal(raw, &imu), test.ShouldBeNil)
	test.That(t, imu.AccZ, test.ShouldEqual, int16(4096))
	test.That(t, imu.GyroX, test.ShouldEqual, int16(-3))

	test.That(t, Unmarshal([]byte{1}, &imu), test.ShouldNotBeNil)

	v, err := Uint16s([]byte{0xE8, 0x03, 0xD0, 0x07})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldResemble, []uint16{1000, 2000})
	_, err = Uint16s([]byte{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCommandString(t *testing.T) {
	test.That(t, CmdSetMotor.String(), test.ShouldEqual, "MSP_SET_MOTOR")
	test.That(t, Command(7).String(), test.ShouldEqual, "MSP_7")
}
