// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/flight_board/internal/msp"
	"github.com/relabs-tech/flight_board/internal/orientation"
)

// identVersion is reported in MSP_IDENT as major*100+minor.
const identVersion = 100

func (bn *Bench) dispatcher() *msp.Dispatcher {
	d := msp.NewDispatcher(bn.logger)
	d.Handle(msp.CmdIdent, bn.handleIdent)
	d.Handle(msp.CmdStatus, bn.handleStatus)
	d.Handle(msp.CmdRawIMU, bn.handleRawIMU)
	d.Handle(msp.CmdMotor, bn.handleMotor)
	d.Handle(msp.CmdRC, bn.handleRC)
	d.Handle(msp.CmdAttitude, bn.handleAttitude)
	d.Handle(msp.CmdSetMotor, bn.handleSetMotor)
	d.Handle(msp.CmdReboot, bn.handleReboot)
	return d
}

func (bn *Bench) handleIdent(msp.Frame) ([]byte, error) {
	multitype := uint8(msp.MultitypeQuadX)
	if bn.info.Motors == 6 {
		multitype = msp.MultitypeHex6X
	}
	return msp.Marshal(msp.IdentData{Version: identVersion, Multitype: multitype})
}

func (bn *Bench) handleStatus(msp.Frame) ([]byte, error) {
	st := msp.StatusData{CycleTime: uint16(min(bn.cycleTimeUS, 0xFFFF))}
	if bn.errCount > 0xFFFF {
		st.I2CErrors = 0xFFFF
	} else {
		st.I2CErrors = uint16(bn.errCount)
	}
	if bn.imuOK {
		st.Sensors = msp.SensorAcc | msp.SensorGyro
	}
	return msp.Marshal(st)
}

func (bn *Bench) handleRawIMU(msp.Frame) ([]byte, error) {
	if !bn.imuOK {
		return nil, errors.New("no IMU sample")
	}
	s := bn.sample
	return msp.Marshal(msp.RawIMUData{
		AccX: s.Ax, AccY: s.Ay, AccZ: s.Az,
		GyroX: s.Gx, GyroY: s.Gy, GyroZ: s.Gz,
	})
}

func (bn *Bench) handleMotor(msp.Frame) ([]byte, error) {
	out := make([]uint16, msp.MaxMotors)
	copy(out, bn.motors)
	return msp.PutUint16s(out), nil
}

func (bn *Bench) handleRC(msp.Frame) ([]byte, error) {
	return msp.PutUint16s(bn.rc), nil
}

func (bn *Bench) handleAttitude(msp.Frame) ([]byte, error) {
	if !bn.imuOK {
		return nil, errors.New("no IMU sample")
	}
	roll, pitch, yaw := orientation.PoseFromSample(bn.sample).Decidegrees()
	return msp.Marshal(msp.AttitudeData{AngX: roll, AngY: pitch, Heading: yaw})
}

// handleSetMotor starts or refreshes a motor test. Slots beyond the board's
// motor count are ignored; a zero slot means minimum.
func (bn *Bench) handleSetMotor(req msp.Frame) ([]byte, error) {
	values, err := msp.Uint16s(req.Payload)
	if err != nil {
		return nil, err
	}
	if len(values) > msp.MaxMotors {
		return nil, errors.Errorf("%d motor values, at most %d", len(values), msp.MaxMotors)
	}
	test := make([]uint16, len(bn.motors))
	copy(test, values)
	bn.motorTest = test
	bn.testStart = bn.elapsedUS
	bn.logger.Infow("bench: motor test", "values", test)
	return nil, nil
}

func (bn *Bench) handleReboot(msp.Frame) ([]byte, error) {
	bn.rebootRequested = true
	bn.logger.Warnw("bench: reboot requested over MSP")
	return nil, nil
}
