// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package linuxboard drives a flight-controller board built from Linux
// peripherals: an MPU9250 on SPI, GPIO LEDs, PWM motor outputs, RC pulses
// decoded from GPIO edge events, and a UART.
package linuxboard

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/imu"
	"github.com/relabs-tech/flight_board/internal/serialbuf"
)

// Board is a board.Board on Linux hardware. Hardware is opened by Init and
// released by Close.
type Board struct {
	cfg     Config
	logger  *zap.SugaredLogger
	clk     clock.Clock
	restart func() error

	initialized atomic.Bool

	mu            sync.Mutex
	start         time.Time
	ledPins       [2]gpio.PinIO
	ledOn         [2]bool
	motorPins     []gpio.PinIO
	motors        []uint16
	dev           *mpu9250.MPU9250
	rc            *rcInput
	link          *serialLink
	rebootLatched bool

	rx *serialbuf.FIFO
	tx *serialbuf.FIFO
}

var _ board.Board = (*Board)(nil)

// New validates cfg and returns an uninitialized board.
func New(cfg Config, logger *zap.SugaredLogger) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "linuxboard config")
	}
	if cfg.Name == "" {
		cfg.Name = "linux"
	}
	if cfg.SerialBufferSize <= 0 {
		cfg.SerialBufferSize = serialbuf.DefaultSize
	}
	if cfg.OpenSerial == nil {
		cfg.OpenSerial = openSerial
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Board{
		cfg:     cfg,
		logger:  logger,
		clk:     clock.New(),
		restart: restartSystem,
		motors:  make([]uint16, len(cfg.MotorPins)),
		rx:      serialbuf.New(cfg.SerialBufferSize),
		tx:      serialbuf.New(cfg.SerialBufferSize),
	}, nil
}

// Describe reports the configured board parameters.
func (b *Board) Describe() board.Info {
	return board.Info{
		Name:       b.cfg.Name,
		Motors:     len(b.cfg.MotorPins),
		Channels:   len(b.cfg.RCLines),
		MotorMinUS: b.cfg.MotorMinUS,
		MotorMaxUS: b.cfg.MotorMaxUS,
	}
}

func (b *Board) Init() (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized.Load() {
		return nil
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, b.releaseLocked())
		}
	}()

	if _, err := host.Init(); err != nil {
		return board.WrapError(board.KindBusError, "Init", errors.Wrap(err, "periph host init"))
	}

	for _, led := range board.LEDs {
		name := b.ledPinName(led)
		if name == "" {
			b.logger.Infow("linuxboard: LED not wired, state only", "led", led)
			continue
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return board.NewError(board.KindBusError, "Init", "%s LED pin %q not found", led, name)
		}
		if err := p.Out(ledLevel(false, b.cfg.LEDActiveLow)); err != nil {
			return board.WrapError(board.KindBusError, "Init", errors.Wrapf(err, "%s LED pin %s", led, name))
		}
		b.ledPins[led] = p
	}
	b.ledOn = [2]bool{}

	b.motorPins = b.motorPins[:0]
	for i, name := range b.cfg.MotorPins {
		p := gpioreg.ByName(name)
		if p == nil {
			return board.NewError(board.KindBusError, "Init", "motor %d pin %q not found", i, name)
		}
		b.motorPins = append(b.motorPins, p)
		if err := b.setMotorLocked(i, b.cfg.MotorMinUS); err != nil {
			return err
		}
	}

	if len(b.cfg.RCLines) > 0 {
		rc, err := openRCInput(b.cfg.RCChip, b.cfg.RCLines)
		if err != nil {
			if board.KindOf(err) == board.KindUnknown {
				err = board.WrapError(board.KindBusError, "Init", err)
			}
			return err
		}
		b.rc = rc
	}

	if b.cfg.SerialPort != "" {
		port, err := b.cfg.OpenSerial(b.cfg.SerialPort, b.cfg.SerialBaudRate)
		if err != nil {
			return board.WrapError(board.KindBusError, "Init", err)
		}
		b.rx.Reset()
		b.tx.Reset()
		b.link = startSerialLink(port, b.rx, b.tx, b.logger)
		b.logger.Infow("linuxboard: serial port opened", "port", b.cfg.SerialPort, "baud", b.cfg.SerialBaudRate)
	}

	b.start = b.clk.Now()
	b.initialized.Store(true)
	b.logger.Infow("linuxboard: board initialized",
		"name", b.cfg.Name, "motors", len(b.cfg.MotorPins), "channels", len(b.cfg.RCLines))
	return nil
}

func (b *Board) ledPinName(led board.LED) string {
	if led == board.Green {
		return b.cfg.LEDGreenPin
	}
	return b.cfg.LEDRedPin
}

func (b *Board) CheckReboot(pending bool) error {
	if !b.initialized.Load() {
		return board.ErrNotInitialized("CheckReboot")
	}
	b.mu.Lock()
	if pending {
		b.rebootLatched = true
	}
	latched := b.rebootLatched
	b.mu.Unlock()
	if !latched {
		return nil
	}
	return b.Reboot()
}

func (b *Board) DelayMilliseconds(msec uint32) {
	b.clk.Sleep(time.Duration(msec) * time.Millisecond)
}

func (b *Board) Micros() uint32 {
	if !b.initialized.Load() {
		return 0
	}
	b.mu.Lock()
	start := b.start
	b.mu.Unlock()
	return board.MicrosFromDuration(b.clk.Since(start))
}

func (b *Board) IMUInit() (imu.Scale, error) {
	if !b.initialized.Load() {
		return imu.Scale{}, board.ErrNotInitialized("IMUInit")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.IMUSPIDevice == "" {
		return imu.Scale{}, board.NewError(board.KindSensorUnavailable, "IMUInit", "no IMU SPI device configured")
	}
	if b.dev == nil {
		dev, err := openMPU9250(b.cfg, b.logger)
		if err != nil {
			return imu.Scale{}, err
		}
		b.dev = dev
	}
	return imu.ScaleForRanges(b.cfg.IMUAccelRange, b.cfg.IMUGyroRange), nil
}

func (b *Board) IMURead() (imu.Sample, error) {
	b.mu.Lock()
	dev := b.dev
	b.mu.Unlock()
	if !b.initialized.Load() || dev == nil {
		return imu.Sample{}, board.ErrNotInitialized("IMURead")
	}
	return readMPU9250(dev)
}

func (b *Board) LEDOn(led board.LED) error {
	return b.setLED("LEDOn", led, func(bool) bool { return true })
}
func (b *Board) LEDOff(led board.LED) error {
	return b.setLED("LEDOff", led, func(bool) bool { return false })
}
func (b *Board) LEDToggle(led board.LED) error {
	return b.setLED("LEDToggle", led, func(on bool) bool { return !on })
}

func (b *Board) setLED(op string, led board.LED, next func(bool) bool) error {
	if err := b.lockInitialized(op); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if !board.ValidLED(led) {
		return board.ErrIndex(op, int(led), len(board.LEDs))
	}
	on := next(b.ledOn[led])
	if p := b.ledPins[led]; p != nil {
		if err := p.Out(ledLevel(on, b.cfg.LEDActiveLow)); err != nil {
			return board.WrapError(board.KindBusError, op, err)
		}
	}
	b.ledOn[led] = on
	return nil
}

// LEDState reports whether led is lit.
func (b *Board) LEDState(led board.LED) (bool, error) {
	if err := b.lockInitialized("LEDState"); err != nil {
		return false, err
	}
	defer b.mu.Unlock()
	if !board.ValidLED(led) {
		return false, board.ErrIndex("LEDState", int(led), len(board.LEDs))
	}
	return b.ledOn[led], nil
}

// ReadPWM returns the last decoded pulse width, or 0 before the first pulse.
func (b *Board) ReadPWM(channel uint8) (uint16, error) {
	if err := b.lockInitialized("ReadPWM"); err != nil {
		return 0, err
	}
	defer b.mu.Unlock()
	if int(channel) >= len(b.cfg.RCLines) {
		return 0, board.ErrIndex("ReadPWM", int(channel), len(b.cfg.RCLines))
	}
	return b.rc.width(int(channel)), nil
}

func (b *Board) Reboot() error {
	if !b.initialized.Load() {
		return board.ErrNotInitialized("Reboot")
	}
	b.mu.Lock()
	b.rebootLatched = false
	b.mu.Unlock()

	b.logger.Warnw("linuxboard: rebooting", "name", b.cfg.Name)
	if err := b.restart(); err != nil {
		return board.WrapError(board.KindRebootFailed, "Reboot", err)
	}
	return board.NewError(board.KindRebootFailed, "Reboot", "system restart returned")
}

func (b *Board) SerialAvailableBytes() int {
	if !b.initialized.Load() {
		return 0
	}
	return b.rx.Len()
}

func (b *Board) SerialReadByte() (byte, error) {
	if !b.initialized.Load() {
		return 0, board.ErrNotInitialized("SerialReadByte")
	}
	c, ok := b.rx.PopByte()
	if !ok {
		return 0, &board.Error{Kind: board.KindNoData, Op: "SerialReadByte"}
	}
	return c, nil
}

func (b *Board) SerialWriteByte(c byte) error {
	if !b.initialized.Load() {
		return board.ErrNotInitialized("SerialWriteByte")
	}
	if b.link == nil {
		return board.NewError(board.KindUnsupported, "SerialWriteByte", "no serial port configured")
	}
	if !b.tx.PushByte(c) {
		return &board.Error{Kind: board.KindTxOverflow, Op: "SerialWriteByte"}
	}
	return nil
}

func (b *Board) WriteMotor(index uint8, value uint16) error {
	if err := b.lockInitialized("WriteMotor"); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if int(index) >= len(b.motorPins) {
		return board.ErrIndex("WriteMotor", int(index), len(b.cfg.MotorPins))
	}
	return b.setMotorLocked(int(index), board.ClampMotor(value, b.cfg.MotorMinUS, b.cfg.MotorMaxUS))
}

// lockInitialized takes mu and returns nil if the board is initialized.
// On error mu is not held.
func (b *Board) lockInitialized(op string) error {
	b.mu.Lock()
	if !b.initialized.Load() {
		b.mu.Unlock()
		return board.ErrNotInitialized(op)
	}
	return nil
}

func (b *Board) setMotorLocked(i int, us uint16) error {
	hz := b.cfg.MotorPWMHz
	if err := b.motorPins[i].PWM(pulseDuty(us, hz), physic.Frequency(hz)*physic.Hertz); err != nil {
		return board.WrapError(board.KindBusError, "WriteMotor", errors.Wrapf(err, "motor %d", i))
	}
	b.motors[i] = us
	return nil
}

// Motor returns the pulse width last written to motor index.
func (b *Board) Motor(index uint8) (uint16, error) {
	if err := b.lockInitialized("Motor"); err != nil {
		return 0, err
	}
	defer b.mu.Unlock()
	if int(index) >= len(b.motors) {
		return 0, board.ErrIndex("Motor", int(index), len(b.motors))
	}
	return b.motors[index], nil
}

// Close idles the motors, turns the LEDs off and stops the background
// goroutines.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized.Load() {
		return nil
	}
	var err error
	for i := range b.motorPins {
		err = multierr.Append(err, b.setMotorLocked(i, b.cfg.MotorMinUS))
	}
	for led, p := range b.ledPins {
		if p != nil {
			err = multierr.Append(err, p.Out(ledLevel(false, b.cfg.LEDActiveLow)))
		}
		b.ledOn[led] = false
	}
	err = multierr.Append(err, b.releaseLocked())
	b.initialized.Store(false)
	return err
}

func (b *Board) releaseLocked() error {
	var err error
	for _, p := range b.motorPins {
		err = multierr.Append(err, p.Halt())
	}
	b.motorPins = b.motorPins[:0]
	b.ledPins = [2]gpio.PinIO{}
	if b.rc != nil {
		err = multierr.Append(err, b.rc.Close())
		b.rc = nil
	}
	if b.link != nil {
		err = multierr.Append(err, b.link.Close())
		b.link = nil
	}
	b.dev = nil
	return err
}
