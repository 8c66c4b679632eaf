// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim implements a software-in-the-loop flight-controller board.
//
// The IMU reports gravity for a settable attitude plus settable body rates,
// RC channels and the serial link are driven from the host side, and motor
// and LED outputs can be read back. Time comes from an injectable clock so
// tests can run on a mock.
package sim

import (
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/imu"
	"github.com/relabs-tech/flight_board/internal/serialbuf"
)

// ThrottleChannel is the RC channel that idles low instead of centered.
const ThrottleChannel = 2

// Config holds the parameters of a simulated board.
type Config struct {
	Name       string
	Motors     int
	Channels   int
	MotorMinUS uint16
	MotorMaxUS uint16

	// MPU-class range codes, 0-3.
	AccelRange byte
	GyroRange  byte

	// Noise is the standard deviation, in counts, added to every IMU axis.
	Noise float64
	Seed  int64

	SerialBufferSize int

	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Restart is invoked by Reboot. It must not return on success; the
	// default exits the process so a supervisor can start it again.
	Restart func()
}

// DefaultConfig returns a quadcopter-sized board with 8 RC channels.
func DefaultConfig() Config {
	return Config{
		Name:             "sim",
		Motors:           4,
		Channels:         8,
		MotorMinUS:       1000,
		MotorMaxUS:       2000,
		AccelRange:       2,
		GyroRange:        3,
		SerialBufferSize: serialbuf.DefaultSize,
	}
}

// Board is a simulated board. It is safe for concurrent use.
type Board struct {
	cfg    Config
	clk    clock.Clock
	logger *zap.SugaredLogger

	mu          sync.Mutex
	initialized bool
	start       time.Time

	imuPresent bool
	imuReady   bool
	scale      imu.Scale
	roll       float64 // rad
	pitch      float64 // rad
	rates      [3]float64
	rng        *rand.Rand

	channels []uint16
	motors   []uint16
	leds     [2]bool

	rebootLatched bool
	reboots       int

	rx *serialbuf.FIFO
	tx *serialbuf.FIFO
}

var _ board.Board = (*Board)(nil)

// New creates a simulated board. Zero-valued config fields take the values
// from DefaultConfig.
func New(cfg Config, logger *zap.SugaredLogger) *Board {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Motors <= 0 {
		cfg.Motors = def.Motors
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.MotorMinUS == 0 && cfg.MotorMaxUS == 0 {
		cfg.MotorMinUS, cfg.MotorMaxUS = def.MotorMinUS, def.MotorMaxUS
	}
	if cfg.SerialBufferSize <= 0 {
		cfg.SerialBufferSize = def.SerialBufferSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Restart == nil {
		cfg.Restart = func() { os.Exit(0) }
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	b := &Board{
		cfg:        cfg,
		clk:        cfg.Clock,
		logger:     logger,
		imuPresent: true,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		channels:   make([]uint16, cfg.Channels),
		motors:     make([]uint16, cfg.Motors),
		rx:         serialbuf.New(cfg.SerialBufferSize),
		tx:         serialbuf.New(cfg.SerialBufferSize),
	}
	for i := range b.channels {
		b.channels[i] = 1500
	}
	if ThrottleChannel < len(b.channels) {
		b.channels[ThrottleChannel] = 1000
	}
	return b
}

// Describe reports the fixed board parameters.
func (b *Board) Describe() board.Info {
	return board.Info{
		Name:       b.cfg.Name,
		Motors:     b.cfg.Motors,
		Channels:   b.cfg.Channels,
		MotorMinUS: b.cfg.MotorMinUS,
		MotorMaxUS: b.cfg.MotorMaxUS,
	}
}

func (b *Board) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	b.start = b.clk.Now()
	for i := range b.motors {
		b.motors[i] = b.cfg.MotorMinUS
	}
	b.leds = [2]bool{}
	b.initialized = true
	b.logger.Infow("sim: board initialized", "name", b.cfg.Name, "motors", b.cfg.Motors, "channels", b.cfg.Channels)
	return nil
}

func (b *Board) CheckReboot(pending bool) error {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return board.ErrNotInitialized("CheckReboot")
	}
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
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return 0
	}
	return board.MicrosFromDuration(b.clk.Since(b.start))
}

func (b *Board) IMUInit() (imu.Scale, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return imu.Scale{}, board.ErrNotInitialized("IMUInit")
	}
	if !b.imuPresent {
		b.imuReady = false
		return imu.Scale{}, board.NewError(board.KindSensorUnavailable, "IMUInit", "no IMU on %s", b.cfg.Name)
	}
	b.scale = imu.ScaleForRanges(b.cfg.AccelRange, b.cfg.GyroRange)
	b.imuReady = true
	return b.scale, nil
}

func (b *Board) IMURead() (imu.Sample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized || !b.imuReady {
		return imu.Sample{}, board.ErrNotInitialized("IMURead")
	}
	if !b.imuPresent {
		return imu.Sample{}, board.NewError(board.KindSensorUnavailable, "IMURead", "IMU removed")
	}

	g := float64(b.scale.Acc1G)
	ax := -math.Sin(b.pitch) * g
	ay := math.Sin(b.roll) * math.Cos(b.pitch) * g
	az := math.Cos(b.roll) * math.Cos(b.pitch) * g

	k := float64(b.scale.GyroScale)
	return imu.Sample{
		Ax: b.counts(ax),
		Ay: b.counts(ay),
		Az: b.counts(az),
		Gx: b.counts(b.rates[0] / k),
		Gy: b.counts(b.rates[1] / k),
		Gz: b.counts(b.rates[2] / k),
	}, nil
}

// counts adds noise and saturates to the int16 range. Caller holds b.mu.
func (b *Board) counts(v float64) int16 {
	if b.cfg.Noise > 0 {
		v += b.rng.NormFloat64() * b.cfg.Noise
	}
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
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
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return board.ErrNotInitialized(op)
	}
	if !board.ValidLED(led) {
		return board.ErrIndex(op, int(led), len(b.leds))
	}
	b.leds[led] = next(b.leds[led])
	return nil
}

// LEDState reports whether led is lit.
func (b *Board) LEDState(led board.LED) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return false, board.ErrNotInitialized("LEDState")
	}
	if !board.ValidLED(led) {
		return false, board.ErrIndex("LEDState", int(led), len(b.leds))
	}
	return b.leds[led], nil
}

func (b *Board) ReadPWM(channel uint8) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return 0, board.ErrNotInitialized("ReadPWM")
	}
	if int(channel) >= len(b.channels) {
		return 0, board.ErrIndex("ReadPWM", int(channel), len(b.channels))
	}
	return b.channels[channel], nil
}

func (b *Board) Reboot() error {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return board.ErrNotInitialized("Reboot")
	}
	b.reboots++
	b.rebootLatched = false
	restart := b.cfg.Restart
	b.mu.Unlock()

	b.logger.Warnw("sim: rebooting", "name", b.cfg.Name)
	restart()
	return board.NewError(board.KindRebootFailed, "Reboot", "restart hook returned")
}

func (b *Board) SerialAvailableBytes() int {
	if !b.ready() {
		return 0
	}
	return b.rx.Len()
}

func (b *Board) SerialReadByte() (byte, error) {
	if !b.ready() {
		return 0, board.ErrNotInitialized("SerialReadByte")
	}
	c, ok := b.rx.PopByte()
	if !ok {
		return 0, &board.Error{Kind: board.KindNoData, Op: "SerialReadByte"}
	}
	return c, nil
}

func (b *Board) SerialWriteByte(c byte) error {
	if !b.ready() {
		return board.ErrNotInitialized("SerialWriteByte")
	}
	if !b.tx.PushByte(c) {
		return &board.Error{Kind: board.KindTxOverflow, Op: "SerialWriteByte"}
	}
	return nil
}

func (b *Board) WriteMotor(index uint8, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return board.ErrNotInitialized("WriteMotor")
	}
	if int(index) >= len(b.motors) {
		return board.ErrIndex("WriteMotor", int(index), len(b.motors))
	}
	b.motors[index] = board.ClampMotor(value, b.cfg.MotorMinUS, b.cfg.MotorMaxUS)
	return nil
}

// Motor returns the output last written to motor index.
func (b *Board) Motor(index uint8) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return 0, board.ErrNotInitialized("Motor")
	}
	if int(index) >= len(b.motors) {
		return 0, board.ErrIndex("Motor", int(index), len(b.motors))
	}
	return b.motors[index], nil
}

func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.motors {
		b.motors[i] = b.cfg.MotorMinUS
	}
	b.leds = [2]bool{}
	b.initialized = false
	b.imuReady = false
	return nil
}

func (b *Board) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}
