// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package linuxboard

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/flight_board/internal/board"
	"github.com/relabs-tech/flight_board/internal/board/boardtest"
)

var (
	pinsOnce sync.Once
	pinsErr  error

	motorPins = []*gpiotest.Pin{
		{N: "FB_MOTOR0", Num: 900},
		{N: "FB_MOTOR1", Num: 901},
		{N: "FB_MOTOR2", Num: 902},
		{N: "FB_MOTOR3", Num: 903},
	}
	greenPin = &gpiotest.Pin{N: "FB_LED_GREEN", Num: 910}
	redPin   = &gpiotest.Pin{N: "FB_LED_RED", Num: 911}
)

func registerPins(t *testing.T) {
	t.Helper()
	pinsOnce.Do(func() {
		for _, p := range motorPins {
			pinsErr = registerAfter(pinsErr, p)
		}
		pinsErr = registerAfter(pinsErr, greenPin)
		pinsErr = registerAfter(pinsErr, redPin)
	})
	test.That(t, pinsErr, test.ShouldBeNil)
}

func registerAfter(prev error, p *gpiotest.Pin) error {
	if prev != nil {
		return prev
	}
	return gpioreg.Register(p)
}

func duty(p *gpiotest.Pin) (gpio.Duty, physic.Frequency) {
	p.Lock()
	defer p.Unlock()
	return p.D, p.F
}

func testConfig() Config {
	cfg := Config{
		Name:             "bench",
		MotorMinUS:       1000,
		MotorMaxUS:       2000,
		MotorPWMHz:       400,
		LEDGreenPin:      greenPin.N,
		LEDRedPin:        redPin.N,
		SerialPort:       "/dev/ttyAMA0",
		SerialBaudRate:   115200,
		SerialBufferSize: 64,
	}
	for _, p := range motorPins {
		cfg.MotorPins = append(cfg.MotorPins, p.N)
	}
	return cfg
}

// newTestBoard builds a board on fake pins whose UART is one end of a pipe.
// The other end is returned for the test to play the host.
func newTestBoard(t *testing.T, cfg Config) (*Board, net.Conn) {
	t.Helper()
	registerPins(t)
	local, remote := net.Pipe()
	cfg.OpenSerial = func(string, uint) (io.ReadWriteCloser, error) { return local, nil }
	b, err := New(cfg, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		_ = b.Close()
		_ = remote.Close()
	})
	return b, remote
}

func TestConformance(t *testing.T) {
	hosts := map[board.Board]net.Conn{}
	newBoard := func(t *testing.T) *Board {
		b, remote := newTestBoard(t, testConfig())
		go func() { _, _ = io.Copy(io.Discard, remote) }()
		hosts[b] = remote
		return b
	}
	boardtest.Run(t, boardtest.Suite{
		New: func(t *testing.T) board.Board { return newBoard(t) },
		NewRebootable: func(t *testing.T, restarted chan<- struct{}) board.Board {
			b := newBoard(t)
			goexit := boardtest.Goexit(restarted)
			b.restart = func() error {
				goexit()
				return nil
			}
			return b
		},
		Inject: func(b board.Board, p []byte) {
			_, err := hosts[b].Write(p)
			if err != nil {
				return
			}
			deadline := time.Now().Add(5 * time.Second)
			for b.SerialAvailableBytes() < len(p) && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
		},
		NoIMU: true,
	})
}

func TestBoardDrivesPins(t *testing.T) {
	b, _ := newTestBoard(t, testConfig())
	test.That(t, b.Init(), test.ShouldBeNil)

	for _, p := range motorPins {
		d, f := duty(p)
		test.That(t, d, test.ShouldEqual, pulseDuty(1000, 400))
		test.That(t, f, test.ShouldEqual, 400*physic.Hertz)
	}
	test.That(t, greenPin.Read(), test.ShouldEqual, gpio.Low)

	test.That(t, b.WriteMotor(1, 1500), test.ShouldBeNil)
	d, _ := duty(motorPins[1])
	test.That(t, d, test.ShouldEqual, pulseDuty(1500, 400))
	test.That(t, b.WriteMotor(2, 2600), test.ShouldBeNil)
	d, _ = duty(motorPins[2])
	test.That(t, d, test.ShouldEqual, pulseDuty(2000, 400))

	test.That(t, b.LEDOn(board.Green), test.ShouldBeNil)
	test.That(t, greenPin.Read(), test.ShouldEqual, gpio.High)
	test.That(t, b.LEDToggle(board.Red), test.ShouldBeNil)
	test.That(t, redPin.Read(), test.ShouldEqual, gpio.High)

	test.That(t, b.Close(), test.ShouldBeNil)
	for _, p := range motorPins {
		d, _ := duty(p)
		test.That(t, d, test.ShouldEqual, pulseDuty(1000, 400))
	}
	test.That(t, greenPin.Read(), test.ShouldEqual, gpio.Low)
	test.That(t, redPin.Read(), test.ShouldEqual, gpio.Low)

	_, err := b.LEDState(board.Green)
	test.That(t, errors.Is(err, board.KindNotInitialized), test.ShouldBeTrue)
	test.That(t, b.Close(), test.ShouldBeNil)
}

func TestBoardActiveLowLEDs(t *testing.T) {
	cfg := testConfig()
	cfg.LEDActiveLow = true
	b, _ := newTestBoard(t, cfg)
	test.That(t, b.Init(), test.ShouldBeNil)
	test.That(t, greenPin.Read(), test.ShouldEqual, gpio.High)

	test.That(t, b.LEDOn(board.Green), test.ShouldBeNil)
	test.That(t, greenPin.Read(), test.ShouldEqual, gpio.Low)
	on, err := b.LEDState(board.Green)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeTrue)

	test.That(t, b.Close(), test.ShouldBeNil)
	test.That(t, greenPin.Read(), test.ShouldEqual, gpio.High)
}

func TestBoardUnknownPin(t *testing.T) {
	cfg := testConfig()
	cfg.MotorPins = []string{"FB_NO_SUCH_PIN"}
	b, _ := newTestBoard(t, cfg)
	err := b.Init()
	test.That(t, errors.Is(err, board.KindBusError), test.ShouldBeTrue)
	test.That(t, errors.Is(b.WriteMotor(0, 1500), board.KindNotInitialized), test.ShouldBeTrue)
}

func TestBoardSerial(t *testing.T) {
	b, remote := newTestBoard(t, testConfig())
	test.That(t, b.Init(), test.ShouldBeNil)

	for _, c := range []byte("$M>") {
		test.That(t, b.SerialWriteByte(c), test.ShouldBeNil)
	}
	got := make([]byte, 3)
	_, err := io.ReadFull(remote, got)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []byte("$M>"))

	_, err = remote.Write([]byte{0x42})
	test.That(t, err, test.ShouldBeNil)
	deadline := time.Now().Add(5 * time.Second)
	for b.SerialAvailableBytes() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c, err := b.SerialReadByte()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldEqual, byte(0x42))
}

func TestBoardNoSerialPort(t *testing.T) {
	cfg := testConfig()
	cfg.SerialPort = ""
	b, _ := newTestBoard(t, cfg)
	test.That(t, b.Init(), test.ShouldBeNil)
	test.That(t, errors.Is(b.SerialWriteByte('x'), board.KindUnsupported), test.ShouldBeTrue)
	test.That(t, b.SerialAvailableBytes(), test.ShouldEqual, 0)
}

func TestBoardRebootFailure(t *testing.T) {
	b, _ := newTestBoard(t, testConfig())
	test.That(t, b.Init(), test.ShouldBeNil)

	calls := 0
	b.restart = func() error {
		calls++
		return errors.New("operation not permitted")
	}
	test.That(t, b.CheckReboot(false), test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 0)

	err := b.CheckReboot(true)
	test.That(t, errors.Is(err, board.KindRebootFailed), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "operation not permitted")
	test.That(t, calls, test.ShouldEqual, 1)

	// the latch is cleared by the attempt
	test.That(t, b.CheckReboot(false), test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)

	b.restart = func() error { return nil }
	test.That(t, errors.Is(b.Reboot(), board.KindRebootFailed), test.ShouldBeTrue)
}

func TestBoardCloseWhileWriting(t *testing.T) {
	b, _ := newTestBoard(t, testConfig())
	test.That(t, b.Init(), test.ShouldBeNil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, err := range []error{
					b.WriteMotor(uint8(i), 1500),
					b.LEDToggle(board.Green),
				} {
					if err != nil && !errors.Is(err, board.KindNotInitialized) {
						t.Errorf("unexpected error: %v", err)
					}
				}
				_, _ = b.Motor(uint8(i))
			}
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	test.That(t, b.Close(), test.ShouldBeNil)
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	test.That(t, errors.Is(b.WriteMotor(0, 1500), board.KindNotInitialized), test.ShouldBeTrue)
}
