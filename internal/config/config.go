// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Board kinds for BOARD.
const (
	BoardSim   = "sim"
	BoardLinux = "linux"
)

// Config holds all application configuration values.
type Config struct {
	// Board selection
	Board     string
	BoardName string

	// Motors
	MotorCount int
	MotorMinUS uint16
	MotorMaxUS uint16
	MotorPWMHz int
	MotorPins  []string

	// RC receiver
	RCChannels int
	RCGPIOChip string
	RCLines    []int

	// Status LEDs
	LEDGreenPin  string
	LEDRedPin    string
	LEDActiveLow bool

	// IMU hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte
	IMUSelfTest  bool

	// Serial link
	SerialPort       string
	SerialBaudRate   uint
	SerialBufferSize int

	// Bench loop timing
	LoopInterval       int // milliseconds
	HeartbeatCycles    int
	MotorTestTimeoutMS int
	TelemetryInterval  int // milliseconds

	// MQTT
	MQTTBroker          string
	MQTTClientIDBench   string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	TopicTelemetry      string

	// Web server
	WebServerPort int
	WebStaticDir  string

	// 3D scene shown by the web viewer
	SceneMapSizeCM      float64
	SceneObstacleSizeCM float64
	SceneVehicleSizeCM  float64
	SceneMaxObstacles   int
	SceneDemoInterval   int // milliseconds, 0 disables the demo flight

	// Simulation and self-test
	SimNoise        float64
	SimSeed         int64
	SelfTestSamples int
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration for the simulated board that needs no
// hardware and no config file.
func Default() *Config {
	return &Config{
		Board:               BoardSim,
		BoardName:           "sim",
		MotorCount:          4,
		MotorMinUS:          1000,
		MotorMaxUS:          2000,
		MotorPWMHz:          400,
		RCChannels:          8,
		IMUAccelRange:       2,
		IMUGyroRange:        3,
		IMUSelfTest:         true,
		SerialBaudRate:      115200,
		SerialBufferSize:    1024,
		LoopInterval:        10,
		HeartbeatCycles:     50,
		MotorTestTimeoutMS:  2000,
		TelemetryInterval:   100,
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDBench:   "flightboard-bench",
		MQTTClientIDConsole: "flightboard-console",
		MQTTClientIDWeb:     "flightboard-web",
		TopicTelemetry:      "flightboard/<board>/telemetry",
		WebServerPort:       8080,
		SceneMapSizeCM:      1000,
		SceneObstacleSizeCM: 10,
		SceneVehicleSizeCM:  25,
		SceneMaxObstacles:   1000,
		SimSeed:             1,
		SelfTestSamples:     200,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped; unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func intValue(key, value string, min, max int) (int, error) {
	v, err := cast.ToIntE(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if v < min || v > max {
		return 0, errors.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func positiveFloat(key, value string) (float64, error) {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if v <= 0 {
		return 0, errors.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

func listValue(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const maxInt = int(^uint(0) >> 1)

// MaxIntervalMS is the longest interval, in ms, the board's 32-bit
// microsecond counter can measure.
const MaxIntervalMS = math.MaxUint32 / 1000

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	var v int
	switch key {
	// Board
	case "BOARD":
		if value != BoardSim && value != BoardLinux {
			return errors.Errorf("BOARD must be %q or %q, got %q", BoardSim, BoardLinux, value)
		}
		c.Board = value
	case "BOARD_NAME":
		c.BoardName = value

	// Motors
	case "MOTOR_COUNT":
		c.MotorCount, err = intValue(key, value, 1, 255)
	case "MOTOR_MIN_US":
		v, err = intValue(key, value, 0, 65535)
		c.MotorMinUS = uint16(v)
	case "MOTOR_MAX_US":
		v, err = intValue(key, value, 0, 65535)
		c.MotorMaxUS = uint16(v)
	case "MOTOR_PWM_HZ":
		c.MotorPWMHz, err = intValue(key, value, 1, 50000)
	case "MOTOR_PINS":
		c.MotorPins = listValue(value)

	// RC
	case "RC_CHANNELS":
		c.RCChannels, err = intValue(key, value, 1, 255)
	case "RC_GPIO_CHIP":
		c.RCGPIOChip = value
	case "RC_LINES":
		c.RCLines = nil
		for _, s := range listValue(value) {
			off, err := intValue(key, s, 0, 1023)
			if err != nil {
				return err
			}
			c.RCLines = append(c.RCLines, off)
		}

	// LEDs
	case "LED_GREEN_PIN":
		c.LEDGreenPin = value
	case "LED_RED_PIN":
		c.LEDRedPin = value
	case "LED_ACTIVE_LOW":
		c.LEDActiveLow, err = cast.ToBoolE(value)

	// IMU
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		v, err = intValue(key, value, 0, 3)
		c.IMUAccelRange = byte(v)
	case "IMU_GYRO_RANGE":
		v, err = intValue(key, value, 0, 3)
		c.IMUGyroRange = byte(v)
	case "IMU_SELF_TEST":
		c.IMUSelfTest, err = cast.ToBoolE(value)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		v, err = intValue(key, value, 1, 4000000)
		c.SerialBaudRate = uint(v)
	case "SERIAL_BUFFER_SIZE":
		c.SerialBufferSize, err = intValue(key, value, 16, 1<<20)

	// Timing
	case "LOOP_INTERVAL":
		c.LoopInterval, err = intValue(key, value, 1, 60000)
	case "HEARTBEAT_CYCLES":
		c.HeartbeatCycles, err = intValue(key, value, 1, maxInt)
	case "MOTOR_TEST_TIMEOUT_MS":
		c.MotorTestTimeoutMS, err = intValue(key, value, 0, MaxIntervalMS)
	case "TELEMETRY_INTERVAL":
		c.TelemetryInterval, err = intValue(key, value, 0, MaxIntervalMS)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_BENCH":
		c.MQTTClientIDBench = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value

	// Web
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intValue(key, value, 1, 65535)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Scene
	case "SCENE_MAP_SIZE_CM":
		c.SceneMapSizeCM, err = positiveFloat(key, value)
	case "SCENE_OBSTACLE_SIZE_CM":
		c.SceneObstacleSizeCM, err = positiveFloat(key, value)
	case "SCENE_VEHICLE_SIZE_CM":
		c.SceneVehicleSizeCM, err = positiveFloat(key, value)
	case "SCENE_MAX_OBSTACLES":
		c.SceneMaxObstacles, err = intValue(key, value, 1, 1<<20)
	case "SCENE_DEMO_INTERVAL":
		c.SceneDemoInterval, err = intValue(key, value, 0, 60000)

	// Simulation and self-test
	case "SIM_NOISE":
		c.SimNoise, err = cast.ToFloat64E(value)
		if err == nil && c.SimNoise < 0 {
			err = errors.Errorf("SIM_NOISE must not be negative, got %v", c.SimNoise)
		}
	case "SIM_SEED":
		c.SimSeed, err = cast.ToInt64E(value)
	case "SELFTEST_SAMPLES":
		c.SelfTestSamples, err = intValue(key, value, 2, 100000)

	default:
		return errors.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	return nil
}

// validate checks cross-key constraints.
func (c *Config) validate() error {
	if c.BoardName == "" {
		return errors.New("BOARD_NAME is required")
	}
	if c.MotorMinUS >= c.MotorMaxUS {
		return errors.Errorf("MOTOR_MIN_US (%d) must be below MOTOR_MAX_US (%d)", c.MotorMinUS, c.MotorMaxUS)
	}
	if c.Board == BoardLinux {
		if len(c.MotorPins) != c.MotorCount {
			return errors.Errorf("MOTOR_PINS lists %d pins for MOTOR_COUNT %d", len(c.MotorPins), c.MotorCount)
		}
		if len(c.RCLines) != c.RCChannels {
			return errors.Errorf("RC_LINES lists %d lines for RC_CHANNELS %d", len(c.RCLines), c.RCChannels)
		}
		if len(c.RCLines) > 0 && c.RCGPIOChip == "" {
			return errors.New("RC_GPIO_CHIP is required with RC_LINES")
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so only the first call loads.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// InitGlobalDefault installs Default as the global configuration unless one
// was already initialized.
func InitGlobalDefault() {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = Default()
	})
}
