// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// flightboard runs a flight-controller board on the bench and watches its
// telemetry.
//
//	flightboard --config flightboard.txt bench
//	flightboard console
//	flightboard web
//	flightboard selftest --out report.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/app"
	"github.com/relabs-tech/flight_board/internal/calib"
	"github.com/relabs-tech/flight_board/internal/config"
	"github.com/relabs-tech/flight_board/internal/orientation"
	"github.com/relabs-tech/flight_board/internal/telemetry"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "flightboard: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "flightboard",
		Usage: "run and observe a flight-controller board",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "KEY=VALUE config file; built-in simulator defaults when empty",
			},
			&cli.BoolFlag{Name: "debug", Usage: "debug logging"},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return config.InitGlobal(path)
			}
			config.InitGlobalDefault()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "bench",
				Usage: "drive the board: IMU, RC, MSP over serial, telemetry over MQTT",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-mqtt", Usage: "do not publish telemetry"},
				},
				Action: runBench,
			},
			{
				Name:  "console",
				Usage: "print telemetry from MQTT",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "mock", Usage: "print a synthetic attitude instead"},
				},
				Action: runConsole,
			},
			{
				Name:  "web",
				Usage: "serve telemetry and the 3D scene over HTTP and websockets",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "scene-demo", Usage: "fly a demo vehicle through the scene"},
				},
				Action: runWeb,
			},
			{
				Name:  "selftest",
				Usage: "stationary IMU self-test",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "samples", Usage: "override SELFTEST_SAMPLES"},
					&cli.StringFlag{Name: "out", Usage: "also write the JSON report to this file"},
				},
				Action: runSelfTest,
			},
		},
	}
}

func newLogger(c *cli.Context) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if c.Bool("debug") {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, errors.Wrap(err, "logger")
	}
	return l.Sugar().Named("flightboard"), nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func runBench(c *cli.Context) (err error) {
	cfg := config.Get()
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	b, err := app.NewBoard(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, b.Close()) }()

	var sink telemetry.Sink
	if !c.Bool("no-mqtt") {
		client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDBench)
		if err != nil {
			return err
		}
		pub := telemetry.NewMQTTPublisher(client, telemetry.Topic(cfg.TopicTelemetry, cfg.BoardName), logger)
		defer pub.Close()
		sink = pub
		logger.Infow("bench: publishing telemetry", "topic", pub.Topic())
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return app.NewBench(b, app.BenchConfigFrom(cfg), sink, logger).Run(ctx)
}

func runConsole(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext(c)
	defer cancel()
	if c.Bool("mock") {
		return app.RunMockConsole(ctx, nil, os.Stdout, 100*time.Millisecond)
	}
	return app.RunConsoleMQTT(ctx, config.Get(), os.Stdout, logger)
}

func runWeb(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := *config.Get()
	if c.Bool("scene-demo") && cfg.SceneDemoInterval == 0 {
		cfg.SceneDemoInterval = 50
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return app.RunWeb(ctx, &cfg, logger)
}

func runSelfTest(c *cli.Context) (err error) {
	cfg := config.Get()
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	b, err := app.NewBoard(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, b.Close()) }()

	opts := calib.DefaultOptions()
	opts.Samples = cfg.SelfTestSamples
	if n := c.Int("samples"); n > 0 {
		opts.Samples = n
	}
	rep, err := calib.Run(b, opts, logger)
	if err != nil {
		return err
	}
	if pose, perr := orientation.NewIMUSource(b).Next(); perr == nil {
		logger.Infow("selftest: resting attitude", "roll", pose.Roll, "pitch", pose.Pitch)
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	fmt.Println(string(out))
	if path := c.String("out"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	if !rep.Passed {
		return cli.Exit("self-test failed", 2)
	}
	return nil
}
