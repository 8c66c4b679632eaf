// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/config"
	"github.com/relabs-tech/flight_board/internal/telemetry"
)

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed, color.Bold)
)

// consolePrinter writes one block of lines per snapshot.
type consolePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *consolePrinter) print(s telemetry.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, formatSnapshot(s))
}

func formatSnapshot(s telemetry.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s cycle=%d micros=%d\n", labelColor.Sprint("[BOARD]"), s.Board, s.Cycle, s.Micros)
	fmt.Fprintf(&b, "%s ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n", labelColor.Sprint("[POSE] "), s.Pose.Roll, s.Pose.Pitch, s.Pose.Yaw)
	fmt.Fprintf(&b, "%s ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d\n", labelColor.Sprint("[IMU]  "),
		s.IMU.Ax, s.IMU.Ay, s.IMU.Az, s.IMU.Gx, s.IMU.Gy, s.IMU.Gz)
	fmt.Fprintf(&b, "%s %v\n", labelColor.Sprint("[RC]   "), s.RC)
	fmt.Fprintf(&b, "%s %v\n", labelColor.Sprint("[MOTOR]"), s.Motors)

	status := okColor.Sprintf("ok msp=%d", s.MSPFrames)
	if s.Errors > 0 {
		status = errColor.Sprintf("errors=%d last=%q msp=%d", s.Errors, s.LastError, s.MSPFrames)
	}
	fmt.Fprintf(&b, "%s %s\n", labelColor.Sprint("[STAT] "), status)
	return b.String()
}

// RunConsoleMQTT prints every telemetry snapshot of the configured board
// until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, w io.Writer, logger *zap.SugaredLogger) error {
	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infow("console: connected to MQTT broker", "broker", cfg.MQTTBroker)

	topic := telemetry.Topic(cfg.TopicTelemetry, cfg.BoardName)
	p := &consolePrinter{w: w}
	if err := telemetry.Subscribe(client, topic, logger, p.print); err != nil {
		return err
	}
	logger.Infow("console: subscribed", "topic", topic)

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}
