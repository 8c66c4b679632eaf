// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Handler answers one request with a reply payload.
type Handler func(req Frame) ([]byte, error)

// ErrUnknownCommand is returned by Dispatch for unregistered commands.
var ErrUnknownCommand = errors.New("msp: unknown command")

// Dispatcher routes request frames to handlers by command.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Command]Handler
	logger   *zap.SugaredLogger
}

func NewDispatcher(logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{handlers: map[Command]Handler{}, logger: logger}
}

// Handle registers h for cmd, replacing any earlier handler.
func (d *Dispatcher) Handle(cmd Command, h Handler) {
	d.mu.Lock()
	d.handlers[cmd] = h
	d.mu.Unlock()
}

// Dispatch runs the handler for req and returns the encoded reply. Unknown
// commands and handler errors produce an empty error frame; the error is
// returned alongside it.
func (d *Dispatcher) Dispatch(req Frame) ([]byte, error) {
	d.mu.RLock()
	h, ok := d.handlers[req.Command]
	d.mu.RUnlock()

	var err error
	if !ok {
		err = errors.Wrapf(ErrUnknownCommand, "%s", req.Command)
	} else {
		var payload []byte
		if payload, err = h(req); err == nil {
			return Encode(FromBoard, req.Command, payload)
		}
		err = errors.Wrapf(err, "%s", req.Command)
	}
	d.logger.Debugw("msp: error reply", "command", req.Command.String(), "error", err)
	reply, encErr := Encode(ErrorReply, req.Command, nil)
	if encErr != nil {
		return nil, encErr
	}
	return reply, err
}
