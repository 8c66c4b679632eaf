// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a stable error identifier. It is comparable and implements error so
// callers can use errors.Is(err, board.KindNoData).
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	KindSensorUnavailable Kind = "sensor_unavailable"
	KindBusError          Kind = "bus_error"
	KindIndexOutOfRange   Kind = "index_out_of_range"
	KindNotInitialized    Kind = "not_initialized"
	KindNoData            Kind = "no_data"
	KindTxOverflow        Kind = "tx_overflow"
	KindRebootFailed      Kind = "reboot_failed"
	KindUnsupported       Kind = "unsupported"

	// KindUnknown is returned by KindOf for errors that carry no Kind.
	KindUnknown Kind = "error"
)

// Error carries a Kind plus the failing operation and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op + ": " + string(e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind target against e.Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// NewError builds an *Error with a formatted message.
func NewError(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error around cause. It returns nil when cause is nil.
func WrapError(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind of err. nil yields "", errors without a Kind yield
// KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindUnknown
}

// ErrNotInitialized is a convenience for the common precondition failure.
func ErrNotInitialized(op string) error {
	return &Error{Kind: KindNotInitialized, Op: op}
}

// ErrIndex reports an out-of-range motor/channel index.
func ErrIndex(op string, index, count int) error {
	return NewError(KindIndexOutOfRange, op, "index %d, have %d", index, count)
}
