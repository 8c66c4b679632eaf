// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package linuxboard

import (
	"context"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/serialbuf"
)

func openSerial(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", port)
	}
	return p, nil
}

// serialLink moves bytes between a UART and the board's FIFOs. The reader
// goroutine fills rx; the writer goroutine drains tx whenever it signals.
type serialLink struct {
	port   io.ReadWriteCloser
	rx     *serialbuf.FIFO
	tx     *serialbuf.FIFO
	logger *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startSerialLink(port io.ReadWriteCloser, rx, tx *serialbuf.FIFO, logger *zap.SugaredLogger) *serialLink {
	ctx, cancel := context.WithCancel(context.Background())
	l := &serialLink{port: port, rx: rx, tx: tx, logger: logger, cancel: cancel}
	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		l.readLoop(ctx)
	}()
	go func() {
		defer l.wg.Done()
		l.writeLoop(ctx)
	}()
	return l
}

func (l *serialLink) readLoop(ctx context.Context) {
	buf := make([]byte, 256)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			if kept := l.rx.Push(buf[:n]); kept < n {
				l.logger.Warnw("linuxboard: serial rx overflow", "dropped", n-kept)
			}
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				l.logger.Errorw("linuxboard: serial read", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (l *serialLink) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.tx.Readable():
		}
		out := l.tx.Drain()
		if len(out) == 0 {
			continue
		}
		if _, err := l.port.Write(out); err != nil {
			l.logger.Errorw("linuxboard: serial write", "error", err, "bytes", len(out))
		}
	}
}

// Close stops both goroutines. Closing the port unblocks the reader.
func (l *serialLink) Close() error {
	l.cancel()
	err := l.port.Close()
	l.wg.Wait()
	return err
}
