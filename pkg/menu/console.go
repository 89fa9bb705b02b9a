// Package menu implements the interactive maintenance menu on the device
// console.
package menu

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/censys/bike-scanner/pkg/clock"
)

// ErrIdle is returned by Next when no key arrives within the timeout.
var ErrIdle = errors.New("console idle")

// Console turns a byte stream into keystrokes the duty cycle can poll
// without blocking.
type Console struct {
	keys chan byte
}

// NewConsole starts reading r in the background. Line endings are dropped.
func NewConsole(r io.Reader) *Console {
	c := &Console{keys: make(chan byte, 64)}
	go c.read(bufio.NewReader(r))
	return c
}

func (c *Console) read(r *bufio.Reader) {
	defer close(c.keys)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if b == '\r' || b == '\n' {
			continue
		}
		c.keys <- b
	}
}

// Poll returns a pending key, if any.
func (c *Console) Poll() (byte, bool) {
	select {
	case b, ok := <-c.keys:
		return b, ok
	default:
		return 0, false
	}
}

// Buffered is the number of keys read but not yet consumed.
func (c *Console) Buffered() int { return len(c.keys) }

// Next waits up to timeout, measured on clk, for a key. A key already
// buffered is returned without waiting. It returns io.EOF once the input is
// exhausted.
func (c *Console) Next(ctx context.Context, clk clock.Clock, timeout time.Duration) (byte, error) {
	select {
	case b, ok := <-c.keys:
		return key(b, ok)
	default:
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	idle := make(chan error, 1)
	go func() { idle <- clk.Sleep(waitCtx, timeout) }()

	select {
	case b, ok := <-c.keys:
		return key(b, ok)
	case err := <-idle:
		if err != nil {
			return 0, err
		}
		return 0, ErrIdle
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func key(b byte, ok bool) (byte, error) {
	if !ok {
		return 0, io.EOF
	}
	return b, nil
}
