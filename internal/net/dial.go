package net

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/peterkuimelis/crib/internal/log"
)

const (
	DefaultConnectAttempts = 10
	DefaultConnectDelay    = time.Second
)

// DialFunc opens one transport connection to addr.
type DialFunc func(ctx context.Context, addr string) (FrameConn, error)

// Dialer opens a connection to the game server, retrying a bounded number
// of times with a fixed delay between attempts.
type Dialer struct {
	Attempts int
	Delay    time.Duration
	Dial     DialFunc        // nil means DialAddr
	Progress io.Writer       // receives the single growing retry line
	Logger   log.EventLogger // nil means log.Discard
}

// Connect returns the first connection that opens. It returns
// ErrNotAttempted if Attempts is not positive and ErrConnectFailed once
// every attempt failed.
func (d *Dialer) Connect(ctx context.Context, addr string) (FrameConn, error) {
	if d.Attempts <= 0 {
		return nil, ErrNotAttempted
	}
	dial := d.Dial
	if dial == nil {
		dial = DialAddr
	}
	logger := d.Logger
	if logger == nil {
		logger = log.Discard
	}
	progress := d.Progress
	if progress == nil {
		progress = io.Discard
	}

	var lastErr error
	for attempt := 1; attempt <= d.Attempts; attempt++ {
		logger.Log(log.NewConnectAttemptEvent(addr, attempt))
		conn, err := dial(ctx, addr)
		if err == nil {
			if attempt > 1 {
				fmt.Fprintln(progress)
			}
			logger.Log(log.NewConnectedEvent(addr, attempt))
			return conn, nil
		}
		lastErr = err

		if attempt == 1 {
			fmt.Fprint(progress, "Failed to connect; retrying")
		} else {
			fmt.Fprint(progress, ".")
		}
		if attempt == d.Attempts {
			break
		}

		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			fmt.Fprintln(progress)
			return nil, ctx.Err()
		}
	}

	fmt.Fprintln(progress)
	logger.Log(log.NewConnectFailedEvent(addr, d.Attempts, lastErr))
	return nil, fmt.Errorf("%w to %s after %d attempts: %w", ErrConnectFailed, addr, d.Attempts, lastErr)
}

// DialAddr dials ws:// and wss:// URLs as WebSocket connections and
// anything else as a TCP host:port.
func DialAddr(ctx context.Context, addr string) (FrameConn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		c, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, err
		}
		return NewWebSocketConn(c), nil
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn), nil
}
