package net

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/peterkuimelis/crib/internal/log"
)

// Server hosts a scripted game for one TCP client.
type Server struct {
	Script *Script
	Port   string
	Out    io.Writer       // status lines; nil means stdout
	Logger log.EventLogger // nil means log.Discard
}

// Run waits for one client, then plays the script against it.
func (s *Server) Run(ctx context.Context) error {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", ":"+s.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	fmt.Fprintf(out, "Waiting for a player on port %s...\n", s.Port)

	// Accept exactly one connection
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accept: %w", err)
	}

	fmt.Fprintf(out, "Player connected from %s\n", conn.RemoteAddr())

	if err := Serve(ctx, NewStreamConn(conn), s.Script, s.Logger); err != nil {
		return err
	}
	fmt.Fprintf(out, "Script %q finished\n", s.Script.Name)
	return nil
}

// Serve plays script against one client connection and closes it when the
// script ends. A reply that does not match its expectation stops the script
// with ErrProtocolViolation.
func Serve(ctx context.Context, conn FrameConn, script *Script, logger log.EventLogger) error {
	nc := NewNetworkController(conn, logger)
	defer nc.Close()

	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	defer stop()

	for i, st := range script.Steps {
		switch {
		case st.Send != nil:
			if err := nc.Send(*st.Send); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		case st.Expect != nil:
			if _, err := nc.Expect(ctx, *st.Expect); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return nil
}
