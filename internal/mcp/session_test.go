package mcp

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterkuimelis/crib/internal/config"
	cribnet "github.com/peterkuimelis/crib/internal/net"
)

func TestAgentInputQueuesLines(t *testing.T) {
	in := newAgentInput()
	if err := in.SendLine("3"); err != nil {
		t.Fatal(err)
	}
	if err := in.SendLine(""); err != nil {
		t.Fatal(err)
	}
	in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "3\n\n" {
		t.Errorf("Expected %q, got %q", "3\n\n", data)
	}
	if err := in.SendLine("late"); err == nil {
		t.Error("Expected an error after close")
	}
}

func TestAgentOutputSignalsWrites(t *testing.T) {
	out := newAgentOutput()
	pending, changed := out.Pending()
	if pending {
		t.Fatal("Expected nothing pending")
	}

	go out.Write([]byte("hello\n"))
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("Expected a change signal")
	}

	if got := out.Drain(); got != "hello\n" {
		t.Errorf("Expected %q, got %q", "hello\n", got)
	}
	if pending, _ := out.Pending(); pending {
		t.Error("Expected nothing pending after drain")
	}
}

func TestWaitDuration(t *testing.T) {
	if waitDuration(-5) != 0 {
		t.Error("Expected negative waits to clamp to zero")
	}
	if waitDuration(maxWaitMS*2) != maxWaitMS*time.Millisecond {
		t.Error("Expected long waits to clamp")
	}
}

// serveOnce plays script to the first TCP client on a loopback port.
func serveOnce(t *testing.T, script *cribnet.Script) (string, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	errc := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errc <- err
			return
		}
		errc <- cribnet.Serve(context.Background(), cribnet.NewStreamConn(c), script, nil)
	}()
	return ln.Addr().String(), errc
}

// readUntil collects session output until it contains want or the session
// ends.
func readUntil(t *testing.T, s *Session, want string) (string, *ToolResponse) {
	t.Helper()
	var all strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := s.ReadOutput(context.Background(), 200*time.Millisecond)
		all.WriteString(resp.Output)
		if strings.Contains(all.String(), want) || resp.Done {
			return all.String(), resp
		}
	}
	t.Fatalf("Expected %q in output, got:\n%s", want, all.String())
	return "", nil
}

func TestSessionPlaysScript(t *testing.T) {
	addr, served := serveOnce(t, cribnet.ScriptFromMessages("mcp", []cribnet.ServerMessage{
		cribnet.Signal(cribnet.WaitName),
		cribnet.Signal(cribnet.WaitDeal),
		cribnet.Signal(cribnet.Dealing),
		cribnet.Signal(cribnet.Disconnect),
	}))

	c := config.Default()
	c.Connect.Attempts = 1
	s, err := StartSession("erin", addr, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	out, _ := readUntil(t, s, "Press return to deal the hands")
	if !strings.HasPrefix(out, "Connected\n") {
		t.Errorf("Expected the connect line first, got:\n%s", out)
	}

	if err := s.SendLine(""); err != nil {
		t.Fatalf("send: %v", err)
	}
	out, resp := readUntil(t, s, "Game has ended")
	if !strings.Contains(out, "The hands are being dealt") {
		t.Errorf("Expected the dealing line, got:\n%s", out)
	}

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	if resp.Error != "" {
		t.Errorf("Expected a clean end, got %q", resp.Error)
	}
	if err := <-served; err != nil {
		t.Errorf("script: %v", err)
	}
	if s.SendLine("more") == nil {
		t.Error("Expected input to be refused after the session ended")
	}
}

func TestSessionConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := config.Default()
	c.Connect.Attempts = 1
	s, err := StartSession("erin", addr, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-s.done

	resp := s.response()
	if !resp.Done || resp.Error == "" {
		t.Errorf("Expected a finished session with an error, got %+v", resp)
	}
	if !strings.Contains(resp.Output, "Disconnected or failed to connect to server") {
		t.Errorf("unexpected output %q", resp.Output)
	}
}
