package net

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peterkuimelis/crib/internal/log"
)

const testTimeout = 5 * time.Second

// safeBuffer collects terminal output written from several goroutines.
type safeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// harness wires a Client to an in-memory server end. Tests drive the
// server end either through a NetworkController, a script, or raw frames.
type harness struct {
	t      *testing.T
	peer   FrameConn
	client *Client
	out    *safeBuffer
	events *log.MemoryLogger
	done   chan error
	ctrl   *NetworkController
}

func newHarness(t *testing.T, input io.Reader, cfg ClientConfig) *harness {
	t.Helper()
	cconn, sconn := net.Pipe()
	h := &harness{
		t:      t,
		peer:   NewStreamConn(sconn),
		out:    &safeBuffer{},
		events: log.NewMemoryLogger(),
		done:   make(chan error, 1),
	}
	if cfg.Username == "" {
		cfg.Username = "alice"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	cfg.Logger = h.events
	h.client = NewClient(NewStreamConn(cconn), NewTerminal(input, h.out), cfg)
	t.Cleanup(func() {
		cconn.Close()
		sconn.Close()
	})
	return h
}

// start runs the client; its connection end is closed when Run returns so
// that a stuck server write fails instead of hanging.
func (h *harness) start(ctx context.Context) {
	go func() {
		err := h.client.Run(ctx)
		h.client.conn.Close()
		h.done <- err
	}()
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(testTimeout):
		h.t.Fatal("client did not stop")
		return nil
	}
}

func (h *harness) controller() *NetworkController {
	if h.ctrl == nil {
		h.ctrl = NewNetworkController(h.peer, nil)
	}
	return h.ctrl
}

func (h *harness) send(msgs ...ServerMessage) {
	h.t.Helper()
	for _, m := range msgs {
		if err := h.controller().Send(m); err != nil {
			h.t.Fatalf("send %s: %v", m, err)
		}
	}
}

func (h *harness) expect(want ClientMessage) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	got, err := h.controller().Recv(ctx)
	if err != nil {
		h.t.Fatalf("Expected %s, got error %v", want, err)
	}
	if !got.Equal(want) {
		h.t.Fatalf("Expected %s, got %s", want, got)
	}
}

// serve plays script on the server end in the background.
func (h *harness) serve(ctx context.Context, script *Script) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, h.peer, script, nil) }()
	return errc
}

// sent lists the client messages sent so far, in order.
func (h *harness) sent() []string {
	var out []string
	for _, e := range h.events.EventsOfType(log.EventSent) {
		out = append(out, e.Details)
	}
	return out
}

// typist feeds terminal input line by line.
type typist struct {
	t  *testing.T
	pr *io.PipeReader
	pw *io.PipeWriter
}

func newTypist(t *testing.T) *typist {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	return &typist{t: t, pr: pr, pw: pw}
}

func (ty *typist) typeLines(lines ...string) {
	ty.t.Helper()
	for _, l := range lines {
		if _, err := io.WriteString(ty.pw, l+"\n"); err != nil {
			ty.t.Fatalf("type %q: %v", l, err)
		}
	}
}

// waitOutput blocks until the terminal output contains s.
func (h *harness) waitOutput(s string) {
	h.t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !strings.Contains(h.out.String(), s) {
		if time.Now().After(deadline) {
			h.t.Fatalf("Expected %q in output, got:\n%s", s, h.out.String())
		}
		time.Sleep(time.Millisecond)
	}
}
