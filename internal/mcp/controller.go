package mcp

import (
	"bytes"
	"io"
	"sync"
)

// agentInput is the terminal input of an agent-driven session. Lines sent
// by the agent queue up until the session reads them, so a send never
// blocks on the session reaching a prompt.
type agentInput struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newAgentInput() *agentInput {
	in := &agentInput{}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// SendLine queues one line of input.
func (in *agentInput) SendLine(line string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return io.ErrClosedPipe
	}
	in.buf.WriteString(line)
	in.buf.WriteByte('\n')
	in.cond.Broadcast()
	return nil
}

func (in *agentInput) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for in.buf.Len() == 0 && !in.closed {
		in.cond.Wait()
	}
	if in.buf.Len() == 0 {
		return 0, io.EOF
	}
	return in.buf.Read(p)
}

// Close ends the input; queued lines are still delivered.
func (in *agentInput) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.cond.Broadcast()
	return nil
}

// agentOutput collects terminal output until the agent reads it.
type agentOutput struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	changed chan struct{}
}

func newAgentOutput() *agentOutput {
	return &agentOutput{changed: make(chan struct{})}
}

func (out *agentOutput) Write(p []byte) (int, error) {
	out.mu.Lock()
	defer out.mu.Unlock()
	n, err := out.buf.Write(p)
	close(out.changed)
	out.changed = make(chan struct{})
	return n, err
}

// Drain returns everything written since the last drain.
func (out *agentOutput) Drain() string {
	out.mu.Lock()
	defer out.mu.Unlock()
	s := out.buf.String()
	out.buf.Reset()
	return s
}

// Pending reports whether undrained output exists, and returns a channel
// closed on the next write.
func (out *agentOutput) Pending() (bool, <-chan struct{}) {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.buf.Len() > 0, out.changed
}
