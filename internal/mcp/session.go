package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peterkuimelis/crib/internal/config"
	"github.com/peterkuimelis/crib/internal/log"
	cribnet "github.com/peterkuimelis/crib/internal/net"
	"github.com/peterkuimelis/crib/internal/transcript"
)

// settleDelay is how long output must stay quiet before a read returns it.
const settleDelay = 50 * time.Millisecond

// ToolResponse is the JSON envelope returned by all MCP tools.
type ToolResponse struct {
	Session string `json:"session"`
	Output  string `json:"output"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
	Events  int    `json:"events"`
}

// Session is one client session whose terminal is driven by the agent:
// the agent's input lines are the player's keystrokes and the terminal
// output is buffered until the agent reads it.
type Session struct {
	ID   string
	Name string
	Addr string

	input  *agentInput
	output *agentOutput
	events *log.ZeroLogger
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// StartSession connects to addr as name in the background.
func StartSession(name, addr string, cfg config.Config, zl zerolog.Logger) (*Session, error) {
	var recorder cribnet.FrameRecorder
	var store *transcript.Store
	if cfg.Transcript != "" {
		var err error
		if store, err = transcript.Open(cfg.Transcript, zl); err != nil {
			return nil, err
		}
		recorder = store
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     id,
		Name:   name,
		Addr:   addr,
		input:  newAgentInput(),
		output: newAgentOutput(),
		events: log.NewZeroLogger(zl.With().Str("session", id).Logger()),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	term := cribnet.NewTerminal(s.input, s.output)
	dialer := &cribnet.Dialer{
		Attempts: cfg.Connect.Attempts,
		Delay:    cfg.Connect.Delay,
		Progress: term.Writer(),
		Logger:   s.events,
	}
	go func() {
		defer close(s.done)
		if store != nil {
			defer store.Close()
		}
		err := cribnet.Connect(ctx, addr, dialer, term, cribnet.ClientConfig{
			Username:     name,
			PollInterval: cfg.PollInterval,
			Greeting:     cfg.Greeting,
			Logger:       s.events,
			Recorder:     recorder,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			term.Println("Disconnected or failed to connect to server")
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()
	return s, nil
}

// SendLine types one line into the session's terminal.
func (s *Session) SendLine(line string) error {
	if s.Done() {
		return fmt.Errorf("session has ended")
	}
	return s.input.SendLine(line)
}

// Done reports whether the session loop has returned.
func (s *Session) Done() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ReadOutput waits up to wait for terminal output, lets it settle, and
// returns it with the session status.
func (s *Session) ReadOutput(ctx context.Context, wait time.Duration) *ToolResponse {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()

wait:
	for {
		pending, changed := s.output.Pending()
		if pending {
			select {
			case <-changed:
				continue
			case <-time.After(settleDelay):
				break wait
			case <-timeout.C:
				break wait
			case <-s.done:
				break wait
			case <-ctx.Done():
				break wait
			}
		}
		select {
		case <-changed:
		case <-s.done:
			break wait
		case <-timeout.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}
	return s.response()
}

func (s *Session) response() *ToolResponse {
	resp := &ToolResponse{
		Session: s.ID,
		Output:  s.output.Drain(),
		Done:    s.Done(),
		Events:  len(s.events.Events()),
	}
	if resp.Done {
		s.mu.Lock()
		if s.err != nil {
			resp.Error = s.err.Error()
		}
		s.mu.Unlock()
	}
	return resp
}

// Stop cancels the session and waits for it to end.
func (s *Session) Stop() *ToolResponse {
	s.cancel()
	s.input.Close()
	<-s.done
	return s.response()
}

// respondJSON marshals a ToolResponse to a JSON string.
func respondJSON(resp *ToolResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
