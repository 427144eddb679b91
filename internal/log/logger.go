package log

import (
	"fmt"
	"io"
	"sync"
)

// EventLogger is the interface for logging session events.
type EventLogger interface {
	Log(event SessionEvent)
	Events() []SessionEvent
}

// --- MemoryLogger: stores events in memory for test assertions ---

type MemoryLogger struct {
	mu     sync.Mutex
	events []SessionEvent
	seq    int
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(event SessionEvent) {
	l.record(event)
}

// record stores event and returns it with its sequence number set.
func (l *MemoryLogger) record(event SessionEvent) SessionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)
	return event
}

func (l *MemoryLogger) Events() []SessionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SessionEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns all events matching the given type.
func (l *MemoryLogger) EventsOfType(t EventType) []SessionEvent {
	var result []SessionEvent
	for _, e := range l.Events() {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// --- TextLogger: writes human-readable lines to an io.Writer ---

type TextLogger struct {
	MemoryLogger
	w io.Writer
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w}
}

func (l *TextLogger) Log(event SessionEvent) {
	event = l.record(event)
	fmt.Fprintln(l.w, FormatEvent(event))
}

// --- Discard: drops everything ---

type discard struct{}

// Discard is an EventLogger that records nothing.
var Discard EventLogger = discard{}

func (discard) Log(SessionEvent)       {}
func (discard) Events() []SessionEvent { return nil }

// --- Formatting ---

// FormatEvent formats a single event as a human-readable line.
func FormatEvent(e SessionEvent) string {
	typ := e.Type.String()
	// Pad type to 14 chars for alignment
	for len(typ) < 14 {
		typ += " "
	}
	if e.Kind == "" {
		return fmt.Sprintf("#%-3d %s| %s", e.Seq, typ, e.Details)
	}
	return fmt.Sprintf("#%-3d %s| %s %s", e.Seq, typ, e.Kind, e.Details)
}

// --- Helper constructors for common events ---

func NewConnectAttemptEvent(addr string, attempt int) SessionEvent {
	return SessionEvent{
		Type:    EventConnectAttempt,
		Details: fmt.Sprintf("attempt %d to %s", attempt, addr),
	}
}

func NewConnectedEvent(addr string, attempts int) SessionEvent {
	return SessionEvent{
		Type:    EventConnected,
		Details: fmt.Sprintf("connected to %s after %d attempt(s)", addr, attempts),
	}
}

func NewConnectFailedEvent(addr string, attempts int, err error) SessionEvent {
	return SessionEvent{
		Type:    EventConnectFailed,
		Details: fmt.Sprintf("gave up on %s after %d attempt(s): %v", addr, attempts, err),
	}
}

func NewReceivedEvent(kind string) SessionEvent {
	return SessionEvent{Type: EventReceived, Kind: kind}
}

func NewSuppressedEvent(kind string) SessionEvent {
	return SessionEvent{
		Type:    EventSuppressed,
		Kind:    kind,
		Details: "repeat of previous message",
	}
}

func NewSentEvent(kind string, details string) SessionEvent {
	return SessionEvent{Type: EventSent, Kind: kind, Details: details}
}

func NewPhaseStartEvent(kind string, count int) SessionEvent {
	return SessionEvent{
		Type:    EventPhaseStart,
		Kind:    kind,
		Details: fmt.Sprintf("collecting %d discard(s)", count),
	}
}

func NewPhaseEndEvent(kind string) SessionEvent {
	return SessionEvent{Type: EventPhaseEnd, Kind: kind}
}

func NewInputAcceptedEvent(details string) SessionEvent {
	return SessionEvent{Type: EventInputAccepted, Details: details}
}

func NewDisconnectedEvent() SessionEvent {
	return SessionEvent{Type: EventDisconnected, Details: "server ended the session"}
}

func NewProtocolErrorEvent(err error) SessionEvent {
	return SessionEvent{Type: EventProtocolError, Details: err.Error()}
}
