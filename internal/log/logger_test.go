package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMemoryLoggerSequence(t *testing.T) {
	l := NewMemoryLogger()
	l.Log(NewReceivedEvent("wait_name"))
	l.Log(NewSentEvent("name", "name{alice}"))
	l.Log(NewReceivedEvent("wait_name"))

	events := l.Events()
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != i+1 {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}
	if got := len(l.EventsOfType(EventReceived)); got != 2 {
		t.Errorf("Expected 2 received events, got %d", got)
	}

	// Events returns a copy.
	events[0].Kind = "changed"
	if l.Events()[0].Kind != "wait_name" {
		t.Error("Expected Events to return a copy")
	}
}

func TestTextLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf)
	l.Log(NewSuppressedEvent("dealing"))
	l.Log(NewDisconnectedEvent())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "#1") || !strings.Contains(lines[0], "Suppressed") || !strings.Contains(lines[0], "dealing") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "#2") || !strings.Contains(lines[1], "server ended the session") {
		t.Errorf("unexpected second line %q", lines[1])
	}
	var want strings.Builder
	for _, e := range l.Events() {
		want.WriteString(FormatEvent(e) + "\n")
	}
	if want.String() != buf.String() {
		t.Errorf("Expected the logged lines to match FormatEvent:\n%s\nvs\n%s", want.String(), buf.String())
	}
}

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewZeroLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Log(NewReceivedEvent("dealing")) // debug, filtered
	l.Log(NewProtocolErrorEvent(errors.New("bad frame")))

	if got := len(l.Events()); got != 2 {
		t.Errorf("Expected both events kept in memory, got %d", got)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected one line above debug, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["level"] != "error" || rec["event"] != "ProtocolError" || rec["message"] != "bad frame" {
		t.Errorf("unexpected record %v", rec)
	}
	if rec["seq"] != float64(2) {
		t.Errorf("Expected seq 2, got %v", rec["seq"])
	}
}

func TestDiscard(t *testing.T) {
	Discard.Log(NewConnectedEvent("localhost:8080", 1))
	if Discard.Events() != nil {
		t.Error("Expected Discard to keep nothing")
	}
}
