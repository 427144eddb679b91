package net

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReadLineCancelledLeavesLine(t *testing.T) {
	term := NewTerminal(strings.NewReader("keep\n"), &safeBuffer{})

	// Start the pump and let it hold the line.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 100; i++ {
		if _, err := term.ReadLine(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("attempt %d: expected context.Canceled, got %v", i, err)
		}
	}

	line, err := term.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "keep" {
		t.Errorf("Expected %q, got %q", "keep", line)
	}
	if _, err := term.ReadLine(context.Background()); !errors.Is(err, ErrInputClosed) {
		t.Errorf("Expected ErrInputClosed at end of input, got %v", err)
	}
}

func TestPromptPrintsAndTrims(t *testing.T) {
	out := &safeBuffer{}
	term := NewTerminal(strings.NewReader("  bob \n"), out)

	line, err := term.Prompt(context.Background(), "Enter your desired username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "bob" {
		t.Errorf("Expected %q, got %q", "bob", line)
	}
	if out.String() != "Enter your desired username\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}
