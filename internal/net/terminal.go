package net

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal is the player's line-oriented console. Writes are serialized so
// the session loop and the discard collector can print concurrently. Input
// is read by one pump goroutine so that a waiting prompt can be abandoned
// through its context.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	in    io.Reader
	lines chan string
	once  sync.Once
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:    in,
		out:   out,
		lines: make(chan string),
	}
}

func (t *Terminal) pump() {
	defer close(t.lines)
	sc := bufio.NewScanner(t.in)
	for sc.Scan() {
		t.lines <- sc.Text()
	}
}

// ReadLine waits for the next input line, without its newline and
// surrounding whitespace.
func (t *Terminal) ReadLine(ctx context.Context) (string, error) {
	t.once.Do(func() { go t.pump() })
	// select picks at random when both are ready; a cancelled reader must
	// leave the waiting line for the next one.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Prompt prints prompt on its own line and reads the answer.
func (t *Terminal) Prompt(ctx context.Context, prompt string) (string, error) {
	t.Println(prompt)
	return t.ReadLine(ctx)
}

func (t *Terminal) Println(a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, a...)
}

func (t *Terminal) Printf(format string, a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, a...)
}

// Writer returns a writer that shares the terminal's output lock, for
// progress output produced outside the session.
func (t *Terminal) Writer() io.Writer {
	return terminalWriter{t}
}

type terminalWriter struct{ t *Terminal }

func (w terminalWriter) Write(p []byte) (int, error) {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	return w.t.out.Write(p)
}
