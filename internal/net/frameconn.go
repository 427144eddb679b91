package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// FrameConn carries whole frames in both directions. Reads (ReadFrame and
// PollFrame) must come from one goroutine at a time, and so must writes; a
// reader and a writer may run concurrently. Close may be called at any time.
type FrameConn interface {
	// ReadFrame blocks until one complete frame has arrived.
	ReadFrame() ([]byte, error)
	// PollFrame waits at most wait for a frame. It returns ok=false with a
	// nil error when nothing complete arrived in time.
	PollFrame(wait time.Duration) (frame []byte, ok bool, err error)
	// WriteFrame sends one frame.
	WriteFrame(frame []byte) error
	Close() error
}

// --- Stream (TCP) ---

// streamConn frames a byte stream. Bytes of a frame that arrive across a
// poll deadline are kept until the rest of the frame shows up.
type streamConn struct {
	conn net.Conn
	buf  [FrameSize]byte
	n    int
}

// NewStreamConn wraps a stream connection such as TCP or net.Pipe.
func NewStreamConn(conn net.Conn) FrameConn {
	return &streamConn{conn: conn}
}

func (s *streamConn) ReadFrame() ([]byte, error) {
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear read deadline: %w", err)
	}
	return s.fill()
}

func (s *streamConn) PollFrame(wait time.Duration) ([]byte, bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return nil, false, fmt.Errorf("set read deadline: %w", err)
	}
	frame, err := s.fill()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return frame, true, nil
}

func (s *streamConn) fill() ([]byte, error) {
	for s.n < FrameSize {
		m, err := s.conn.Read(s.buf[s.n:])
		s.n += m
		if err != nil {
			if errors.Is(err, io.EOF) && s.n > 0 && s.n < FrameSize {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	frame := make([]byte, FrameSize)
	copy(frame, s.buf[:])
	s.n = 0
	return frame, nil
}

func (s *streamConn) WriteFrame(frame []byte) error {
	if len(frame) != FrameSize {
		return fmt.Errorf("write frame: %d bytes, want %d", len(frame), FrameSize)
	}
	_, err := s.conn.Write(frame)
	return err
}

func (s *streamConn) Close() error {
	return s.conn.Close()
}

// --- WebSocket ---

type wsRead struct {
	frame []byte
	err   error
}

// wsConn carries one frame per binary WebSocket message. A websocket read
// cannot be interrupted without closing the connection, so a single pump
// goroutine reads messages and PollFrame waits on its channel instead.
type wsConn struct {
	c      *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	reads  chan wsRead
	once   sync.Once
}

// NewWebSocketConn wraps an established WebSocket connection.
func NewWebSocketConn(c *websocket.Conn) FrameConn {
	ctx, cancel := context.WithCancel(context.Background())
	w := &wsConn{
		c:      c,
		ctx:    ctx,
		cancel: cancel,
		reads:  make(chan wsRead),
	}
	go w.pump()
	return w
}

func (w *wsConn) pump() {
	defer close(w.reads)
	for {
		typ, data, err := w.c.Read(w.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				err = io.EOF
			}
			w.deliver(wsRead{err: err})
			return
		}
		if typ != websocket.MessageBinary || len(data) != FrameSize {
			w.deliver(wsRead{err: violation("websocket message of %d bytes, want one binary frame", len(data))})
			return
		}
		if !w.deliver(wsRead{frame: data}) {
			return
		}
	}
}

func (w *wsConn) deliver(r wsRead) bool {
	select {
	case w.reads <- r:
		return true
	case <-w.ctx.Done():
		return false
	}
}

func (w *wsConn) ReadFrame() ([]byte, error) {
	r, ok := <-w.reads
	if !ok {
		return nil, io.EOF
	}
	return r.frame, r.err
}

func (w *wsConn) PollFrame(wait time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case r, ok := <-w.reads:
		if !ok {
			return nil, false, io.EOF
		}
		if r.err != nil {
			return nil, false, r.err
		}
		return r.frame, true, nil
	case <-timer.C:
		return nil, false, nil
	}
}

func (w *wsConn) WriteFrame(frame []byte) error {
	if len(frame) != FrameSize {
		return fmt.Errorf("write frame: %d bytes, want %d", len(frame), FrameSize)
	}
	return w.c.Write(w.ctx, websocket.MessageBinary, frame)
}

func (w *wsConn) Close() error {
	var err error
	w.once.Do(func() {
		err = w.c.Close(websocket.StatusNormalClosure, "")
		w.cancel()
	})
	return err
}
