package net

import (
	"context"
	"fmt"
	"sync"

	"github.com/peterkuimelis/crib/internal/log"
)

// NetworkController is the authority's end of one client connection. Client
// frames are read by a background goroutine so that the authority can keep
// sending while a client reply is in flight.
type NetworkController struct {
	conn   FrameConn
	logger log.EventLogger

	mu      sync.Mutex // serializes sends
	replies chan clientRead
	done    chan struct{}
	once    sync.Once
}

type clientRead struct {
	msg ClientMessage
	err error
}

// NewNetworkController starts reading client frames from conn.
func NewNetworkController(conn FrameConn, logger log.EventLogger) *NetworkController {
	if logger == nil {
		logger = log.Discard
	}
	nc := &NetworkController{
		conn:    conn,
		logger:  logger,
		replies: make(chan clientRead),
		done:    make(chan struct{}),
	}
	go nc.recvLoop()
	return nc
}

// recvLoop decodes client frames until the connection fails. Greetings
// carry nothing the authority acts on and are dropped here.
func (nc *NetworkController) recvLoop() {
	defer close(nc.replies)
	for {
		frame, err := nc.conn.ReadFrame()
		if err != nil {
			nc.deliver(clientRead{err: fmt.Errorf("read frame: %w", err)})
			return
		}
		msg, err := DecodeClient(frame)
		if err != nil {
			nc.logger.Log(log.NewProtocolErrorEvent(err))
			nc.deliver(clientRead{err: err})
			return
		}
		nc.logger.Log(log.NewReceivedEvent(msg.Kind.String()))
		if msg.Kind == Greeting {
			continue
		}
		if !nc.deliver(clientRead{msg: msg}) {
			return
		}
	}
}

func (nc *NetworkController) deliver(r clientRead) bool {
	select {
	case nc.replies <- r:
		return true
	case <-nc.done:
		return false
	}
}

// Send writes one server message.
func (nc *NetworkController) Send(msg ServerMessage) error {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	frame, err := EncodeServer(msg)
	if err != nil {
		return err
	}
	if err := nc.conn.WriteFrame(frame); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	nc.logger.Log(log.NewSentEvent(msg.Kind.String(), msg.String()))
	return nil
}

// Recv waits for the next client reply.
func (nc *NetworkController) Recv(ctx context.Context) (ClientMessage, error) {
	select {
	case r, ok := <-nc.replies:
		if !ok {
			return ClientMessage{}, fmt.Errorf("recv: connection closed")
		}
		return r.msg, r.err
	case <-ctx.Done():
		return ClientMessage{}, ctx.Err()
	}
}

// Expect waits for the next client reply and checks it against e.
func (nc *NetworkController) Expect(ctx context.Context, e Expectation) (ClientMessage, error) {
	msg, err := nc.Recv(ctx)
	if err != nil {
		return ClientMessage{}, err
	}
	if !e.Match(msg) {
		err := violation("client sent %s, want %s", msg, e)
		nc.logger.Log(log.NewProtocolErrorEvent(err))
		return msg, err
	}
	return msg, nil
}

// Close stops the reader and closes the connection.
func (nc *NetworkController) Close() error {
	var err error
	nc.once.Do(func() {
		close(nc.done)
		err = nc.conn.Close()
	})
	return err
}
