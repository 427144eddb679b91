package net

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/peterkuimelis/crib/internal/game"
	"github.com/peterkuimelis/crib/internal/log"
)

// DefaultPollInterval bounds each connection poll in the discard phase.
const DefaultPollInterval = 20 * time.Millisecond

// errDisconnected unwinds a handler when the server ends the session.
var errDisconnected = errors.New("disconnected")

// FrameRecorder keeps a copy of every frame received from the server.
type FrameRecorder interface {
	Record(frame []byte) error
}

// ClientConfig holds the per-session settings of a Client.
type ClientConfig struct {
	Username     string
	PollInterval time.Duration   // zero means DefaultPollInterval
	Greeting     bool            // send Greeting before the first receive
	Logger       log.EventLogger // nil means log.Discard
	Recorder     FrameRecorder   // optional
}

// Client drives one game session over an established connection: it
// receives server messages, drops exact repeats, and answers prompts with
// input read from the terminal.
type Client struct {
	conn     FrameConn
	term     *Terminal
	username string
	poll     time.Duration
	greeting bool
	logger   log.EventLogger
	recorder FrameRecorder

	// last is the most recently handled message; nil before the first.
	last *ServerMessage
}

// NewClient builds a session driver over conn. Zero config fields take
// their defaults.
func NewClient(conn FrameConn, term *Terminal, cfg ClientConfig) *Client {
	c := &Client{
		conn:     conn,
		term:     term,
		username: cfg.Username,
		poll:     cfg.PollInterval,
		greeting: cfg.Greeting,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	if c.logger == nil {
		c.logger = log.Discard
	}
	return c
}

// Connect dials addr through d and runs a session on the connection.
func Connect(ctx context.Context, addr string, d *Dialer, term *Terminal, cfg ClientConfig) error {
	conn, err := d.Connect(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	term.Println("Connected")
	return NewClient(conn, term, cfg).Run(ctx)
}

// Run processes server messages until the server sends Disconnect, in which
// case it returns nil. Any transport failure or protocol violation ends the
// session with an error. Cancelling ctx closes the connection.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	if c.greeting {
		if err := c.send(NewGreeting()); err != nil {
			return err
		}
	}

	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		msg, err := c.decode(frame)
		if err != nil {
			return err
		}
		if msg.Kind == Disconnect {
			c.disconnected()
			return nil
		}
		if c.repeat(msg) {
			continue
		}
		c.last = &msg

		if err := c.dispatch(ctx, msg); err != nil {
			if errors.Is(err, errDisconnected) {
				return nil
			}
			return err
		}
	}
}

func (c *Client) decode(frame []byte) (ServerMessage, error) {
	if c.recorder != nil {
		if err := c.recorder.Record(frame); err != nil {
			c.term.Printf("Transcript disabled: %v\n", err)
			c.recorder = nil
		}
	}
	msg, err := DecodeServer(frame)
	if err != nil {
		c.logger.Log(log.NewProtocolErrorEvent(err))
		return ServerMessage{}, fmt.Errorf("decode frame: %w", err)
	}
	c.logger.Log(log.NewReceivedEvent(msg.Kind.String()))
	return msg, nil
}

// repeat reports whether msg equals the last handled message.
func (c *Client) repeat(msg ServerMessage) bool {
	if c.last == nil || !c.last.Equal(msg) {
		return false
	}
	c.logger.Log(log.NewSuppressedEvent(msg.Kind.String()))
	return true
}

func (c *Client) disconnected() {
	c.logger.Log(log.NewDisconnectedEvent())
	c.term.Println("Game has ended")
}

func (c *Client) send(m ClientMessage) error {
	frame, err := EncodeClient(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	if err := c.conn.WriteFrame(frame); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	c.logger.Log(log.NewSentEvent(m.Kind.String(), m.String()))
	return nil
}

func (c *Client) dispatch(ctx context.Context, msg ServerMessage) error {
	switch msg.Kind {
	case WaitName:
		return c.send(NewName(c.username))
	case WaitInitialCut:
		return c.confirm(ctx, "Press return to cut the deck")
	case WaitDeal:
		return c.confirm(ctx, "Press return to deal the hands")
	case WaitCutStarter:
		return c.confirm(ctx, "Press return to cut the starter card")
	case WaitDiscardOne:
		return c.discardPhase(ctx, msg.Kind, 1)
	case WaitDiscardTwo:
		return c.discardPhase(ctx, msg.Kind, 2)
	case WaitNibs:
		return c.nibs(ctx)
	case WaitPlay:
		return c.play(ctx, msg.Playable)
	case WaitPlayScore:
		return c.playScore(ctx)
	}

	line, ok := c.describe(msg)
	if !ok {
		err := violation("no handler for %s", msg.Kind)
		c.logger.Log(log.NewProtocolErrorEvent(err))
		return err
	}
	c.term.Println(line)
	return nil
}

// isPrompt reports whether kind asks this client for a reply.
func isPrompt(kind ServerKind) bool {
	switch kind {
	case WaitName, WaitInitialCut, WaitDeal, WaitDiscardOne, WaitDiscardTwo,
		WaitCutStarter, WaitNibs, WaitPlay, WaitPlayScore:
		return true
	}
	return false
}

// describe renders an informational message as a status line.
func (c *Client) describe(msg ServerMessage) (string, bool) {
	switch msg.Kind {
	case DeniedTableFull:
		return "The table is full", true
	case PlayerJoinNotification:
		return fmt.Sprintf("%s has joined the game; %d of %d", msg.Name, msg.Seat, msg.SeatTotal), true
	case InitialCutResult:
		if c.isMe(msg.Name) {
			return fmt.Sprintf("You cut a %s", msg.Card), true
		}
		return fmt.Sprintf("%s cut a %s", msg.Name, msg.Card), true
	case InitialCutSuccess:
		if c.isMe(msg.Name) {
			return "You won the cut.", true
		}
		return fmt.Sprintf("%s won the cut.", msg.Name), true
	case InitialCutFailure:
		return "There was a tie; redoing the cut", true
	case Dealing:
		return "The hands are being dealt", true
	case DealtHand:
		return "Your hand is: " + game.FormatHand(msg.Hand), true
	case DiscardPlacedOne:
		if c.isMe(msg.Name) {
			return "You placed your card in the discards", true
		}
		return fmt.Sprintf("%s placed their card in the discards", msg.Name), true
	case DiscardPlacedTwo:
		if c.isMe(msg.Name) {
			return "You placed your cards in the discards", true
		}
		return fmt.Sprintf("%s placed their cards in the discards", msg.Name), true
	case AllDiscards:
		return "All discards have been placed", true
	case CutStarter:
		if c.isMe(msg.Name) {
			return fmt.Sprintf("You cut the starter card, %s", msg.Card), true
		}
		return fmt.Sprintf("%s cut the starter card, %s", msg.Name, msg.Card), true
	case Nibs:
		return "The dealer scores two for nibs", true
	case CardPlayed:
		who := msg.Name
		if c.isMe(msg.Name) {
			who = "You"
		}
		if len(msg.Scores) == 0 {
			return fmt.Sprintf("%s played %s", who, msg.Card), true
		}
		return fmt.Sprintf("%s played %s and claimed %s", who, msg.Card, game.FormatClaims(msg.Scores)), true
	case InvalidPlayScoring:
		return "That scoring claim was invalid", true
	case IncompletePlayScoring:
		return "That scoring claim missed points", true
	case ScoreUpdate:
		parts := make([]string, len(msg.Tally))
		for i, e := range msg.Tally {
			parts[i] = fmt.Sprintf("%s %d", e.Name, e.Points)
		}
		return "Scores: " + strings.Join(parts, ", "), true
	case Error:
		return "Error from server: " + msg.Name, true
	case Disconnect:
		return "Game has ended", true
	}
	return "", false
}

func (c *Client) isMe(name string) bool {
	return name == c.username
}

func (c *Client) confirm(ctx context.Context, prompt string) error {
	if _, err := c.term.Prompt(ctx, prompt); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	return c.send(NewConfirmation())
}

func (c *Client) nibs(ctx context.Context) error {
	for {
		line, err := c.term.Prompt(ctx, "The starter is a jack; does the dealer take nibs? (y/n)")
		if err != nil {
			return fmt.Errorf("nibs: %w", err)
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			c.logger.Log(log.NewInputAcceptedEvent("nibs yes"))
			return c.send(NewConfirmation())
		case "n", "no":
			c.logger.Log(log.NewInputAcceptedEvent("nibs no"))
			return c.send(NewDenial())
		}
		c.term.Println("Enter y or n")
	}
}

func (c *Client) play(ctx context.Context, playable []uint8) error {
	if len(playable) == 0 {
		if _, err := c.term.Prompt(ctx, "You have no playable card; press return to say go"); err != nil {
			return fmt.Errorf("play: %w", err)
		}
		return c.send(NewPlayGo())
	}

	list := formatIndices(playable)
	prompt := fmt.Sprintf("Enter the index of the card to play (%s), or press return to say go", list)
	for {
		line, err := c.term.Prompt(ctx, prompt)
		if err != nil {
			return fmt.Errorf("play: %w", err)
		}
		if line == "" {
			return c.send(NewPlayGo())
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n > 255 || !slices.Contains(playable, uint8(n)) {
			c.term.Printf("Playable indices are %s\n", list)
			continue
		}
		c.logger.Log(log.NewInputAcceptedEvent(fmt.Sprintf("play %d", n)))
		return c.send(NewPlayTurn(uint8(n)))
	}
}

func (c *Client) playScore(ctx context.Context) error {
	for {
		line, err := c.term.Prompt(ctx, "Enter your claims for that play (e.g. fifteen, pair, run3), or press return for none")
		if err != nil {
			return fmt.Errorf("play score: %w", err)
		}
		claims, err := game.ParseScoreClaims(line)
		if err != nil {
			c.term.Println(err)
			continue
		}
		c.logger.Log(log.NewInputAcceptedEvent("claims " + game.FormatClaims(claims)))
		return c.send(NewPlayScore(claims))
	}
}

func formatIndices(indices []uint8) string {
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(int(n))
	}
	return strings.Join(parts, ", ")
}

// discardPhase collects count local discards while it keeps reading the
// connection for other players' placements. The local discard is sent once,
// in a single message, as soon as every index has been entered; the phase
// ends on AllDiscards.
func (c *Client) discardPhase(ctx context.Context, wait ServerKind, count int) error {
	c.logger.Log(log.NewPhaseStartEvent(wait.String(), count))
	defer c.logger.Log(log.NewPhaseEndEvent(wait.String()))

	phaseCtx, cancel := context.WithCancel(ctx)
	indices := make(chan uint8, count)
	collected := make(chan error, 1)
	go func() {
		collected <- CollectDiscards(phaseCtx, c.term, count, indices)
	}()
	// The collector must be gone before the next prompt reads the terminal.
	defer func() {
		cancel()
		if collected != nil {
			<-collected
		}
	}()

	picked := make([]uint8, 0, count)
	sent := false
	for {
		frame, ok, err := c.conn.PollFrame(c.poll)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("poll frame: %w", err)
		}
		if ok {
			msg, err := c.decode(frame)
			if err != nil {
				return err
			}
			done, err := c.phaseMessage(msg)
			if err != nil || done {
				return err
			}
		}

	drain:
		for indices != nil {
			select {
			case idx, open := <-indices:
				if !open {
					indices = nil
					break drain
				}
				picked = append(picked, idx)
				c.logger.Log(log.NewInputAcceptedEvent(fmt.Sprintf("discard %d", idx)))
			default:
				break drain
			}
		}

		if collected != nil && len(picked) < count {
			select {
			case err := <-collected:
				collected = nil
				if err != nil {
					return fmt.Errorf("collect discards: %w", err)
				}
			default:
			}
		}

		if !sent && len(picked) == count {
			reply := NewDiscardOne(picked[0])
			if count == 2 {
				reply = NewDiscardTwo(picked[0], picked[1])
			}
			if err := c.send(reply); err != nil {
				return err
			}
			sent = true
		}
	}
}

// phaseMessage handles one message received during the discard phase and
// reports whether the phase is over.
func (c *Client) phaseMessage(msg ServerMessage) (bool, error) {
	if msg.Kind == Disconnect {
		c.disconnected()
		return true, errDisconnected
	}
	if c.repeat(msg) {
		return false, nil
	}
	c.last = &msg

	if isPrompt(msg.Kind) {
		err := violation("%s during the discard phase", msg.Kind)
		c.logger.Log(log.NewProtocolErrorEvent(err))
		return true, err
	}
	if line, ok := c.describe(msg); ok {
		c.term.Println(line)
	}
	return msg.Kind == AllDiscards, nil
}
