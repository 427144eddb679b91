package net

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/peterkuimelis/crib/internal/game"
)

// Frame layout: a 2-byte big-endian body length, the protowire-encoded body,
// then zero padding up to FrameSize. Both ends must agree on FrameSize.
const (
	FrameSize   = 256
	frameHeader = 2
	MaxBodySize = FrameSize - frameHeader
)

// Body field numbers. Numbers are written one tag per value (not packed) so
// that their order is the payload order.
const (
	fieldKind   protowire.Number = 1
	fieldText   protowire.Number = 2
	fieldNumber protowire.Number = 3
	fieldCard   protowire.Number = 4
	fieldScore  protowire.Number = 5
	fieldTally  protowire.Number = 6
)

// Nested field numbers for cards, score events and tally entries.
const (
	fieldFirst  protowire.Number = 1
	fieldSecond protowire.Number = 2
)

const anyCount = -1

// shape is the payload a kind carries. Zero value means no payload.
type shape struct {
	text    bool
	numbers int // exact count or anyCount
	cards   int // exact count or anyCount
	scores  bool
	tally   bool
}

var serverShapes = [serverKindCount]shape{
	PlayerJoinNotification: {text: true, numbers: 2},
	InitialCutResult:       {text: true, cards: 1},
	InitialCutSuccess:      {text: true},
	DealtHand:              {cards: anyCount},
	DiscardPlacedOne:       {text: true},
	DiscardPlacedTwo:       {text: true},
	CutStarter:             {text: true, cards: 1},
	CardPlayed:             {text: true, cards: 1, scores: true},
	WaitPlay:               {numbers: anyCount},
	ScoreUpdate:            {tally: true},
	Error:                  {text: true},
}

var clientShapes = [clientKindCount]shape{
	Name:       {text: true},
	DiscardOne: {numbers: 1},
	DiscardTwo: {numbers: 2},
	PlayTurn:   {numbers: anyCount},
	PlayScore:  {scores: true},
}

// body is the field set shared by both message directions.
type body struct {
	kind    uint64
	hasKind bool
	text    string
	numbers []uint64
	cards   []game.Card
	scores  []game.ScoreEvent
	tally   []ScoreEntry
}

// --- Encoding ---

// EncodeServer encodes a server message into one frame.
func EncodeServer(m ServerMessage) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("encode %s: not a protocol kind", m.Kind)
	}
	b := body{kind: uint64(m.Kind), hasKind: true, text: m.Name}
	switch m.Kind {
	case PlayerJoinNotification:
		b.numbers = []uint64{uint64(m.Seat), uint64(m.SeatTotal)}
	case InitialCutResult, CutStarter:
		b.cards = []game.Card{m.Card}
	case CardPlayed:
		b.cards = []game.Card{m.Card}
		b.scores = m.Scores
	case DealtHand:
		b.cards = m.Hand
	case WaitPlay:
		for _, i := range m.Playable {
			b.numbers = append(b.numbers, uint64(i))
		}
	case ScoreUpdate:
		b.tally = m.Tally
	}
	if !serverShapes[m.Kind].text {
		b.text = ""
	}
	return frame(b.marshal(), m.Kind.String())
}

// EncodeClient encodes a client message into one frame.
func EncodeClient(m ClientMessage) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("encode %s: not a protocol kind", m.Kind)
	}
	b := body{kind: uint64(m.Kind), hasKind: true}
	switch m.Kind {
	case Name:
		b.text = m.Name
	case DiscardOne:
		b.numbers = []uint64{uint64(m.Index)}
	case DiscardTwo:
		b.numbers = []uint64{uint64(m.Index), uint64(m.IndexTwo)}
	case PlayTurn:
		if m.HasIndex {
			b.numbers = []uint64{uint64(m.Index)}
		}
	case PlayScore:
		b.scores = m.Scores
	}
	return frame(b.marshal(), m.Kind.String())
}

func frame(payload []byte, kind string) ([]byte, error) {
	if len(payload) > MaxBodySize {
		return nil, fmt.Errorf("encode %s: %w (%d bytes, limit %d)", kind, ErrFrameTooLarge, len(payload), MaxBodySize)
	}
	f := make([]byte, FrameSize)
	binary.BigEndian.PutUint16(f, uint16(len(payload)))
	copy(f[frameHeader:], payload)
	return f, nil
}

func (b *body) marshal() []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldKind, protowire.VarintType)
	out = protowire.AppendVarint(out, b.kind)
	if b.text != "" {
		out = protowire.AppendTag(out, fieldText, protowire.BytesType)
		out = protowire.AppendString(out, b.text)
	}
	for _, n := range b.numbers {
		out = protowire.AppendTag(out, fieldNumber, protowire.VarintType)
		out = protowire.AppendVarint(out, n)
	}
	for _, c := range b.cards {
		out = protowire.AppendTag(out, fieldCard, protowire.BytesType)
		out = protowire.AppendBytes(out, pair(uint64(c.Rank), uint64(c.Suit)))
	}
	for _, s := range b.scores {
		out = protowire.AppendTag(out, fieldScore, protowire.BytesType)
		out = protowire.AppendBytes(out, pair(uint64(s.Kind), uint64(s.Points)))
	}
	for _, t := range b.tally {
		var nested []byte
		nested = protowire.AppendTag(nested, fieldFirst, protowire.BytesType)
		nested = protowire.AppendString(nested, t.Name)
		nested = protowire.AppendTag(nested, fieldSecond, protowire.VarintType)
		nested = protowire.AppendVarint(nested, uint64(t.Points))
		out = protowire.AppendTag(out, fieldTally, protowire.BytesType)
		out = protowire.AppendBytes(out, nested)
	}
	return out
}

func pair(first, second uint64) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldFirst, protowire.VarintType)
	out = protowire.AppendVarint(out, first)
	out = protowire.AppendTag(out, fieldSecond, protowire.VarintType)
	out = protowire.AppendVarint(out, second)
	return out
}

// --- Decoding ---

// DecodeServer decodes one frame into a server message. Every failure
// wraps ErrProtocolViolation.
func DecodeServer(f []byte) (ServerMessage, error) {
	b, err := unframe(f)
	if err != nil {
		return ServerMessage{}, err
	}
	if b.kind >= uint64(serverKindCount) {
		return ServerMessage{}, violation("unknown server message kind %d", b.kind)
	}
	kind := ServerKind(b.kind)
	if err := b.check(serverShapes[kind], kind.String()); err != nil {
		return ServerMessage{}, err
	}

	m := ServerMessage{Kind: kind, Name: b.text}
	switch kind {
	case PlayerJoinNotification:
		if b.numbers[0] > 255 || b.numbers[1] > 255 {
			return ServerMessage{}, violation("%s: seat out of range", kind)
		}
		m.Seat, m.SeatTotal = uint8(b.numbers[0]), uint8(b.numbers[1])
	case InitialCutResult, CutStarter:
		m.Card = b.cards[0]
	case CardPlayed:
		m.Card = b.cards[0]
		m.Scores = b.scores
	case DealtHand:
		m.Hand = b.cards
	case WaitPlay:
		for _, n := range b.numbers {
			if n > 255 {
				return ServerMessage{}, violation("%s: index %d out of range", kind, n)
			}
			m.Playable = append(m.Playable, uint8(n))
		}
	case ScoreUpdate:
		m.Tally = b.tally
	}
	return m, nil
}

// DecodeClient decodes one frame into a client message. Every failure
// wraps ErrProtocolViolation.
func DecodeClient(f []byte) (ClientMessage, error) {
	b, err := unframe(f)
	if err != nil {
		return ClientMessage{}, err
	}
	if b.kind >= uint64(clientKindCount) {
		return ClientMessage{}, violation("unknown client message kind %d", b.kind)
	}
	kind := ClientKind(b.kind)
	if err := b.check(clientShapes[kind], kind.String()); err != nil {
		return ClientMessage{}, err
	}
	for _, n := range b.numbers {
		if n > 255 {
			return ClientMessage{}, violation("%s: index %d out of range", kind, n)
		}
	}

	m := ClientMessage{Kind: kind, Name: b.text}
	switch kind {
	case DiscardOne:
		m.Index = uint8(b.numbers[0])
	case DiscardTwo:
		m.Index, m.IndexTwo = uint8(b.numbers[0]), uint8(b.numbers[1])
	case PlayTurn:
		if len(b.numbers) > 1 {
			return ClientMessage{}, violation("%s: more than one index", kind)
		}
		if len(b.numbers) == 1 {
			m.Index, m.HasIndex = uint8(b.numbers[0]), true
		}
	case PlayScore:
		m.Scores = b.scores
	}
	return m, nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrProtocolViolation}, args...)...)
}

func unframe(f []byte) (body, error) {
	if len(f) != FrameSize {
		return body{}, violation("frame is %d bytes, want %d", len(f), FrameSize)
	}
	n := int(binary.BigEndian.Uint16(f))
	if n == 0 || n > MaxBodySize {
		return body{}, violation("body length %d out of range", n)
	}
	for _, p := range f[frameHeader+n:] {
		if p != 0 {
			return body{}, violation("non-zero frame padding")
		}
	}
	return unmarshalBody(f[frameHeader : frameHeader+n])
}

func unmarshalBody(data []byte) (body, error) {
	var b body
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return body{}, violation("tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldKind:
			v, m, err := consumeVarint(typ, data)
			if err != nil {
				return body{}, err
			}
			if b.hasKind {
				return body{}, violation("kind repeated")
			}
			b.kind, b.hasKind = v, true
			data = data[m:]
		case fieldText:
			v, m, err := consumeBytes(typ, data)
			if err != nil {
				return body{}, err
			}
			b.text = string(v)
			data = data[m:]
		case fieldNumber:
			v, m, err := consumeVarint(typ, data)
			if err != nil {
				return body{}, err
			}
			b.numbers = append(b.numbers, v)
			data = data[m:]
		case fieldCard:
			v, m, err := consumeBytes(typ, data)
			if err != nil {
				return body{}, err
			}
			rank, suit, err := unmarshalPair(v)
			if err != nil {
				return body{}, err
			}
			c := game.Card{Rank: game.Rank(rank), Suit: game.Suit(suit)}
			if rank > 255 || suit > 255 || !c.Valid() {
				return body{}, violation("invalid card rank %d suit %d", rank, suit)
			}
			b.cards = append(b.cards, c)
			data = data[m:]
		case fieldScore:
			v, m, err := consumeBytes(typ, data)
			if err != nil {
				return body{}, err
			}
			kind, points, err := unmarshalPair(v)
			if err != nil {
				return body{}, err
			}
			if kind > 255 || !game.ScoreKind(kind).Valid() || points > 255 {
				return body{}, violation("invalid score event %d/%d", kind, points)
			}
			b.scores = append(b.scores, game.ScoreEvent{Kind: game.ScoreKind(kind), Points: uint8(points)})
			data = data[m:]
		case fieldTally:
			v, m, err := consumeBytes(typ, data)
			if err != nil {
				return body{}, err
			}
			entry, err := unmarshalTally(v)
			if err != nil {
				return body{}, err
			}
			b.tally = append(b.tally, entry)
			data = data[m:]
		default:
			return body{}, violation("unknown field %d", num)
		}
	}
	if !b.hasKind {
		return body{}, violation("missing kind")
	}
	return b, nil
}

func consumeVarint(typ protowire.Type, data []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, violation("wire type %d, want varint", typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, violation("varint: %v", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, data []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, violation("wire type %d, want bytes", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, violation("bytes: %v", protowire.ParseError(n))
	}
	return v, n, nil
}

func unmarshalPair(data []byte) (first, second uint64, err error) {
	var seen [3]bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, 0, violation("nested tag: %v", protowire.ParseError(n))
		}
		data = data[n:]
		if num != fieldFirst && num != fieldSecond {
			return 0, 0, violation("unknown nested field %d", num)
		}
		v, m, err := consumeVarint(typ, data)
		if err != nil {
			return 0, 0, err
		}
		data = data[m:]
		if num == fieldFirst {
			first = v
		} else {
			second = v
		}
		seen[num] = true
	}
	if !seen[fieldFirst] || !seen[fieldSecond] {
		return 0, 0, violation("incomplete nested value")
	}
	return first, second, nil
}

func unmarshalTally(data []byte) (ScoreEntry, error) {
	var e ScoreEntry
	var points uint64
	var hasPoints bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ScoreEntry{}, violation("tally tag: %v", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldFirst:
			v, m, err := consumeBytes(typ, data)
			if err != nil {
				return ScoreEntry{}, err
			}
			e.Name = string(v)
			data = data[m:]
		case fieldSecond:
			v, m, err := consumeVarint(typ, data)
			if err != nil {
				return ScoreEntry{}, err
			}
			points, hasPoints = v, true
			data = data[m:]
		default:
			return ScoreEntry{}, violation("unknown tally field %d", num)
		}
	}
	if !hasPoints || points > 255 {
		return ScoreEntry{}, violation("tally entry for %q has no valid points", e.Name)
	}
	e.Points = uint8(points)
	return e, nil
}

// check validates the decoded fields against the kind's payload shape.
func (b *body) check(s shape, kind string) error {
	if !s.text && b.text != "" {
		return violation("%s: unexpected text", kind)
	}
	if err := checkCount(len(b.numbers), s.numbers, kind, "numbers"); err != nil {
		return err
	}
	if err := checkCount(len(b.cards), s.cards, kind, "cards"); err != nil {
		return err
	}
	if !s.scores && len(b.scores) > 0 {
		return violation("%s: unexpected score events", kind)
	}
	if !s.tally && len(b.tally) > 0 {
		return violation("%s: unexpected tally", kind)
	}
	return nil
}

func checkCount(got, want int, kind, what string) error {
	if want == anyCount || got == want {
		return nil
	}
	return violation("%s: %d %s, want %d", kind, got, what, want)
}
