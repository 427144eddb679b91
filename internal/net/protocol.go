package net

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/peterkuimelis/crib/internal/game"
)

// Message types for the fixed-frame binary protocol over TCP.

// --- Server → Client messages ---

// ServerKind identifies a server-to-client message. Values follow
// declaration order and are the tag written on the wire.
type ServerKind uint8

const (
	DeniedTableFull ServerKind = iota
	WaitName
	PlayerJoinNotification
	WaitInitialCut
	InitialCutResult
	InitialCutSuccess
	InitialCutFailure
	WaitDeal
	Dealing
	DealtHand
	WaitDiscardOne
	WaitDiscardTwo
	DiscardPlacedOne
	DiscardPlacedTwo
	AllDiscards
	WaitCutStarter
	CutStarter
	WaitNibs
	Nibs
	CardPlayed
	WaitPlay
	WaitPlayScore
	InvalidPlayScoring
	IncompletePlayScoring
	ScoreUpdate
	Error
	Disconnect

	serverKindCount
)

var serverKindNames = [serverKindCount]string{
	DeniedTableFull:        "denied_table_full",
	WaitName:               "wait_name",
	PlayerJoinNotification: "player_join",
	WaitInitialCut:         "wait_initial_cut",
	InitialCutResult:       "initial_cut_result",
	InitialCutSuccess:      "initial_cut_success",
	InitialCutFailure:      "initial_cut_failure",
	WaitDeal:               "wait_deal",
	Dealing:                "dealing",
	DealtHand:              "dealt_hand",
	WaitDiscardOne:         "wait_discard_one",
	WaitDiscardTwo:         "wait_discard_two",
	DiscardPlacedOne:       "discard_placed_one",
	DiscardPlacedTwo:       "discard_placed_two",
	AllDiscards:            "all_discards",
	WaitCutStarter:         "wait_cut_starter",
	CutStarter:             "cut_starter",
	WaitNibs:               "wait_nibs",
	Nibs:                   "nibs",
	CardPlayed:             "card_played",
	WaitPlay:               "wait_play",
	WaitPlayScore:          "wait_play_score",
	InvalidPlayScoring:     "invalid_play_scoring",
	IncompletePlayScoring:  "incomplete_play_scoring",
	ScoreUpdate:            "score_update",
	Error:                  "error",
	Disconnect:             "disconnect",
}

func (k ServerKind) String() string {
	if k.Valid() {
		return serverKindNames[k]
	}
	return fmt.Sprintf("server_kind(%d)", uint8(k))
}

// Valid reports whether k is part of the protocol.
func (k ServerKind) Valid() bool {
	return k < serverKindCount
}

// ParseServerKind is the inverse of ServerKind.String.
func ParseServerKind(s string) (ServerKind, error) {
	for k, name := range serverKindNames {
		if name == s {
			return ServerKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown server message kind %q", s)
}

// ScoreEntry is one player's running total in a ScoreUpdate.
type ScoreEntry struct {
	Name   string
	Points uint8
}

// ServerMessage is the envelope for all server-to-client messages. Which
// payload fields are meaningful depends on Kind; the constructors below are
// the only supported way to build one.
type ServerMessage struct {
	Kind ServerKind

	// Player name for join, cut, discard-placed, starter and play messages;
	// text for Error.
	Name string

	// For PlayerJoinNotification
	Seat      uint8
	SeatTotal uint8

	// For InitialCutResult, CutStarter, CardPlayed
	Card game.Card

	// For DealtHand
	Hand []game.Card

	// For CardPlayed
	Scores []game.ScoreEvent

	// For WaitPlay: indices into the current hand that may be played
	Playable []uint8

	// For ScoreUpdate
	Tally []ScoreEntry
}

func (m ServerMessage) String() string {
	switch m.Kind {
	case PlayerJoinNotification:
		return fmt.Sprintf("%s{%s %d/%d}", m.Kind, m.Name, m.Seat, m.SeatTotal)
	case InitialCutResult, CutStarter:
		return fmt.Sprintf("%s{%s %s}", m.Kind, m.Name, m.Card.ShortString())
	case CardPlayed:
		return fmt.Sprintf("%s{%s %s %s}", m.Kind, m.Name, m.Card.ShortString(), game.FormatClaims(m.Scores))
	case InitialCutSuccess, DiscardPlacedOne, DiscardPlacedTwo, Error:
		return fmt.Sprintf("%s{%s}", m.Kind, m.Name)
	case DealtHand:
		codes := make([]string, len(m.Hand))
		for i, c := range m.Hand {
			codes[i] = c.ShortString()
		}
		return fmt.Sprintf("%s{%s}", m.Kind, strings.Join(codes, " "))
	case WaitPlay:
		return fmt.Sprintf("%s{%v}", m.Kind, m.Playable)
	case ScoreUpdate:
		return fmt.Sprintf("%s{%v}", m.Kind, m.Tally)
	default:
		return m.Kind.String()
	}
}

// Equal reports structural equality over the whole envelope. Nil and empty
// slices are treated alike so that a decoded message equals the one that
// was encoded.
func (m ServerMessage) Equal(o ServerMessage) bool {
	return reflect.DeepEqual(m.normalized(), o.normalized())
}

func (m ServerMessage) normalized() ServerMessage {
	if len(m.Hand) == 0 {
		m.Hand = nil
	}
	if len(m.Scores) == 0 {
		m.Scores = nil
	}
	if len(m.Playable) == 0 {
		m.Playable = nil
	}
	if len(m.Tally) == 0 {
		m.Tally = nil
	}
	return m
}

// Signal builds a payload-free message of the given kind.
func Signal(kind ServerKind) ServerMessage {
	return ServerMessage{Kind: kind}
}

// NewPlayerJoin announces that name took seat (1-based) of total seats.
func NewPlayerJoin(name string, seat, total uint8) ServerMessage {
	return ServerMessage{Kind: PlayerJoinNotification, Name: name, Seat: seat, SeatTotal: total}
}

// NewInitialCutResult reports the card name drew in the initial cut.
func NewInitialCutResult(name string, card game.Card) ServerMessage {
	return ServerMessage{Kind: InitialCutResult, Name: name, Card: card}
}

// NewInitialCutSuccess names the winner of the initial cut.
func NewInitialCutSuccess(name string) ServerMessage {
	return ServerMessage{Kind: InitialCutSuccess, Name: name}
}

// NewDealtHand carries the receiving player's hand, in slot order.
func NewDealtHand(hand []game.Card) ServerMessage {
	return ServerMessage{Kind: DealtHand, Hand: hand}
}

// NewDiscardPlacedOne reports that name placed one card in the discards.
func NewDiscardPlacedOne(name string) ServerMessage {
	return ServerMessage{Kind: DiscardPlacedOne, Name: name}
}

// NewDiscardPlacedTwo reports that name placed two cards in the discards.
func NewDiscardPlacedTwo(name string) ServerMessage {
	return ServerMessage{Kind: DiscardPlacedTwo, Name: name}
}

// NewCutStarter reports the starter card and who cut it.
func NewCutStarter(name string, card game.Card) ServerMessage {
	return ServerMessage{Kind: CutStarter, Name: name, Card: card}
}

// NewCardPlayed reports a played card and the points its player claimed.
func NewCardPlayed(name string, card game.Card, scores []game.ScoreEvent) ServerMessage {
	return ServerMessage{Kind: CardPlayed, Name: name, Card: card, Scores: scores}
}

// NewWaitPlay asks for a play. playable holds hand slots (0-255, in
// practice below HandSlots); an empty list means only go is possible.
func NewWaitPlay(playable []uint8) ServerMessage {
	return ServerMessage{Kind: WaitPlay, Playable: playable}
}

// NewScoreUpdate carries the running totals, points 0-255 per player.
func NewScoreUpdate(tally []ScoreEntry) ServerMessage {
	return ServerMessage{Kind: ScoreUpdate, Tally: tally}
}

// NewError carries a server-side error text for display.
func NewError(text string) ServerMessage {
	return ServerMessage{Kind: Error, Name: text}
}

// --- Client → Server messages ---

// ClientKind identifies a client-to-server message.
type ClientKind uint8

const (
	Greeting ClientKind = iota
	Confirmation
	Denial
	Name
	DiscardOne
	DiscardTwo
	PlayTurn
	PlayScore

	clientKindCount
)

var clientKindNames = [clientKindCount]string{
	Greeting:     "greeting",
	Confirmation: "confirmation",
	Denial:       "denial",
	Name:         "name",
	DiscardOne:   "discard_one",
	DiscardTwo:   "discard_two",
	PlayTurn:     "play_turn",
	PlayScore:    "play_score",
}

func (k ClientKind) String() string {
	if k.Valid() {
		return clientKindNames[k]
	}
	return fmt.Sprintf("client_kind(%d)", uint8(k))
}

// Valid reports whether k is part of the protocol.
func (k ClientKind) Valid() bool {
	return k < clientKindCount
}

// ParseClientKind is the inverse of ClientKind.String.
func ParseClientKind(s string) (ClientKind, error) {
	for k, name := range clientKindNames {
		if name == s {
			return ClientKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown client message kind %q", s)
}

// ClientMessage is the envelope for all client-to-server messages.
type ClientMessage struct {
	Kind ClientKind

	// For Name
	Name string

	// For DiscardOne (Index) and DiscardTwo (Index, IndexTwo)
	Index    uint8
	IndexTwo uint8

	// For PlayTurn; false means go
	HasIndex bool

	// For PlayScore
	Scores []game.ScoreEvent
}

func (m ClientMessage) String() string {
	switch m.Kind {
	case Name:
		return fmt.Sprintf("%s{%s}", m.Kind, m.Name)
	case DiscardOne:
		return fmt.Sprintf("%s{%d}", m.Kind, m.Index)
	case DiscardTwo:
		return fmt.Sprintf("%s{%d %d}", m.Kind, m.Index, m.IndexTwo)
	case PlayTurn:
		if !m.HasIndex {
			return fmt.Sprintf("%s{go}", m.Kind)
		}
		return fmt.Sprintf("%s{%d}", m.Kind, m.Index)
	case PlayScore:
		return fmt.Sprintf("%s{%s}", m.Kind, game.FormatClaims(m.Scores))
	default:
		return m.Kind.String()
	}
}

// Equal reports structural equality, treating nil and empty Scores alike.
func (m ClientMessage) Equal(o ClientMessage) bool {
	if len(m.Scores) == 0 {
		m.Scores = nil
	}
	if len(o.Scores) == 0 {
		o.Scores = nil
	}
	return reflect.DeepEqual(m, o)
}

// NewConfirmation answers a press-to-continue prompt or says yes to nibs.
func NewConfirmation() ClientMessage { return ClientMessage{Kind: Confirmation} }

// NewDenial says no to nibs.
func NewDenial() ClientMessage { return ClientMessage{Kind: Denial} }

// NewGreeting is the optional hello sent right after connecting.
func NewGreeting() ClientMessage { return ClientMessage{Kind: Greeting} }

// NewName answers WaitName.
func NewName(name string) ClientMessage {
	return ClientMessage{Kind: Name, Name: name}
}

// NewDiscardOne discards the card in hand slot index (0 to HandSlots-1).
func NewDiscardOne(index uint8) ClientMessage {
	return ClientMessage{Kind: DiscardOne, Index: index}
}

// NewDiscardTwo discards hand slots one and two (each 0 to HandSlots-1).
// The caller guarantees they are distinct.
func NewDiscardTwo(one, two uint8) ClientMessage {
	return ClientMessage{Kind: DiscardTwo, Index: one, IndexTwo: two}
}

// NewPlayTurn plays the card in hand slot index; index must be one the
// server listed as playable.
func NewPlayTurn(index uint8) ClientMessage {
	return ClientMessage{Kind: PlayTurn, Index: index, HasIndex: true}
}

// NewPlayGo is a PlayTurn without an index: the player says go.
func NewPlayGo() ClientMessage {
	return ClientMessage{Kind: PlayTurn}
}

// NewPlayScore claims points for the last play; nil claims nothing.
func NewPlayScore(scores []game.ScoreEvent) ClientMessage {
	return ClientMessage{Kind: PlayScore, Scores: scores}
}
