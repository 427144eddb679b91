package net

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/peterkuimelis/crib/internal/game"
)

// Script is a fixed exchange with one client: server messages to send and
// client replies to wait for, in order.
type Script struct {
	Name  string
	Steps []Step
}

// Step is either a message to send or a reply to expect.
type Step struct {
	Send   *ServerMessage
	Expect *Expectation
}

// Expectation matches one client reply. The reply's kind must be one of
// Kinds; if Message is set the whole reply must equal it.
type Expectation struct {
	Kinds   []ClientKind
	Message *ClientMessage
}

// Match reports whether m satisfies the expectation.
func (e Expectation) Match(m ClientMessage) bool {
	if e.Message != nil {
		return e.Message.Equal(m)
	}
	for _, k := range e.Kinds {
		if k == m.Kind {
			return true
		}
	}
	return false
}

func (e Expectation) String() string {
	if e.Message != nil {
		return e.Message.String()
	}
	names := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		names[i] = k.String()
	}
	return strings.Join(names, "|")
}

// Counts returns the number of send and expect steps.
func (s *Script) Counts() (sends, expects int) {
	for _, st := range s.Steps {
		if st.Send != nil {
			sends++
		}
		if st.Expect != nil {
			expects++
		}
	}
	return sends, expects
}

// ReplyKinds lists the client kinds that answer a prompt kind, or nil if
// kind is not a prompt.
func ReplyKinds(kind ServerKind) []ClientKind {
	switch kind {
	case WaitName:
		return []ClientKind{Name}
	case WaitInitialCut, WaitDeal, WaitCutStarter:
		return []ClientKind{Confirmation}
	case WaitDiscardOne:
		return []ClientKind{DiscardOne}
	case WaitDiscardTwo:
		return []ClientKind{DiscardTwo}
	case WaitNibs:
		return []ClientKind{Confirmation, Denial}
	case WaitPlay:
		return []ClientKind{PlayTurn}
	case WaitPlayScore:
		return []ClientKind{PlayScore}
	}
	return nil
}

// ScriptFromMessages builds a script that sends msgs in order and waits for
// a reply after every prompt. A prompt equal to the message before it gets
// no expectation since a client ignores the repeat.
func ScriptFromMessages(name string, msgs []ServerMessage) *Script {
	s := &Script{Name: name}
	for i := range msgs {
		msg := msgs[i]
		s.Steps = append(s.Steps, Step{Send: &msg})
		if i > 0 && msgs[i-1].Equal(msg) {
			continue
		}
		if kinds := ReplyKinds(msg.Kind); kinds != nil {
			s.Steps = append(s.Steps, Step{Expect: &Expectation{Kinds: kinds}})
		}
	}
	return s
}

// --- YAML form ---

type scriptFile struct {
	Name  string     `yaml:"name"`
	Steps []stepFile `yaml:"steps"`
}

type stepFile struct {
	Send   *sendFile   `yaml:"send,omitempty"`
	Expect *expectFile `yaml:"expect,omitempty"`
}

type sendFile struct {
	Kind     string      `yaml:"kind"`
	Name     string      `yaml:"name,omitempty"`
	Text     string      `yaml:"text,omitempty"`
	Seat     uint8       `yaml:"seat,omitempty"`
	Total    uint8       `yaml:"total,omitempty"`
	Card     string      `yaml:"card,omitempty"`
	Hand     []string    `yaml:"hand,omitempty"`
	Scores   []string    `yaml:"scores,omitempty"`
	Playable []uint8     `yaml:"playable,omitempty"`
	Tally    []tallyFile `yaml:"tally,omitempty"`
}

type tallyFile struct {
	Name   string `yaml:"name"`
	Points uint8  `yaml:"points"`
}

// expectFile.Kind may list alternatives separated by "|". Payload fields
// pin the exact reply and need a single kind.
type expectFile struct {
	Kind     string   `yaml:"kind"`
	Name     *string  `yaml:"name,omitempty"`
	Index    *uint8   `yaml:"index,omitempty"`
	IndexTwo *uint8   `yaml:"index_two,omitempty"`
	Go       bool     `yaml:"go,omitempty"`
	Scores   []string `yaml:"scores,omitempty"`
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes a YAML script. Every message to send must fit in a
// frame and decode back to itself.
func ParseScript(data []byte) (*Script, error) {
	var f scriptFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	s := &Script{Name: f.Name}
	for i, sf := range f.Steps {
		var st Step
		switch {
		case sf.Send != nil && sf.Expect != nil:
			return nil, fmt.Errorf("step %d: both send and expect", i+1)
		case sf.Send != nil:
			msg, err := sf.Send.message()
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			st.Send = &msg
		case sf.Expect != nil:
			exp, err := sf.Expect.expectation()
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			st.Expect = &exp
		default:
			return nil, fmt.Errorf("step %d: empty", i+1)
		}
		s.Steps = append(s.Steps, st)
	}
	return s, nil
}

func (f *sendFile) message() (ServerMessage, error) {
	kind, err := ParseServerKind(f.Kind)
	if err != nil {
		return ServerMessage{}, err
	}
	msg := ServerMessage{Kind: kind, Name: f.Name, Seat: f.Seat, SeatTotal: f.Total, Playable: f.Playable}
	if kind == Error {
		msg.Name = f.Text
	}
	if f.Card != "" {
		if msg.Card, err = game.ParseCard(f.Card); err != nil {
			return ServerMessage{}, err
		}
	}
	for _, cs := range f.Hand {
		c, err := game.ParseCard(cs)
		if err != nil {
			return ServerMessage{}, err
		}
		msg.Hand = append(msg.Hand, c)
	}
	if len(f.Scores) > 0 {
		if msg.Scores, err = game.ParseScoreClaims(strings.Join(f.Scores, ",")); err != nil {
			return ServerMessage{}, err
		}
	}
	for _, t := range f.Tally {
		msg.Tally = append(msg.Tally, ScoreEntry{Name: t.Name, Points: t.Points})
	}

	frame, err := EncodeServer(msg)
	if err != nil {
		return ServerMessage{}, err
	}
	back, err := DecodeServer(frame)
	if err != nil {
		return ServerMessage{}, fmt.Errorf("%s: %w", kind, err)
	}
	if !back.Equal(msg) {
		return ServerMessage{}, fmt.Errorf("%s: fields not carried by this kind", kind)
	}
	return msg, nil
}

func (f *expectFile) expectation() (Expectation, error) {
	var exp Expectation
	for _, name := range strings.Split(f.Kind, "|") {
		k, err := ParseClientKind(strings.TrimSpace(name))
		if err != nil {
			return Expectation{}, err
		}
		exp.Kinds = append(exp.Kinds, k)
	}

	pinned := f.Name != nil || f.Index != nil || f.IndexTwo != nil || f.Go || len(f.Scores) > 0
	if !pinned {
		return exp, nil
	}
	if len(exp.Kinds) != 1 {
		return Expectation{}, fmt.Errorf("expect %s: payload needs a single kind", f.Kind)
	}
	m := ClientMessage{Kind: exp.Kinds[0]}
	if f.Name != nil {
		m.Name = *f.Name
	}
	if f.Index != nil {
		m.Index = *f.Index
		m.HasIndex = m.Kind == PlayTurn
	}
	if f.IndexTwo != nil {
		m.IndexTwo = *f.IndexTwo
	}
	if len(f.Scores) > 0 {
		scores, err := game.ParseScoreClaims(strings.Join(f.Scores, ","))
		if err != nil {
			return Expectation{}, err
		}
		m.Scores = scores
	}
	exp.Message = &m
	return exp, nil
}
