// Package transcript stores the frames a client receives so a game can be
// replayed against a client later.
package transcript

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/rs/zerolog"

	cnet "github.com/peterkuimelis/crib/internal/net"
)

const keySize = 16

// Store is an append-only frame log in a pebble database. Each Open starts
// a new game; keys are the 8-byte big-endian game number followed by the
// 8-byte big-endian frame number within that game.
type Store struct {
	db   *pebble.DB
	mu   sync.Mutex
	game uint64
	next uint64
}

// pebbleLogger routes pebble's own messages to zerolog so they stay off
// the player's terminal.
type pebbleLogger struct {
	zl zerolog.Logger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l pebbleLogger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.zl.Fatal().Msgf(format, args...)
}

// Open opens or creates the store at dir. Frames recorded through the
// returned Store belong to a new game numbered after the last one present.
func Open(dir string, zl zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	opts := &pebble.Options{
		Logger: pebbleLogger{zl: zl.With().Str("component", "transcript").Logger()},
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	s := &Store{db: db}

	last, ok, err := s.lastGame()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if ok {
		s.game = last + 1
	}
	return s, nil
}

func gameKey(game, frame uint64) []byte {
	key := binary.BigEndian.AppendUint64(make([]byte, 0, keySize), game)
	return binary.BigEndian.AppendUint64(key, frame)
}

func (s *Store) lastGame() (uint64, bool, error) {
	it, err := s.db.NewIter(nil)
	if err != nil {
		return 0, false, fmt.Errorf("read transcript: %w", err)
	}
	defer func() { _ = it.Close() }()
	if !it.Last() || len(it.Key()) != keySize {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(it.Key()), true, nil
}

// Record appends one frame to the current game.
func (s *Store) Record(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set(gameKey(s.game, s.next), frame, pebble.Sync); err != nil {
		return fmt.Errorf("record frame %d.%d: %w", s.game, s.next, err)
	}
	s.next++
	return nil
}

// Game returns the number of the game being recorded.
func (s *Store) Game() uint64 {
	return s.game
}

// Len returns the number of frames recorded in the current game.
func (s *Store) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// LastGame returns the number of the most recent game holding frames.
func (s *Store) LastGame() (uint64, bool, error) {
	return s.lastGame()
}

// Frames returns the frames of one game in order.
func (s *Store) Frames(game uint64) ([][]byte, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: gameKey(game, 0),
		UpperBound: gameKey(game+1, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	defer func() { _ = it.Close() }()

	var frames [][]byte
	for it.First(); it.Valid(); it.Next() {
		frames = append(frames, slices.Clone(it.Value()))
	}
	return frames, nil
}

// Messages decodes the frames of one game.
func (s *Store) Messages(game uint64) ([]cnet.ServerMessage, error) {
	frames, err := s.Frames(game)
	if err != nil {
		return nil, err
	}
	msgs := make([]cnet.ServerMessage, 0, len(frames))
	for i, f := range frames {
		msg, err := cnet.DecodeServer(f)
		if err != nil {
			return nil, fmt.Errorf("game %d frame %d: %w", game, i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadScript turns the last game recorded in dir into a script that replays
// it, waiting for a reply after each prompt. The replay ends at the game's
// first Disconnect since a client stops reading there.
func LoadScript(dir string) (*cnet.Script, error) {
	s, err := Open(dir, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	defer s.Close()

	game, ok, err := s.LastGame()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("replay %s: no recorded game", dir)
	}
	msgs, err := s.Messages(game)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", dir, err)
	}
	for i, m := range msgs {
		if m.Kind == cnet.Disconnect {
			msgs = msgs[:i+1]
			break
		}
	}
	return cnet.ScriptFromMessages(filepath.Base(dir), msgs), nil
}
