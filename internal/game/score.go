package game

import (
	"fmt"
	"strconv"
	"strings"
)

// ScoreKind enumerates the scoring claims a player can make for a play.
type ScoreKind uint8

const (
	ScoreFifteen ScoreKind = iota
	ScorePair
	ScorePairRoyal
	ScoreDoublePairRoyal
	ScoreRun
	ScoreThirtyOne
	ScoreGo
	ScoreLastCard
)

func (k ScoreKind) String() string {
	switch k {
	case ScoreFifteen:
		return "fifteen"
	case ScorePair:
		return "pair"
	case ScorePairRoyal:
		return "pair_royal"
	case ScoreDoublePairRoyal:
		return "double_pair_royal"
	case ScoreRun:
		return "run"
	case ScoreThirtyOne:
		return "thirty_one"
	case ScoreGo:
		return "go"
	case ScoreLastCard:
		return "last_card"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a known claim kind.
func (k ScoreKind) Valid() bool {
	return k <= ScoreLastCard
}

// ScoreEvent is a single claim of points. Whether the claim is correct is
// decided by the server.
type ScoreEvent struct {
	Kind   ScoreKind
	Points uint8
}

func (e ScoreEvent) String() string {
	if e.Kind == ScoreRun {
		return fmt.Sprintf("run of %d for %d", e.Points, e.Points)
	}
	return fmt.Sprintf("%s for %d", e.Kind, e.Points)
}

var fixedPoints = map[ScoreKind]uint8{
	ScoreFifteen:         2,
	ScorePair:            2,
	ScorePairRoyal:       6,
	ScoreDoublePairRoyal: 12,
	ScoreThirtyOne:       2,
	ScoreGo:              1,
	ScoreLastCard:        1,
}

// NewScoreEvent builds a claim with the conventional point value for kind.
// Runs score one point per card, so length is only used for ScoreRun.
func NewScoreEvent(kind ScoreKind, length int) ScoreEvent {
	if kind == ScoreRun {
		return ScoreEvent{Kind: ScoreRun, Points: uint8(length)}
	}
	return ScoreEvent{Kind: kind, Points: fixedPoints[kind]}
}

// ParseScoreClaims parses a comma or space separated list of claims such as
// "fifteen, pair, run3". An empty string yields no claims.
func ParseScoreClaims(s string) ([]ScoreEvent, error) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	var events []ScoreEvent
	for _, f := range fields {
		if strings.HasPrefix(f, "run") {
			n, err := strconv.Atoi(strings.TrimPrefix(f, "run"))
			if err != nil || n < 3 || n > 7 {
				return nil, fmt.Errorf("claim %q: runs are run3 through run7", f)
			}
			events = append(events, NewScoreEvent(ScoreRun, n))
			continue
		}
		kind, ok := parseScoreKind(f)
		if !ok {
			return nil, fmt.Errorf("claim %q: unknown", f)
		}
		events = append(events, NewScoreEvent(kind, 0))
	}
	return events, nil
}

func parseScoreKind(s string) (ScoreKind, bool) {
	for k := ScoreFifteen; k <= ScoreLastCard; k++ {
		if k != ScoreRun && k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// FormatClaims renders a claim list for display.
func FormatClaims(events []ScoreEvent) string {
	if len(events) == 0 {
		return "no claims"
	}
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
