package game

import (
	"reflect"
	"testing"
)

func TestParseScoreClaims(t *testing.T) {
	got, err := ParseScoreClaims("fifteen, pair run4,thirty_one  LAST_CARD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []ScoreEvent{
		{Kind: ScoreFifteen, Points: 2},
		{Kind: ScorePair, Points: 2},
		{Kind: ScoreRun, Points: 4},
		{Kind: ScoreThirtyOne, Points: 2},
		{Kind: ScoreLastCard, Points: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseScoreClaimsEmpty(t *testing.T) {
	got, err := ParseScoreClaims("   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no claims, got %v", got)
	}
	if FormatClaims(got) != "no claims" {
		t.Errorf("Expected 'no claims', got %q", FormatClaims(got))
	}
}

func TestParseScoreClaimsRejects(t *testing.T) {
	for _, in := range []string{"run", "run2", "run8", "run3x", "flush", "fifteen, nobs"} {
		if got, err := ParseScoreClaims(in); err == nil {
			t.Errorf("ParseScoreClaims(%q) = %v, expected an error", in, got)
		}
	}
}

func TestNewScoreEventPoints(t *testing.T) {
	tests := []struct {
		kind   ScoreKind
		length int
		points uint8
	}{
		{ScoreFifteen, 0, 2},
		{ScorePairRoyal, 0, 6},
		{ScoreDoublePairRoyal, 0, 12},
		{ScoreGo, 0, 1},
		{ScoreRun, 5, 5},
	}
	for _, tt := range tests {
		if got := NewScoreEvent(tt.kind, tt.length).Points; got != tt.points {
			t.Errorf("%s: expected %d points, got %d", tt.kind, tt.points, got)
		}
	}
}

func TestFormatClaims(t *testing.T) {
	got := FormatClaims([]ScoreEvent{NewScoreEvent(ScoreRun, 3), NewScoreEvent(ScorePair, 0)})
	if got != "run of 3 for 3, pair for 2" {
		t.Errorf("unexpected claims text %q", got)
	}
}
