package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Suit is a card suit.
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

func (s Suit) String() string {
	switch s {
	case Clubs:
		return "Clubs"
	case Diamonds:
		return "Diamonds"
	case Hearts:
		return "Hearts"
	case Spades:
		return "Spades"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool {
	return s <= Spades
}

// Rank is a card rank, Ace (1) through King (13).
type Rank uint8

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

func (r Rank) String() string {
	switch r {
	case Ace:
		return "Ace"
	case Jack:
		return "Jack"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		if r.Valid() {
			return fmt.Sprintf("%d", r)
		}
		return "Unknown"
	}
}

// Valid reports whether r is between Ace and King.
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// Card is a single playing card. The client only stores, compares and
// displays cards; the server decides what they mean.
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// Valid reports whether both rank and suit are in range.
func (c Card) Valid() bool {
	return c.Rank.Valid() && c.Suit.Valid()
}

// ParseCard parses the short form used in script files: a rank
// (A, 2-10, J, Q, K) followed by a suit letter (C, D, H, S), e.g. "AS", "10h".
func ParseCard(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Card{}, fmt.Errorf("card %q: too short", s)
	}

	var suit Suit
	switch s[len(s)-1] {
	case 'C':
		suit = Clubs
	case 'D':
		suit = Diamonds
	case 'H':
		suit = Hearts
	case 'S':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("card %q: unknown suit", s)
	}

	var rank Rank
	switch r := s[:len(s)-1]; r {
	case "A":
		rank = Ace
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	default:
		n, err := strconv.Atoi(r)
		if err != nil || n < 2 || n > 10 {
			return Card{}, fmt.Errorf("card %q: unknown rank", s)
		}
		rank = Rank(n)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// ShortString is the inverse of ParseCard.
func (c Card) ShortString() string {
	var r string
	switch c.Rank {
	case Ace:
		r = "A"
	case Jack:
		r = "J"
	case Queen:
		r = "Q"
	case King:
		r = "K"
	default:
		r = fmt.Sprintf("%d", c.Rank)
	}
	return r + c.Suit.String()[:1]
}

// FormatHand renders cards with their zero-based slot index.
func FormatHand(cards []Card) string {
	var sb strings.Builder
	for i, c := range cards {
		if i > 0 {
			sb.WriteString("  ")
		}
		fmt.Fprintf(&sb, "[%d] %s", i, c)
	}
	return sb.String()
}
