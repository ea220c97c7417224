// Package card defines the playing card vocabulary shared by the deal,
// meld, and rules packages.
//
// Cards travel through event payloads and API responses as short text codes
// (rank then suit letter, e.g. "AH", "10C", "KS") so journal entries stay
// readable and compact.
package card

import (
	"fmt"
	"strings"
)

// Suit identifies one of the four french suits.
type Suit string

const (
	// SuitClubs is the clubs suit.
	SuitClubs Suit = "clubs"
	// SuitDiamonds is the diamonds suit.
	SuitDiamonds Suit = "diamonds"
	// SuitHearts is the hearts suit.
	SuitHearts Suit = "hearts"
	// SuitSpades is the spades suit.
	SuitSpades Suit = "spades"
)

// Letter returns the single-letter suit code used in card text codes.
func (s Suit) Letter() string {
	switch s {
	case SuitClubs:
		return "C"
	case SuitDiamonds:
		return "D"
	case SuitHearts:
		return "H"
	case SuitSpades:
		return "S"
	}
	return "?"
}

// Valid reports whether the suit is one of the four known suits.
func (s Suit) Valid() bool {
	switch s {
	case SuitClubs, SuitDiamonds, SuitHearts, SuitSpades:
		return true
	}
	return false
}

// Suits lists all suits in canonical deck order.
func Suits() []Suit {
	return []Suit{SuitClubs, SuitDiamonds, SuitHearts, SuitSpades}
}

// Rank is a card rank, ace low: 1 (ace) through 13 (king).
type Rank int

const (
	// RankAce is the lowest rank.
	RankAce Rank = 1
	// RankJack is the jack rank.
	RankJack Rank = 11
	// RankQueen is the queen rank.
	RankQueen Rank = 12
	// RankKing is the highest rank.
	RankKing Rank = 13
)

// Valid reports whether the rank is within the ace-to-king range.
func (r Rank) Valid() bool {
	return r >= RankAce && r <= RankKing
}

// Code returns the rank portion of a card text code.
func (r Rank) Code() string {
	switch r {
	case RankAce:
		return "A"
	case RankJack:
		return "J"
	case RankQueen:
		return "Q"
	case RankKing:
		return "K"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// PointValue returns the deadwood point value of the rank.
// Aces count one, face cards count ten, numerals count their rank.
func (r Rank) PointValue() int {
	if r >= 10 {
		return 10
	}
	return int(r)
}

// Card is a single playing card.
type Card struct {
	Suit Suit
	Rank Rank
}

// String returns the card text code, e.g. "AH" or "10C".
func (c Card) String() string {
	return c.Rank.Code() + c.Suit.Letter()
}

// Valid reports whether suit and rank are both in range.
func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank.Valid()
}

// PointValue returns the deadwood point value of the card.
func (c Card) PointValue() int {
	return c.Rank.PointValue()
}

// MarshalText encodes the card as its text code.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card %q", c.String())
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a card from its text code.
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse decodes a card text code such as "AH", "7C", or "10D".
func Parse(code string) (Card, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 {
		return Card{}, fmt.Errorf("card code %q is too short", code)
	}

	suitLetter := code[len(code)-1:]
	rankCode := code[:len(code)-1]

	var suit Suit
	switch suitLetter {
	case "C":
		suit = SuitClubs
	case "D":
		suit = SuitDiamonds
	case "H":
		suit = SuitHearts
	case "S":
		suit = SuitSpades
	default:
		return Card{}, fmt.Errorf("card code %q has unknown suit %q", code, suitLetter)
	}

	var rank Rank
	switch rankCode {
	case "A":
		rank = RankAce
	case "J":
		rank = RankJack
	case "Q":
		rank = RankQueen
	case "K":
		rank = RankKing
	default:
		var value int
		if _, err := fmt.Sscanf(rankCode, "%d", &value); err != nil {
			return Card{}, fmt.Errorf("card code %q has unknown rank %q", code, rankCode)
		}
		rank = Rank(value)
	}
	if !rank.Valid() {
		return Card{}, fmt.Errorf("card code %q rank out of range", code)
	}

	return Card{Suit: suit, Rank: rank}, nil
}

// MustParse decodes a card text code and panics on failure.
// Intended for tests and fixtures only.
func MustParse(code string) Card {
	parsed, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return parsed
}

// ParseAll decodes a list of card text codes.
func ParseAll(codes []string) ([]Card, error) {
	cards := make([]Card, 0, len(codes))
	for _, code := range codes {
		parsed, err := Parse(code)
		if err != nil {
			return nil, err
		}
		cards = append(cards, parsed)
	}
	return cards, nil
}

// Codes encodes a list of cards as text codes.
func Codes(cards []Card) []string {
	codes := make([]string, 0, len(cards))
	for _, c := range cards {
		codes = append(codes, c.String())
	}
	return codes
}
