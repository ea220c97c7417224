// Package meld enumerates valid hand groupings and computes deadwood.
//
// Everything here is a pure function of the cards passed in. The rules
// package uses these helpers to judge knock and gin legality, and the ai
// package uses them to pick discards.
package meld

import (
	"fmt"
	"sort"

	"github.com/louisbranch/meldtable/internal/game/card"
)

// Type distinguishes runs from sets.
type Type string

const (
	// TypeRun is three or more consecutive ranks in one suit.
	TypeRun Type = "run"
	// TypeSet is three or more cards of one rank in distinct suits.
	TypeSet Type = "set"
)

// Meld is a run or set of at least three cards.
type Meld struct {
	Type  Type        `json:"type"`
	Cards []card.Card `json:"cards"`
}

// Validate checks the meld's internal consistency.
func (m Meld) Validate() error {
	if len(m.Cards) < 3 {
		return fmt.Errorf("meld needs at least 3 cards, got %d", len(m.Cards))
	}
	for _, c := range m.Cards {
		if !c.Valid() {
			return fmt.Errorf("meld contains invalid card %v", c)
		}
	}

	switch m.Type {
	case TypeRun:
		sorted := sortedByRank(m.Cards)
		suit := sorted[0].Suit
		for i, c := range sorted {
			if c.Suit != suit {
				return fmt.Errorf("run mixes suits %s and %s", suit, c.Suit)
			}
			if i > 0 && c.Rank != sorted[i-1].Rank+1 {
				return fmt.Errorf("run is not consecutive at %v", c)
			}
		}
	case TypeSet:
		rank := m.Cards[0].Rank
		suits := make(map[card.Suit]bool, len(m.Cards))
		for _, c := range m.Cards {
			if c.Rank != rank {
				return fmt.Errorf("set mixes ranks %d and %d", rank, c.Rank)
			}
			if suits[c.Suit] {
				return fmt.Errorf("set repeats suit %s", c.Suit)
			}
			suits[c.Suit] = true
		}
	default:
		return fmt.Errorf("unknown meld type %q", m.Type)
	}
	return nil
}

// Contains reports whether the meld includes the card.
func (m Meld) Contains(target card.Card) bool {
	for _, c := range m.Cards {
		if c == target {
			return true
		}
	}
	return false
}

// Deadwood sums the point values of hand cards not covered by melds.
//
// The melds must form a consistent grouping: each meld valid on its own,
// built only from hand cards, with no card in more than one meld.
func Deadwood(hand []card.Card, melds []Meld) (int, error) {
	remaining := make(map[card.Card]int, len(hand))
	for _, c := range hand {
		remaining[c]++
	}

	for _, m := range melds {
		if err := m.Validate(); err != nil {
			return 0, fmt.Errorf("invalid meld: %w", err)
		}
		for _, c := range m.Cards {
			if remaining[c] <= 0 {
				return 0, fmt.Errorf("card %v is not available in the hand", c)
			}
			remaining[c]--
		}
	}

	total := 0
	for c, count := range remaining {
		total += c.PointValue() * count
	}
	return total, nil
}

// Unmelded returns the hand cards not covered by the grouping, with the same
// consistency requirements as Deadwood.
func Unmelded(hand []card.Card, melds []Meld) ([]card.Card, error) {
	remaining := make(map[card.Card]int, len(hand))
	for _, c := range hand {
		remaining[c]++
	}
	for _, m := range melds {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid meld: %w", err)
		}
		for _, c := range m.Cards {
			if remaining[c] <= 0 {
				return nil, fmt.Errorf("card %v is not available in the hand", c)
			}
			remaining[c]--
		}
	}

	loose := make([]card.Card, 0, len(hand))
	for _, c := range hand {
		if remaining[c] > 0 {
			remaining[c]--
			loose = append(loose, c)
		}
	}
	return loose, nil
}

// Points sums the deadwood point values of the cards.
func Points(cards []card.Card) int {
	total := 0
	for _, c := range cards {
		total += c.PointValue()
	}
	return total
}

func sortedByRank(cards []card.Card) []card.Card {
	sorted := append([]card.Card(nil), cards...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})
	return sorted
}
