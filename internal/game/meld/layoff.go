package meld

import (
	"sort"

	"github.com/louisbranch/meldtable/internal/game/card"
)

// Layoffs extends the given melds with as many of the loose cards as the
// rules allow: a card lays off on a set of its rank when its suit is not
// already present, or on either end of a run of its suit. Laid-off cards can
// open further layoffs (a 5H laid on a 4H run lets a 6H follow), so the scan
// repeats until no card fits.
//
// Cards are considered in a fixed sorted order, so the result is
// deterministic for replay. Returns the cards laid off and the cards left
// over.
func Layoffs(melds []Meld, cards []card.Card) (laid, remaining []card.Card) {
	extended := make([]Meld, len(melds))
	for i, m := range melds {
		extended[i] = Meld{Type: m.Type, Cards: append([]card.Card(nil), m.Cards...)}
	}

	remaining = append([]card.Card(nil), cards...)
	sort.Slice(remaining, func(i, j int) bool {
		if remaining[i].Rank != remaining[j].Rank {
			return remaining[i].Rank < remaining[j].Rank
		}
		return remaining[i].Suit < remaining[j].Suit
	})

	for {
		progressed := false
		for i := 0; i < len(remaining); i++ {
			c := remaining[i]
			idx := fitsAnyMeld(extended, c)
			if idx < 0 {
				continue
			}
			extended[idx].Cards = append(extended[idx].Cards, c)
			laid = append(laid, c)
			remaining = append(remaining[:i], remaining[i+1:]...)
			progressed = true
			i--
		}
		if !progressed {
			return laid, remaining
		}
	}
}

func fitsAnyMeld(melds []Meld, c card.Card) int {
	for i, m := range melds {
		if fitsMeld(m, c) {
			return i
		}
	}
	return -1
}

func fitsMeld(m Meld, c card.Card) bool {
	switch m.Type {
	case TypeSet:
		if c.Rank != m.Cards[0].Rank {
			return false
		}
		for _, existing := range m.Cards {
			if existing.Suit == c.Suit {
				return false
			}
		}
		return true
	case TypeRun:
		if c.Suit != m.Cards[0].Suit {
			return false
		}
		low, high := m.Cards[0].Rank, m.Cards[0].Rank
		for _, existing := range m.Cards {
			if existing.Rank < low {
				low = existing.Rank
			}
			if existing.Rank > high {
				high = existing.Rank
			}
		}
		return (c.Rank+1 == low && c.Rank >= card.RankAce) || c.Rank == high+1
	default:
		return false
	}
}
