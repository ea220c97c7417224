// Package ai implements the scripted opponent. The strategy is a set of
// pure functions over the opponent's own hand, tuned by a persona that can
// be loaded from a Lua script. Moves go through the same submission path as
// human players.
package ai

import (
	"github.com/louisbranch/meldtable/internal/game/card"
	"github.com/louisbranch/meldtable/internal/game/meld"
)

// Move is the strategy's chosen turn-ending action.
type Move struct {
	// Kind is one of "discard", "knock", or "gin".
	Kind string
	// Card is the card to discard.
	Card card.Card
	// Melds is the grouping declared on a knock or gin.
	Melds []meld.Meld
}

// wantsUpcard reports whether the hand improves enough by taking the upcard.
// The margin is how many deadwood points the swap must save; at the default
// margin the upcard is taken only when it participates in a meld.
func wantsUpcard(hand []card.Card, upcard card.Card, margin int) bool {
	current := meld.Best(hand).Deadwood

	withUpcard := append(append([]card.Card(nil), hand...), upcard)
	best := bestAfterDiscard(withUpcard)
	if best == nil {
		return false
	}
	// Taking the upcard is only worthwhile when it stays in the hand.
	if best.Card == upcard {
		return false
	}
	return current-best.Deadwood >= margin
}

// discardChoice is a candidate discard with the deadwood of the remaining
// ten cards.
type discardChoice struct {
	Card     card.Card
	Melds    []meld.Meld
	Deadwood int
}

// bestAfterDiscard evaluates every discard from an eleven-card hand and
// returns the one that minimizes remaining deadwood. Ties keep the
// higher-value discard, shedding points while the grouping is equal.
func bestAfterDiscard(hand []card.Card) *discardChoice {
	var best *discardChoice
	for i := range hand {
		rest := make([]card.Card, 0, len(hand)-1)
		rest = append(rest, hand[:i]...)
		rest = append(rest, hand[i+1:]...)
		combo := meld.Best(rest)
		choice := &discardChoice{Card: hand[i], Melds: combo.Melds, Deadwood: combo.Deadwood}
		if best == nil ||
			choice.Deadwood < best.Deadwood ||
			(choice.Deadwood == best.Deadwood && choice.Card.PointValue() > best.Card.PointValue()) {
			best = choice
		}
	}
	return best
}

// chooseMove picks the turn-ending action for an eleven-card hand.
// Gin fires at zero deadwood; a knock fires at or below the threshold.
func chooseMove(hand []card.Card, knockThreshold int) Move {
	choice := bestAfterDiscard(hand)
	switch {
	case choice.Deadwood == 0:
		return Move{Kind: "gin", Card: choice.Card, Melds: choice.Melds}
	case choice.Deadwood <= knockThreshold:
		return Move{Kind: "knock", Card: choice.Card, Melds: choice.Melds}
	default:
		return Move{Kind: "discard", Card: choice.Card}
	}
}
