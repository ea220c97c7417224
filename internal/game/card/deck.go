package card

import "math/rand"

// Deck returns a full 52-card deck in canonical order: suits in
// clubs/diamonds/hearts/spades order, ranks ace through king within each.
func Deck() []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range Suits() {
		for rank := RankAce; rank <= RankKing; rank++ {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	return deck
}

// ShuffledDeck returns a full deck shuffled with the provided seed.
//
// The same seed always yields the same order, which is what lets a deal be
// reconstructed from its seed during journal replay.
func ShuffledDeck(seed int64) []Card {
	deck := Deck()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
