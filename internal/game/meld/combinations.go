package meld

import (
	"sort"
	"strings"

	"github.com/louisbranch/meldtable/internal/game/card"
)

// Combination is one complete non-overlapping grouping of a hand.
type Combination struct {
	Melds    []Meld `json:"melds"`
	Deadwood int    `json:"deadwood"`
}

// MeldedCount returns how many cards the combination covers.
func (c Combination) MeldedCount() int {
	total := 0
	for _, m := range c.Melds {
		total += len(m.Cards)
	}
	return total
}

// FindAllCombinations enumerates the maximal non-overlapping groupings of a
// hand, ordered by ascending deadwood. Ties prefer groupings that cover more
// cards. A hand with no possible meld yields the single empty grouping, so
// the result is never empty.
func FindAllCombinations(hand []card.Card) []Combination {
	candidates := candidateMelds(hand)

	seen := make(map[string]bool)
	var results []Combination

	var search func(start int, chosen []Meld, used map[card.Card]bool)
	search = func(start int, chosen []Meld, used map[card.Card]bool) {
		for i := start; i < len(candidates); i++ {
			m := candidates[i]
			if overlaps(m, used) {
				continue
			}
			for _, c := range m.Cards {
				used[c] = true
			}
			search(i+1, append(chosen, m), used)
			for _, c := range m.Cards {
				delete(used, c)
			}
		}

		// Record only maximal groupings: skip if any candidate still fits.
		for _, cand := range candidates {
			if !overlaps(cand, used) {
				return
			}
		}

		combo := Combination{Melds: append([]Meld(nil), chosen...)}
		dw, err := Deadwood(hand, combo.Melds)
		if err != nil {
			return
		}
		combo.Deadwood = dw

		key := comboKey(combo)
		if seen[key] {
			return
		}
		seen[key] = true
		results = append(results, combo)
	}
	search(0, nil, make(map[card.Card]bool))

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Deadwood != results[j].Deadwood {
			return results[i].Deadwood < results[j].Deadwood
		}
		return results[i].MeldedCount() > results[j].MeldedCount()
	})
	return results
}

// Best returns the lowest-deadwood grouping of the hand.
func Best(hand []card.Card) Combination {
	combos := FindAllCombinations(hand)
	if len(combos) == 0 {
		return Combination{}
	}
	return combos[0]
}

// FindCardOptions returns every meld, across all groupings of the hand, that
// the given card could participate in. Callers use it to let a player switch
// a card between an eligible run and an eligible set.
func FindCardOptions(target card.Card, hand []card.Card) []Meld {
	var options []Meld
	for _, m := range candidateMelds(hand) {
		if m.Contains(target) {
			options = append(options, m)
		}
	}
	return options
}

// candidateMelds lists every individually valid run and set the hand can
// form, including sub-runs and sub-sets of longer ones.
func candidateMelds(hand []card.Card) []Meld {
	var candidates []Meld

	// Runs: walk each suit's sorted ranks for consecutive stretches, then
	// emit every window of length >= 3 inside each stretch.
	bySuit := make(map[card.Suit][]card.Card)
	for _, c := range hand {
		bySuit[c.Suit] = append(bySuit[c.Suit], c)
	}
	for _, suit := range card.Suits() {
		cards := sortedByRank(bySuit[suit])
		cards = dedupeByRank(cards)
		for start := 0; start < len(cards); {
			end := start
			for end+1 < len(cards) && cards[end+1].Rank == cards[end].Rank+1 {
				end++
			}
			for lo := start; lo <= end; lo++ {
				for hi := lo + 2; hi <= end; hi++ {
					candidates = append(candidates, Meld{
						Type:  TypeRun,
						Cards: append([]card.Card(nil), cards[lo:hi+1]...),
					})
				}
			}
			start = end + 1
		}
	}

	// Sets: rank groups of 3 emit themselves; groups of 4 also emit each
	// 3-card subset so a fourth card can stay free for a run.
	byRank := make(map[card.Rank][]card.Card)
	for _, c := range hand {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	ranks := make([]card.Rank, 0, len(byRank))
	for rank := range byRank {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	for _, rank := range ranks {
		group := dedupeBySuit(byRank[rank])
		if len(group) < 3 {
			continue
		}
		candidates = append(candidates, Meld{
			Type:  TypeSet,
			Cards: append([]card.Card(nil), group...),
		})
		if len(group) == 4 {
			for skip := range group {
				subset := make([]card.Card, 0, 3)
				for i, c := range group {
					if i != skip {
						subset = append(subset, c)
					}
				}
				candidates = append(candidates, Meld{Type: TypeSet, Cards: subset})
			}
		}
	}

	return candidates
}

func overlaps(m Meld, used map[card.Card]bool) bool {
	for _, c := range m.Cards {
		if used[c] {
			return true
		}
	}
	return false
}

func comboKey(combo Combination) string {
	meldKeys := make([]string, 0, len(combo.Melds))
	for _, m := range combo.Melds {
		codes := card.Codes(sortedByRank(m.Cards))
		meldKeys = append(meldKeys, string(m.Type)+":"+strings.Join(codes, ","))
	}
	sort.Strings(meldKeys)
	return strings.Join(meldKeys, "|")
}

func dedupeByRank(cards []card.Card) []card.Card {
	out := cards[:0:0]
	for _, c := range cards {
		if len(out) == 0 || out[len(out)-1].Rank != c.Rank {
			out = append(out, c)
		}
	}
	return out
}

func dedupeBySuit(cards []card.Card) []card.Card {
	seen := make(map[card.Suit]bool, len(cards))
	out := cards[:0:0]
	for _, c := range cards {
		if !seen[c.Suit] {
			seen[c.Suit] = true
			out = append(out, c)
		}
	}
	return out
}
