package meld

import (
	"testing"

	"github.com/louisbranch/meldtable/internal/game/card"
)

func TestLayoffsOnRunAndSet(t *testing.T) {
	melds := []Meld{
		{Type: TypeRun, Cards: hand("4H", "5H", "6H")},
		{Type: TypeSet, Cards: hand("9C", "9D", "9S")},
	}
	loose := hand("3H", "9H", "KD")

	laid, remaining := Layoffs(melds, loose)
	if len(laid) != 2 {
		t.Fatalf("laid = %v, want 2 cards", card.Codes(laid))
	}
	if len(remaining) != 1 || remaining[0] != card.MustParse("KD") {
		t.Fatalf("remaining = %v, want [KD]", card.Codes(remaining))
	}
}

func TestLayoffsAceLowOnRun(t *testing.T) {
	melds := []Meld{
		{Type: TypeRun, Cards: hand("2C", "3C", "4C")},
	}
	loose := hand("AC", "AH")

	laid, remaining := Layoffs(melds, loose)
	if len(laid) != 1 || laid[0] != card.MustParse("AC") {
		t.Fatalf("laid = %v, want [AC]", card.Codes(laid))
	}
	if len(remaining) != 1 || remaining[0] != card.MustParse("AH") {
		t.Fatalf("remaining = %v, want [AH]", card.Codes(remaining))
	}
}

func TestLayoffsChainOnRun(t *testing.T) {
	melds := []Meld{
		{Type: TypeRun, Cards: hand("4H", "5H", "6H")},
	}
	// 8H only fits after 7H extends the run.
	loose := hand("8H", "7H")

	laid, remaining := Layoffs(melds, loose)
	if len(laid) != 2 {
		t.Fatalf("laid = %v, want both hearts", card.Codes(laid))
	}
	if len(remaining) != 0 {
		t.Fatalf("remaining = %v, want empty", card.Codes(remaining))
	}
}

func TestLayoffsRejectDuplicateSuitOnSet(t *testing.T) {
	melds := []Meld{
		{Type: TypeSet, Cards: hand("9C", "9D", "9S")},
	}
	loose := hand("9H", "9H")

	laid, remaining := Layoffs(melds, loose)
	if len(laid) != 1 {
		t.Fatalf("laid = %v, want one nine", card.Codes(laid))
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %v, want one nine left over", card.Codes(remaining))
	}
}

func TestLayoffsDoNotMutateInput(t *testing.T) {
	melds := []Meld{
		{Type: TypeRun, Cards: hand("4H", "5H", "6H")},
	}
	loose := hand("7H")

	Layoffs(melds, loose)
	if len(melds[0].Cards) != 3 {
		t.Fatalf("input meld grew to %d cards", len(melds[0].Cards))
	}
}
