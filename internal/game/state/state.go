// Package state materializes a game from its event journal.
//
// GameState is derived, never authoritative: the journal is the source of
// truth and folding the same events always yields the same state, byte for
// byte. Snapshots serialize this struct as a replay shortcut.
package state

import (
	"github.com/louisbranch/meldtable/internal/game/card"
)

// Phase identifies where a game is in its lifecycle.
type Phase string

const (
	// PhaseLobby waits for both seats to fill and both players to ready up.
	PhaseLobby Phase = "lobby"
	// PhaseUpcardDecision lets each player in turn take or pass the upcard.
	PhaseUpcardDecision Phase = "upcard_decision"
	// PhaseDraw waits for the current actor to draw from stock or discard.
	PhaseDraw Phase = "draw"
	// PhaseDiscard waits for the current actor to discard, knock, or gin.
	PhaseDiscard Phase = "discard"
	// PhaseRoundOver waits for either player to deal the next round.
	PhaseRoundOver Phase = "round_over"
	// PhaseGameOver is terminal: a player reached the target score.
	PhaseGameOver Phase = "game_over"
)

// MaxPlayers is the number of seats at a table.
const MaxPlayers = 2

// DefaultTargetScore ends the game when a player's total reaches it.
const DefaultTargetScore = 100

// Player is one seat at the table.
type Player struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Scripted    bool        `json:"scripted,omitempty"`
	Ready       bool        `json:"ready"`
	Score       int         `json:"score"`
	Hand        []card.Card `json:"hand"`
}

// RoundResult records how the last finished round was settled.
type RoundResult struct {
	Number int `json:"number"`
	// KnockerID is empty when the round died with an exhausted stock.
	KnockerID        string      `json:"knocker_id,omitempty"`
	WinnerID         string      `json:"winner_id,omitempty"`
	Gin              bool        `json:"gin,omitempty"`
	Undercut         bool        `json:"undercut,omitempty"`
	KnockerDeadwood  int         `json:"knocker_deadwood"`
	DefenderDeadwood int         `json:"defender_deadwood"`
	LaidOff          []card.Card `json:"laid_off,omitempty"`
	Points           int         `json:"points"`
}

// GameState is the materialized view of one game's journal.
type GameState struct {
	GameID         string       `json:"game_id"`
	Phase          Phase        `json:"phase"`
	Players        []Player     `json:"players"`
	Stock          []card.Card  `json:"stock"`
	DiscardPile    []card.Card  `json:"discard_pile"`
	CurrentActorID string       `json:"current_actor_id,omitempty"`
	DealerID       string       `json:"dealer_id,omitempty"`
	UpcardPasses   int          `json:"upcard_passes"`
	RoundNumber    int          `json:"round_number"`
	TargetScore    int          `json:"target_score"`
	LastRound      *RoundResult `json:"last_round,omitempty"`
	// Version equals the sequence number of the last applied event.
	Version uint64 `json:"version"`
}

// New returns the empty pre-journal state of a game.
func New(gameID string) *GameState {
	return &GameState{
		GameID:  gameID,
		Phase:   PhaseLobby,
		Players: []Player{},
	}
}

// Player returns the seat with the given id, or nil.
func (s *GameState) Player(id string) *Player {
	if s == nil || id == "" {
		return nil
	}
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// Opponent returns the other seat, or nil when the table is not full.
func (s *GameState) Opponent(id string) *Player {
	if s == nil || len(s.Players) != MaxPlayers {
		return nil
	}
	for i := range s.Players {
		if s.Players[i].ID != id {
			return &s.Players[i]
		}
	}
	return nil
}

// TopDiscard returns the top of the discard pile.
func (s *GameState) TopDiscard() (card.Card, bool) {
	if s == nil || len(s.DiscardPile) == 0 {
		return card.Card{}, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// HandContains reports whether the player's hand holds the card.
func (p *Player) HandContains(target card.Card) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Hand {
		if c == target {
			return true
		}
	}
	return false
}

func (p *Player) removeFromHand(target card.Card) bool {
	if p == nil {
		return false
	}
	for i, c := range p.Hand {
		if c == target {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}
