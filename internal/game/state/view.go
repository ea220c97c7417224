package state

import "github.com/louisbranch/meldtable/internal/game/card"

// PlayerView is a seat as seen by a specific viewer. Hand is only populated
// for the viewer's own seat; opponents expose a count.
type PlayerView struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Scripted    bool        `json:"scripted,omitempty"`
	Ready       bool        `json:"ready"`
	Score       int         `json:"score"`
	HandCount   int         `json:"hand_count"`
	Hand        []card.Card `json:"hand,omitempty"`
}

// GameView is the externally visible state for one viewer. The stock is
// reduced to a count and opponent hands are redacted. Spectators pass an
// empty viewer id and see no hands at all.
type GameView struct {
	GameID         string       `json:"game_id"`
	Phase          Phase        `json:"phase"`
	Players        []PlayerView `json:"players"`
	StockCount     int          `json:"stock_count"`
	DiscardPile    []card.Card  `json:"discard_pile"`
	CurrentActorID string       `json:"current_actor_id,omitempty"`
	DealerID       string       `json:"dealer_id,omitempty"`
	RoundNumber    int          `json:"round_number"`
	TargetScore    int          `json:"target_score"`
	LastRound      *RoundResult `json:"last_round,omitempty"`
	Version        uint64       `json:"version"`
}

// View redacts the state for the given viewer.
func (s *GameState) View(viewerID string) GameView {
	view := GameView{
		GameID:         s.GameID,
		Phase:          s.Phase,
		StockCount:     len(s.Stock),
		DiscardPile:    append([]card.Card{}, s.DiscardPile...),
		CurrentActorID: s.CurrentActorID,
		DealerID:       s.DealerID,
		RoundNumber:    s.RoundNumber,
		TargetScore:    s.TargetScore,
		LastRound:      s.LastRound,
		Version:        s.Version,
	}
	for _, p := range s.Players {
		pv := PlayerView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Scripted:    p.Scripted,
			Ready:       p.Ready,
			Score:       p.Score,
			HandCount:   len(p.Hand),
		}
		if p.ID == viewerID && viewerID != "" {
			pv.Hand = append([]card.Card{}, p.Hand...)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}
