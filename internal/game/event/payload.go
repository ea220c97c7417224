package event

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/meldtable/internal/game/card"
	"github.com/louisbranch/meldtable/internal/game/meld"
)

// DrawSource identifies where a drawn card came from.
type DrawSource string

const (
	// DrawSourceStock draws the top of the face-down stock.
	DrawSourceStock DrawSource = "stock"
	// DrawSourceDiscard draws the top of the discard pile.
	DrawSourceDiscard DrawSource = "discard"
)

// PlayerJoinedPayload captures the payload for player.joined events.
type PlayerJoinedPayload struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Scripted    bool   `json:"scripted,omitempty"`
}

// PlayerReadyPayload captures the payload for player.ready events.
type PlayerReadyPayload struct {
	PlayerID string `json:"player_id"`
}

// GameStartedPayload captures the payload for game.started events.
//
// The shuffle seed is authoritative: replay reconstructs the exact deal from
// it, so hands are never stored directly.
type GameStartedPayload struct {
	Seed         int64  `json:"seed"`
	DealerID     string `json:"dealer_id"`
	FirstActorID string `json:"first_actor_id"`
	TargetScore  int    `json:"target_score"`
}

// UpcardTakenPayload captures the payload for upcard.taken events.
type UpcardTakenPayload struct {
	Card card.Card `json:"card"`
}

// UpcardPassedPayload captures the payload for upcard.passed events.
type UpcardPassedPayload struct{}

// CardDrawnPayload captures the payload for card.drawn events.
type CardDrawnPayload struct {
	Source DrawSource `json:"source"`
}

// CardDiscardedPayload captures the payload for card.discarded events.
type CardDiscardedPayload struct {
	Card card.Card `json:"card"`
}

// RoundKnockedPayload captures the payload for round.knocked events.
//
// Melds is the knocker's chosen grouping and is authoritative for
// settlement; downstream consumers must not re-derive it.
type RoundKnockedPayload struct {
	Card  card.Card   `json:"card"`
	Melds []meld.Meld `json:"melds"`
}

// RoundGinPayload captures the payload for round.gin events.
type RoundGinPayload struct {
	Card  card.Card   `json:"card"`
	Melds []meld.Meld `json:"melds"`
}

// RoundStartedPayload captures the payload for round.started events.
type RoundStartedPayload struct {
	Seed         int64  `json:"seed"`
	DealerID     string `json:"dealer_id"`
	FirstActorID string `json:"first_actor_id"`
}

// DecodePayload decodes raw payload JSON into the typed payload for the
// event type. It is the single place untyped journal bytes become domain
// values, so state folding never sees loose JSON.
func DecodePayload(eventType Type, raw []byte) (any, error) {
	decode := func(target any) (any, error) {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return target, nil
	}

	switch eventType {
	case TypePlayerJoined:
		return decode(&PlayerJoinedPayload{})
	case TypePlayerReady:
		return decode(&PlayerReadyPayload{})
	case TypeGameStarted:
		return decode(&GameStartedPayload{})
	case TypeUpcardTaken:
		return decode(&UpcardTakenPayload{})
	case TypeUpcardPassed:
		return decode(&UpcardPassedPayload{})
	case TypeCardDrawn:
		return decode(&CardDrawnPayload{})
	case TypeCardDiscarded:
		return decode(&CardDiscardedPayload{})
	case TypeRoundKnocked:
		return decode(&RoundKnockedPayload{})
	case TypeRoundGin:
		return decode(&RoundGinPayload{})
	case TypeRoundStarted:
		return decode(&RoundStartedPayload{})
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

// EncodePayload encodes a typed payload as JSON for the journal.
func EncodePayload(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}
