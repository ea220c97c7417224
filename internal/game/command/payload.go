package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/meldtable/internal/game/card"
	"github.com/louisbranch/meldtable/internal/game/meld"
)

// JoinGamePayload carries the data for game.join commands. The joining
// player's id travels in the envelope actor id.
type JoinGamePayload struct {
	DisplayName string `json:"display_name"`
	Scripted    bool   `json:"scripted,omitempty"`
}

// DiscardPayload carries the card for move.discard commands.
type DiscardPayload struct {
	Card card.Card `json:"card"`
}

// KnockPayload carries the discard and the chosen meld grouping for
// move.knock commands.
type KnockPayload struct {
	Card  card.Card   `json:"card"`
	Melds []meld.Meld `json:"melds"`
}

// GinPayload carries the discard and the chosen meld grouping for
// move.gin commands.
type GinPayload struct {
	Card  card.Card   `json:"card"`
	Melds []meld.Meld `json:"melds"`
}

func decodeInto(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	return nil
}

func validateCardPayload(raw json.RawMessage) error {
	var payload DiscardPayload
	if err := decodeInto(raw, &payload); err != nil {
		return err
	}
	if !payload.Card.Valid() {
		return errors.New("card is required")
	}
	return nil
}

func validateMeldedPayload(raw json.RawMessage) error {
	var payload KnockPayload
	if err := decodeInto(raw, &payload); err != nil {
		return err
	}
	if !payload.Card.Valid() {
		return errors.New("card is required")
	}
	for i, m := range payload.Melds {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("meld %d: %w", i, err)
		}
	}
	return nil
}

func validateEmptyPayload(raw json.RawMessage) error {
	var payload struct{}
	return decodeInto(raw, &payload)
}

func validateJoinPayload(raw json.RawMessage) error {
	var payload JoinGamePayload
	return decodeInto(raw, &payload)
}

// NewGameRegistry builds the registry covering every supported command type.
func NewGameRegistry() (*Registry, error) {
	registry := NewRegistry()
	definitions := []Definition{
		{Type: TypeJoinGame, ValidatePayload: validateJoinPayload},
		{Type: TypeMarkReady, ValidatePayload: validateEmptyPayload},
		{Type: TypeTakeUpcard, ValidatePayload: validateEmptyPayload},
		{Type: TypePassUpcard, ValidatePayload: validateEmptyPayload},
		{Type: TypeDrawStock, ValidatePayload: validateEmptyPayload},
		{Type: TypeDrawDiscard, ValidatePayload: validateEmptyPayload},
		{Type: TypeDiscard, ValidatePayload: validateCardPayload},
		{Type: TypeKnock, ValidatePayload: validateMeldedPayload},
		{Type: TypeGin, ValidatePayload: validateMeldedPayload},
		{Type: TypeStartNewRound, ValidatePayload: validateEmptyPayload},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return nil, fmt.Errorf("register %s: %w", def.Type, err)
		}
	}
	return registry, nil
}
