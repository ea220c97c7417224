// Package command defines the move envelope and validation entry points.
//
// Every state change request, whether from a player, a scripted opponent, or
// the server itself, arrives as a Command. The registry normalizes the
// envelope and validates the payload before the decider sees it.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/meldtable/internal/game/encoding"
)

var (
	// ErrGameIDRequired indicates a missing game id.
	ErrGameIDRequired = errors.New("game id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for player/ai commands.
	ErrActorIDRequired = errors.New("actor id is required for player or ai")
	// ErrRequestIDRequired indicates a missing request id on a player move.
	ErrRequestIDRequired = errors.New("request id is required")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// Lobby commands.
const (
	// TypeJoinGame seats a player at a game.
	TypeJoinGame Type = "game.join"
	// TypeMarkReady marks a seated player ready to start.
	TypeMarkReady Type = "game.ready"
)

// Move commands.
const (
	// TypeTakeUpcard takes the face-up card during the upcard decision.
	TypeTakeUpcard Type = "move.take_upcard"
	// TypePassUpcard declines the face-up card during the upcard decision.
	TypePassUpcard Type = "move.pass_upcard"
	// TypeDrawStock draws the top card of the stock.
	TypeDrawStock Type = "move.draw_stock"
	// TypeDrawDiscard draws the top card of the discard pile.
	TypeDrawDiscard Type = "move.draw_discard"
	// TypeDiscard discards a card, ending the turn.
	TypeDiscard Type = "move.discard"
	// TypeKnock discards and ends the round with ten or fewer deadwood points.
	TypeKnock Type = "move.knock"
	// TypeGin discards and ends the round with zero deadwood.
	TypeGin Type = "move.gin"
	// TypeStartNewRound deals the next round after a finished one.
	TypeStartNewRound Type = "move.start_new_round"
)

// ActorType identifies who issued the command.
type ActorType string

const (
	// ActorTypeSystem indicates a server-originated command.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates a player-originated command.
	ActorTypePlayer ActorType = "player"
	// ActorTypeAI indicates a scripted-opponent command.
	ActorTypeAI ActorType = "ai"
)

// Command captures the canonical move envelope.
type Command struct {
	GameID          string
	Type            Type
	ActorType       ActorType
	ActorID         string
	RequestID       string
	ExpectedVersion uint64
	PayloadJSON     []byte
}

// Definition registers metadata for a command type.
type Definition struct {
	Type            Type
	ValidatePayload PayloadValidator
}

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDecision validates and normalizes a command before decision
// handling. The payload is rewritten into canonical JSON so idempotent
// retries compare byte-for-byte.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.GameID = strings.TrimSpace(cmd.GameID)
	if cmd.GameID == "" {
		return Command{}, ErrGameIDRequired
	}
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	def, ok := r.definitions[cmd.Type]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrTypeUnknown, cmd.Type)
	}

	cmd.ActorType = ActorType(strings.TrimSpace(string(cmd.ActorType)))
	if cmd.ActorType == "" {
		cmd.ActorType = ActorTypeSystem
	}
	switch cmd.ActorType {
	case ActorTypeSystem, ActorTypePlayer, ActorTypeAI:
		// allowed
	default:
		return Command{}, ErrActorTypeInvalid
	}
	cmd.ActorID = strings.TrimSpace(cmd.ActorID)
	if (cmd.ActorType == ActorTypePlayer || cmd.ActorType == ActorTypeAI) && cmd.ActorID == "" {
		return Command{}, ErrActorIDRequired
	}

	cmd.RequestID = strings.TrimSpace(cmd.RequestID)
	if cmd.ActorType != ActorTypeSystem && cmd.RequestID == "" {
		return Command{}, ErrRequestIDRequired
	}

	if len(cmd.PayloadJSON) == 0 {
		cmd.PayloadJSON = []byte("{}")
	}
	if !json.Valid(cmd.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	canonical, err := encoding.CanonicalJSON(json.RawMessage(cmd.PayloadJSON))
	if err != nil {
		return Command{}, fmt.Errorf("canonical payload json: %w", err)
	}
	cmd.PayloadJSON = canonical

	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(cmd.PayloadJSON)); err != nil {
			return Command{}, fmt.Errorf("payload invalid: %w", err)
		}
	}
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	cmdType = Type(strings.TrimSpace(string(cmdType)))
	if cmdType == "" {
		return Definition{}, false
	}
	def, ok := r.definitions[cmdType]
	return def, ok
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return string(definitions[i].Type) < string(definitions[j].Type)
	})
	return definitions
}
