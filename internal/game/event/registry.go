package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrGameIDRequired indicates a missing game id.
	ErrGameIDRequired = errors.New("game id is required")
	// ErrTypeRequired indicates a missing event type.
	ErrTypeRequired = errors.New("event type is required")
	// ErrTypeUnknown indicates an unregistered event type.
	ErrTypeUnknown = errors.New("event type is not registered")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for player/ai actors.
	ErrActorIDRequired = errors.New("actor id is required for player or ai")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Definition registers metadata for an event type.
type Definition struct {
	Type            Type
	ValidatePayload PayloadValidator
}

// Registry stores event definitions and validates events before append.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new event type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("event type %q is already registered", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Definition returns the definition for a type when registered.
func (r *Registry) Definition(eventType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.definitions[eventType]
	return def, ok
}

// ValidateForAppend normalizes and validates an event before persistence.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if r == nil {
		return Event{}, errors.New("registry is required")
	}
	evt.GameID = strings.TrimSpace(evt.GameID)
	if evt.GameID == "" {
		return Event{}, ErrGameIDRequired
	}
	if !evt.Type.IsValid() {
		return Event{}, ErrTypeRequired
	}
	def, ok := r.definitions[evt.Type]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}

	switch evt.ActorType {
	case ActorTypeSystem:
		// System events carry no actor id.
	case ActorTypePlayer, ActorTypeAI:
		if strings.TrimSpace(evt.ActorID) == "" {
			return Event{}, ErrActorIDRequired
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrActorTypeInvalid, evt.ActorType)
	}

	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, ErrPayloadInvalid
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(evt.PayloadJSON); err != nil {
			return Event{}, fmt.Errorf("payload for %s: %w", evt.Type, err)
		}
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	return evt, nil
}

// NewGameRegistry builds the registry covering every journal event type,
// with payload validators that decode through the closed payload union.
func NewGameRegistry() (*Registry, error) {
	registry := NewRegistry()
	types := []Type{
		TypePlayerJoined,
		TypePlayerReady,
		TypeGameStarted,
		TypeUpcardTaken,
		TypeUpcardPassed,
		TypeCardDrawn,
		TypeCardDiscarded,
		TypeRoundKnocked,
		TypeRoundGin,
		TypeRoundStarted,
	}
	for _, eventType := range types {
		eventType := eventType
		err := registry.Register(Definition{
			Type: eventType,
			ValidatePayload: func(raw json.RawMessage) error {
				_, err := DecodePayload(eventType, raw)
				return err
			},
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", eventType, err)
		}
	}
	return registry, nil
}
