// Package event defines the canonical event envelope and event-type registry
// for the game journal.
//
// Events are immutable facts emitted by accepted moves. The registry enforces
// actor metadata and payload validity before persistence assigns sequence
// numbers. A stable event contract is the foundation for replay and for the
// audit log exposed to spectators.
package event

import (
	"strings"
	"time"
)

// Type identifies the type of a game event.
type Type string

// Table lifecycle events.
const (
	// TypePlayerJoined records a player taking a seat at a game.
	TypePlayerJoined Type = "player.joined"
	// TypePlayerReady records a seated player marking themselves ready.
	TypePlayerReady Type = "player.ready"
	// TypeGameStarted records the first deal of a game.
	TypeGameStarted Type = "game.started"
)

// Move events.
const (
	// TypeUpcardTaken records the upcard being taken during the upcard decision.
	TypeUpcardTaken Type = "upcard.taken"
	// TypeUpcardPassed records an actor declining the upcard.
	TypeUpcardPassed Type = "upcard.passed"
	// TypeCardDrawn records a draw from the stock or the discard pile.
	TypeCardDrawn Type = "card.drawn"
	// TypeCardDiscarded records a plain discard ending the actor's turn.
	TypeCardDiscarded Type = "card.discarded"
)

// Round boundary events.
const (
	// TypeRoundKnocked records a knock with the actor's chosen grouping.
	TypeRoundKnocked Type = "round.knocked"
	// TypeRoundGin records going gin with the actor's chosen grouping.
	TypeRoundGin Type = "round.gin"
	// TypeRoundStarted records a fresh deal after a finished round.
	TypeRoundStarted Type = "round.started"
)

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "card", "round").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the server itself.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates the event was triggered by a human player.
	ActorTypePlayer ActorType = "player"
	// ActorTypeAI indicates the event was triggered by a scripted opponent.
	ActorTypeAI ActorType = "ai"
)

// Event represents an immutable entry in a game's journal.
type Event struct {
	// GameID is the game this event belongs to.
	GameID string
	// Seq is the event sequence number within the game (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// ID is a globally unique identifier. Assigned by storage on append.
	ID string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the player ID for player and ai actors, empty for system.
	ActorID string
	// RequestID is the caller-supplied idempotency key, empty when the
	// event was not produced by a retryable client request.
	RequestID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}
