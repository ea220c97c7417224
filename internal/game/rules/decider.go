// Package rules validates moves against the materialized game state and
// decides which events they produce.
//
// Decisions are pure: the decider never touches storage and never mutates
// the state it is given, so the same state and command always produce the
// same decision. Rejections are deterministic outcomes carried in the
// decision, never errors.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/meldtable/internal/game/card"
	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/game/meld"
	"github.com/louisbranch/meldtable/internal/game/state"
	apperrors "github.com/louisbranch/meldtable/internal/platform/errors"
	"github.com/louisbranch/meldtable/internal/random"
)

// maxKnockDeadwood is the highest deadwood total that still allows a knock.
const maxKnockDeadwood = 10

// SeedFunc produces shuffle seeds for new deals.
type SeedFunc func() (int64, error)

// Decider turns validated commands into decisions.
type Decider struct {
	newSeed SeedFunc
}

// NewDecider creates a decider. A nil seed function falls back to
// crypto-seeded shuffles; tests inject a fixed one for repeatable deals.
func NewDecider(newSeed SeedFunc) *Decider {
	if newSeed == nil {
		newSeed = random.NewSeed
	}
	return &Decider{newSeed: newSeed}
}

// Decide evaluates a command against the current state. Commands must have
// passed registry validation first. Errors are reserved for malformed data
// that validation should have caught; everything rule-shaped comes back as
// a rejection.
func (d *Decider) Decide(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if s == nil {
		return command.Decision{}, fmt.Errorf("state is required")
	}

	switch cmd.Type {
	case command.TypeJoinGame:
		return d.decideJoin(s, cmd)
	case command.TypeMarkReady:
		return d.decideReady(s, cmd)
	case command.TypeTakeUpcard:
		return d.decideTakeUpcard(s, cmd)
	case command.TypePassUpcard:
		return d.decidePassUpcard(s, cmd)
	case command.TypeDrawStock:
		return d.decideDraw(s, cmd, event.DrawSourceStock)
	case command.TypeDrawDiscard:
		return d.decideDraw(s, cmd, event.DrawSourceDiscard)
	case command.TypeDiscard:
		return d.decideDiscard(s, cmd)
	case command.TypeKnock:
		return d.decideRoundEnd(s, cmd, false)
	case command.TypeGin:
		return d.decideRoundEnd(s, cmd, true)
	case command.TypeStartNewRound:
		return d.decideStartNewRound(s, cmd)
	default:
		return command.Decision{}, fmt.Errorf("unhandled command type %s", cmd.Type)
	}
}

func reject(code apperrors.Code, message string) command.Decision {
	return command.Reject(command.Rejection{Code: string(code), Message: message})
}

// checkTurn enforces the phase and current-actor invariants shared by every
// in-round move. Phase is checked before turn so a finished round reports
// WRONG_PHASE rather than a turn complaint against an empty actor.
func checkTurn(s *state.GameState, actorID string, phase state.Phase) *command.Decision {
	if s.Phase != phase {
		d := reject(apperrors.CodeWrongPhase,
			fmt.Sprintf("move requires phase %s, game is in %s", phase, s.Phase))
		return &d
	}
	if s.CurrentActorID != actorID {
		d := reject(apperrors.CodeNotYourTurn,
			fmt.Sprintf("it is %s's turn", s.CurrentActorID))
		return &d
	}
	return nil
}

func (d *Decider) decideJoin(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if s.Phase != state.PhaseLobby {
		return reject(apperrors.CodeWrongPhase, "game has already started"), nil
	}
	if s.Player(cmd.ActorID) != nil {
		return reject(apperrors.CodeAlreadyJoined,
			fmt.Sprintf("player %s already has a seat", cmd.ActorID)), nil
	}
	if len(s.Players) >= state.MaxPlayers {
		return reject(apperrors.CodeGameFull, "both seats are taken"), nil
	}

	var payload command.JoinGamePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode join payload: %w", err)
	}
	displayName := payload.DisplayName
	if displayName == "" {
		displayName = cmd.ActorID
	}

	evt, err := newEvent(cmd, event.TypePlayerJoined, event.PlayerJoinedPayload{
		PlayerID:    cmd.ActorID,
		DisplayName: displayName,
		Scripted:    payload.Scripted,
	})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

func (d *Decider) decideReady(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if s.Phase != state.PhaseLobby {
		return reject(apperrors.CodeWrongPhase, "game has already started"), nil
	}
	seat := s.Player(cmd.ActorID)
	if seat == nil {
		return reject(apperrors.CodeNotFound,
			fmt.Sprintf("player %s has no seat at this game", cmd.ActorID)), nil
	}

	readyEvt, err := newEvent(cmd, event.TypePlayerReady, event.PlayerReadyPayload{
		PlayerID: cmd.ActorID,
	})
	if err != nil {
		return command.Decision{}, err
	}

	if !tableReadyAfter(s, cmd.ActorID) {
		return command.Accept(readyEvt), nil
	}

	// Last ready flips the table into play. The first seat deals and the
	// second seat gets the opening upcard decision.
	seed, err := d.newSeed()
	if err != nil {
		return command.Decision{}, fmt.Errorf("new shuffle seed: %w", err)
	}
	startEvt, err := systemEvent(cmd.GameID, event.TypeGameStarted, event.GameStartedPayload{
		Seed:         seed,
		DealerID:     s.Players[0].ID,
		FirstActorID: s.Players[1].ID,
		TargetScore:  state.DefaultTargetScore,
	})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(readyEvt, startEvt), nil
}

func tableReadyAfter(s *state.GameState, readyActorID string) bool {
	if len(s.Players) != state.MaxPlayers {
		return false
	}
	for _, p := range s.Players {
		if !p.Ready && p.ID != readyActorID {
			return false
		}
	}
	return true
}

func (d *Decider) decideTakeUpcard(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if rejection := checkTurn(s, cmd.ActorID, state.PhaseUpcardDecision); rejection != nil {
		return *rejection, nil
	}
	top, ok := s.TopDiscard()
	if !ok {
		return command.Decision{}, fmt.Errorf("upcard decision with empty discard pile")
	}
	evt, err := newEvent(cmd, event.TypeUpcardTaken, event.UpcardTakenPayload{Card: top})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

func (d *Decider) decidePassUpcard(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if rejection := checkTurn(s, cmd.ActorID, state.PhaseUpcardDecision); rejection != nil {
		return *rejection, nil
	}
	evt, err := newEvent(cmd, event.TypeUpcardPassed, event.UpcardPassedPayload{})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

func (d *Decider) decideDraw(s *state.GameState, cmd command.Command, source event.DrawSource) (command.Decision, error) {
	if rejection := checkTurn(s, cmd.ActorID, state.PhaseDraw); rejection != nil {
		return *rejection, nil
	}
	if source == event.DrawSourceDiscard {
		if len(s.DiscardPile) == 0 {
			return reject(apperrors.CodeMoveArgsInvalid, "discard pile is empty"), nil
		}
		// After both players pass, the refused upcard stays off limits:
		// the round opens with a stock draw.
		if s.UpcardPasses >= state.MaxPlayers && roundUntouched(s) {
			return reject(apperrors.CodeWrongPhase,
				"upcard was declined by both players, draw from the stock"), nil
		}
	}
	evt, err := newEvent(cmd, event.TypeCardDrawn, event.CardDrawnPayload{Source: source})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

// roundUntouched reports whether no card has been drawn since the deal.
func roundUntouched(s *state.GameState) bool {
	dealt := state.MaxPlayers * 10
	return len(s.Stock) == len(card.Deck())-dealt-1 && len(s.DiscardPile) == 1
}

func (d *Decider) decideDiscard(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if rejection := checkTurn(s, cmd.ActorID, state.PhaseDiscard); rejection != nil {
		return *rejection, nil
	}

	var payload command.DiscardPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode discard payload: %w", err)
	}
	if !s.Player(cmd.ActorID).HandContains(payload.Card) {
		return reject(apperrors.CodeCardNotInHand,
			fmt.Sprintf("card %s is not in hand", payload.Card)), nil
	}

	evt, err := newEvent(cmd, event.TypeCardDiscarded, event.CardDiscardedPayload{Card: payload.Card})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

func (d *Decider) decideRoundEnd(s *state.GameState, cmd command.Command, gin bool) (command.Decision, error) {
	if rejection := checkTurn(s, cmd.ActorID, state.PhaseDiscard); rejection != nil {
		return *rejection, nil
	}

	var payload command.KnockPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode knock payload: %w", err)
	}

	seat := s.Player(cmd.ActorID)
	if !seat.HandContains(payload.Card) {
		return reject(apperrors.CodeCardNotInHand,
			fmt.Sprintf("card %s is not in hand", payload.Card)), nil
	}

	remaining := handWithout(seat.Hand, payload.Card)
	deadwood, err := meld.Deadwood(remaining, payload.Melds)
	if err != nil {
		return reject(apperrors.CodeMeldSpecInvalid, err.Error()), nil
	}

	if gin {
		if deadwood != 0 {
			return reject(apperrors.CodeDeadwoodTooHigh,
				fmt.Sprintf("gin requires zero deadwood, grouping leaves %d", deadwood)), nil
		}
		evt, err := newEvent(cmd, event.TypeRoundGin, event.RoundGinPayload{
			Card:  payload.Card,
			Melds: payload.Melds,
		})
		if err != nil {
			return command.Decision{}, err
		}
		return command.Accept(evt), nil
	}

	if deadwood > maxKnockDeadwood {
		return reject(apperrors.CodeDeadwoodTooHigh,
			fmt.Sprintf("knock requires at most %d deadwood, grouping leaves %d", maxKnockDeadwood, deadwood)), nil
	}
	evt, err := newEvent(cmd, event.TypeRoundKnocked, event.RoundKnockedPayload{
		Card:  payload.Card,
		Melds: payload.Melds,
	})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

func (d *Decider) decideStartNewRound(s *state.GameState, cmd command.Command) (command.Decision, error) {
	if s.Phase != state.PhaseRoundOver {
		return reject(apperrors.CodeRoundNotOver, "round is still in progress"), nil
	}
	if cmd.ActorType != command.ActorTypeSystem && s.Player(cmd.ActorID) == nil {
		return reject(apperrors.CodeNotFound,
			fmt.Sprintf("player %s has no seat at this game", cmd.ActorID)), nil
	}
	if len(s.Players) != state.MaxPlayers {
		return reject(apperrors.CodeNotEnoughPlayers, "both seats must be taken"), nil
	}

	// Deals alternate: last round's non-dealer deals the next one.
	var dealerID, firstActorID string
	for _, p := range s.Players {
		if p.ID == s.DealerID {
			firstActorID = p.ID
		} else {
			dealerID = p.ID
		}
	}

	seed, err := d.newSeed()
	if err != nil {
		return command.Decision{}, fmt.Errorf("new shuffle seed: %w", err)
	}
	evt, err := newEvent(cmd, event.TypeRoundStarted, event.RoundStartedPayload{
		Seed:         seed,
		DealerID:     dealerID,
		FirstActorID: firstActorID,
	})
	if err != nil {
		return command.Decision{}, err
	}
	return command.Accept(evt), nil
}

func handWithout(hand []card.Card, target card.Card) []card.Card {
	remaining := make([]card.Card, 0, len(hand))
	removed := false
	for _, c := range hand {
		if !removed && c == target {
			removed = true
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining
}

func newEvent(cmd command.Command, typ event.Type, payload any) (event.Event, error) {
	raw, err := event.EncodePayload(payload)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		GameID:      cmd.GameID,
		Type:        typ,
		ActorType:   eventActorType(cmd.ActorType),
		ActorID:     cmd.ActorID,
		RequestID:   cmd.RequestID,
		PayloadJSON: raw,
	}, nil
}

// systemEvent builds a server-originated event. It carries no request id:
// only the first event of a decision is the idempotency anchor.
func systemEvent(gameID string, typ event.Type, payload any) (event.Event, error) {
	raw, err := event.EncodePayload(payload)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		GameID:      gameID,
		Type:        typ,
		ActorType:   event.ActorTypeSystem,
		PayloadJSON: raw,
	}, nil
}

func eventActorType(actorType command.ActorType) event.ActorType {
	switch actorType {
	case command.ActorTypePlayer:
		return event.ActorTypePlayer
	case command.ActorTypeAI:
		return event.ActorTypeAI
	default:
		return event.ActorTypeSystem
	}
}
