package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/meldtable/internal/game/card"
	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/engine"
	"github.com/louisbranch/meldtable/internal/game/state"
	"github.com/louisbranch/meldtable/internal/platform/id"
	"github.com/louisbranch/meldtable/internal/storage"
)

// Runner plays one seat of one game. It reads the redacted view, picks a
// move with the persona's strategy, and submits through the engine like any
// other client, including its own request ids and version handling.
type Runner struct {
	engine   *engine.Engine
	persona  Persona
	gameID   string
	playerID string
	logger   *log.Logger
}

// NewRunner creates a runner for a seat.
func NewRunner(eng *engine.Engine, persona Persona, gameID, playerID string, logger *log.Logger) (*Runner, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if gameID == "" || playerID == "" {
		return nil, fmt.Errorf("game id and player id are required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		engine:   eng,
		persona:  persona.normalize(),
		gameID:   gameID,
		playerID: playerID,
		logger:   logger,
	}, nil
}

// Play acts until it is no longer the runner's turn. Each invocation makes
// forward progress or returns; the caller schedules it after every human
// move that hands the turn over.
func (r *Runner) Play(ctx context.Context) error {
	for {
		acted, err := r.Act(ctx)
		if err != nil {
			return err
		}
		if !acted {
			return nil
		}
	}
}

// Act plays at most one move. It reports false when it is not the runner's
// turn or the game is not in a playable phase.
func (r *Runner) Act(ctx context.Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	current, err := r.engine.State(ctx, r.gameID)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	view := current.View(r.playerID)
	if view.CurrentActorID != r.playerID {
		return false, nil
	}

	cmd, ok := r.chooseCommand(view)
	if !ok {
		return false, nil
	}

	if r.persona.ThinkDelay > 0 {
		select {
		case <-time.After(r.persona.ThinkDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if err := r.submit(ctx, cmd); err != nil {
		return false, err
	}
	return true, nil
}

// chooseCommand maps the current phase to a move. The returned command has
// no request id or expected version yet; submit fills those in.
func (r *Runner) chooseCommand(view state.GameView) (command.Command, bool) {
	hand := viewerHand(view, r.playerID)

	switch view.Phase {
	case state.PhaseUpcardDecision:
		if top, ok := topDiscard(view); ok && wantsUpcard(hand, top, r.persona.UpcardMargin) {
			return r.command(command.TypeTakeUpcard, nil), true
		}
		return r.command(command.TypePassUpcard, nil), true

	case state.PhaseDraw:
		if top, ok := topDiscard(view); ok && wantsUpcard(hand, top, r.persona.UpcardMargin) {
			return r.command(command.TypeDrawDiscard, nil), true
		}
		return r.command(command.TypeDrawStock, nil), true

	case state.PhaseDiscard:
		move := chooseMove(hand, r.persona.KnockThreshold)
		switch move.Kind {
		case "gin":
			return r.command(command.TypeGin, command.GinPayload{Card: move.Card, Melds: move.Melds}), true
		case "knock":
			return r.command(command.TypeKnock, command.KnockPayload{Card: move.Card, Melds: move.Melds}), true
		default:
			return r.command(command.TypeDiscard, command.DiscardPayload{Card: move.Card}), true
		}

	default:
		return command.Command{}, false
	}
}

// submit sends the command at the current tail, resyncing and retrying once
// on a version conflict. A rejected draw from the discard pile falls back to
// the stock; the refused upcard after a double pass is the one case where
// the pile is visible but off limits.
func (r *Runner) submit(ctx context.Context, cmd command.Command) error {
	for attempt := 0; ; attempt++ {
		current, err := r.engine.State(ctx, r.gameID)
		if err != nil {
			return fmt.Errorf("resync state: %w", err)
		}
		cmd.ExpectedVersion = current.Version

		requestID, err := id.NewID()
		if err != nil {
			return fmt.Errorf("mint request id: %w", err)
		}
		cmd.RequestID = requestID

		_, err = r.engine.Submit(ctx, cmd)
		if err == nil {
			return nil
		}

		var conflict *storage.VersionConflictError
		if errors.As(err, &conflict) && attempt == 0 {
			r.logger.Printf("ai %s: version conflict at %d, resyncing to %d",
				r.playerID, conflict.ExpectedVersion, conflict.ServerVersion)
			continue
		}
		if cmd.Type == command.TypeDrawDiscard && attempt == 0 {
			r.logger.Printf("ai %s: discard draw rejected, drawing from stock: %v", r.playerID, err)
			cmd = r.command(command.TypeDrawStock, nil)
			continue
		}
		return fmt.Errorf("submit %s: %w", cmd.Type, err)
	}
}

func (r *Runner) command(typ command.Type, payload any) command.Command {
	cmd := command.Command{
		GameID:    r.gameID,
		Type:      typ,
		ActorType: command.ActorTypeAI,
		ActorID:   r.playerID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			// Payload types marshal without error by construction.
			panic(err)
		}
		cmd.PayloadJSON = raw
	}
	return cmd
}

func viewerHand(view state.GameView, playerID string) []card.Card {
	for _, p := range view.Players {
		if p.ID == playerID {
			return p.Hand
		}
	}
	return nil
}

func topDiscard(view state.GameView) (card.Card, bool) {
	if len(view.DiscardPile) == 0 {
		return card.Card{}, false
	}
	return view.DiscardPile[len(view.DiscardPile)-1], true
}
