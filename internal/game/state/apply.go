package state

import (
	"errors"
	"fmt"

	"github.com/louisbranch/meldtable/internal/game/card"
	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/game/meld"
)

const handSize = 10

// deadHandStockFloor ends a round as a dead hand once a discard leaves the
// stock at or below this many cards. Neither player scores.
const deadHandStockFloor = 2

// ErrUnknownPlayer indicates an event referencing a seat the state lacks.
var ErrUnknownPlayer = errors.New("player is not seated at this game")

// Apply folds one event into the state. Events are assumed to come from the
// journal in sequence order; Apply only fails on data that could never have
// been appended by a validated decision.
func (s *GameState) Apply(evt event.Event) error {
	if s == nil {
		return errors.New("state is required")
	}

	payload, err := event.DecodePayload(evt.Type, evt.PayloadJSON)
	if err != nil {
		return fmt.Errorf("apply %s at seq %d: %w", evt.Type, evt.Seq, err)
	}

	switch p := payload.(type) {
	case *event.PlayerJoinedPayload:
		err = s.applyPlayerJoined(p)
	case *event.PlayerReadyPayload:
		err = s.applyPlayerReady(p)
	case *event.GameStartedPayload:
		err = s.applyGameStarted(p)
	case *event.UpcardTakenPayload:
		err = s.applyUpcardTaken(evt.ActorID)
	case *event.UpcardPassedPayload:
		err = s.applyUpcardPassed(evt.ActorID)
	case *event.CardDrawnPayload:
		err = s.applyCardDrawn(evt.ActorID, p)
	case *event.CardDiscardedPayload:
		err = s.applyCardDiscarded(evt.ActorID, p)
	case *event.RoundKnockedPayload:
		err = s.applyRoundEnded(evt.ActorID, p.Card, p.Melds, false)
	case *event.RoundGinPayload:
		err = s.applyRoundEnded(evt.ActorID, p.Card, p.Melds, true)
	case *event.RoundStartedPayload:
		err = s.applyRoundStarted(p)
	default:
		err = fmt.Errorf("unhandled payload type %T", payload)
	}
	if err != nil {
		return fmt.Errorf("apply %s at seq %d: %w", evt.Type, evt.Seq, err)
	}

	s.Version = evt.Seq
	return nil
}

// ApplyAll folds a batch of events in order.
func (s *GameState) ApplyAll(events []event.Event) error {
	for _, evt := range events {
		if err := s.Apply(evt); err != nil {
			return err
		}
	}
	return nil
}

// Replay folds a full journal from scratch.
func Replay(gameID string, events []event.Event) (*GameState, error) {
	s := New(gameID)
	if err := s.ApplyAll(events); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GameState) applyPlayerJoined(p *event.PlayerJoinedPayload) error {
	if s.Player(p.PlayerID) != nil {
		return fmt.Errorf("player %s already seated", p.PlayerID)
	}
	if len(s.Players) >= MaxPlayers {
		return errors.New("table is full")
	}
	s.Players = append(s.Players, Player{
		ID:          p.PlayerID,
		DisplayName: p.DisplayName,
		Scripted:    p.Scripted,
		Hand:        []card.Card{},
	})
	return nil
}

func (s *GameState) applyPlayerReady(p *event.PlayerReadyPayload) error {
	seat := s.Player(p.PlayerID)
	if seat == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, p.PlayerID)
	}
	seat.Ready = true
	return nil
}

func (s *GameState) applyGameStarted(p *event.GameStartedPayload) error {
	s.TargetScore = p.TargetScore
	if s.TargetScore <= 0 {
		s.TargetScore = DefaultTargetScore
	}
	s.RoundNumber = 1
	return s.deal(p.Seed, p.DealerID, p.FirstActorID)
}

func (s *GameState) applyRoundStarted(p *event.RoundStartedPayload) error {
	s.RoundNumber++
	return s.deal(p.Seed, p.DealerID, p.FirstActorID)
}

// deal reconstructs the exact deal from the recorded shuffle seed. The
// non-dealer receives the first ten cards, the dealer the next ten, the next
// card opens the discard pile, and the remainder forms the stock with its
// top at index zero.
func (s *GameState) deal(seed int64, dealerID, firstActorID string) error {
	dealer := s.Player(dealerID)
	first := s.Player(firstActorID)
	if dealer == nil || first == nil || dealerID == firstActorID {
		return fmt.Errorf("deal needs distinct seats, got dealer %q first %q", dealerID, firstActorID)
	}

	deck := card.ShuffledDeck(seed)
	first.Hand = append([]card.Card{}, deck[:handSize]...)
	dealer.Hand = append([]card.Card{}, deck[handSize:2*handSize]...)
	s.DiscardPile = []card.Card{deck[2*handSize]}
	s.Stock = append([]card.Card{}, deck[2*handSize+1:]...)

	s.DealerID = dealerID
	s.CurrentActorID = firstActorID
	s.UpcardPasses = 0
	s.Phase = PhaseUpcardDecision
	return nil
}

func (s *GameState) applyUpcardTaken(actorID string) error {
	seat := s.Player(actorID)
	if seat == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, actorID)
	}
	top, ok := s.TopDiscard()
	if !ok {
		return errors.New("discard pile is empty")
	}
	s.DiscardPile = s.DiscardPile[:len(s.DiscardPile)-1]
	seat.Hand = append(seat.Hand, top)
	s.CurrentActorID = actorID
	s.Phase = PhaseDiscard
	return nil
}

func (s *GameState) applyUpcardPassed(actorID string) error {
	opponent := s.Opponent(actorID)
	if opponent == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, actorID)
	}
	s.UpcardPasses++
	if s.UpcardPasses >= MaxPlayers {
		// Both passed: the non-dealer must open by drawing from the stock.
		s.CurrentActorID = s.nonDealerID()
		s.Phase = PhaseDraw
		return nil
	}
	s.CurrentActorID = opponent.ID
	return nil
}

func (s *GameState) applyCardDrawn(actorID string, p *event.CardDrawnPayload) error {
	seat := s.Player(actorID)
	if seat == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, actorID)
	}
	switch p.Source {
	case event.DrawSourceStock:
		if len(s.Stock) == 0 {
			return errors.New("stock is empty")
		}
		seat.Hand = append(seat.Hand, s.Stock[0])
		s.Stock = s.Stock[1:]
	case event.DrawSourceDiscard:
		top, ok := s.TopDiscard()
		if !ok {
			return errors.New("discard pile is empty")
		}
		s.DiscardPile = s.DiscardPile[:len(s.DiscardPile)-1]
		seat.Hand = append(seat.Hand, top)
	default:
		return fmt.Errorf("unknown draw source %q", p.Source)
	}
	s.Phase = PhaseDiscard
	return nil
}

func (s *GameState) applyCardDiscarded(actorID string, p *event.CardDiscardedPayload) error {
	seat := s.Player(actorID)
	if seat == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, actorID)
	}
	if !seat.removeFromHand(p.Card) {
		return fmt.Errorf("card %v is not in hand", p.Card)
	}
	s.DiscardPile = append(s.DiscardPile, p.Card)

	if len(s.Stock) <= deadHandStockFloor {
		s.LastRound = &RoundResult{Number: s.RoundNumber}
		s.CurrentActorID = ""
		s.Phase = PhaseRoundOver
		return nil
	}

	opponent := s.Opponent(actorID)
	if opponent == nil {
		return errors.New("table is not full")
	}
	s.CurrentActorID = opponent.ID
	s.Phase = PhaseDraw
	return nil
}

// applyRoundEnded settles a knock or gin. The grouping recorded in the event
// is authoritative; settlement never re-derives the knocker's melds.
func (s *GameState) applyRoundEnded(actorID string, discard card.Card, melds []meld.Meld, gin bool) error {
	knocker := s.Player(actorID)
	defender := s.Opponent(actorID)
	if knocker == nil || defender == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, actorID)
	}
	if !knocker.removeFromHand(discard) {
		return fmt.Errorf("card %v is not in hand", discard)
	}
	s.DiscardPile = append(s.DiscardPile, discard)

	knockerDeadwood, err := meld.Deadwood(knocker.Hand, melds)
	if err != nil {
		return fmt.Errorf("knocker grouping: %w", err)
	}

	best := meld.Best(defender.Hand)
	loose, err := meld.Unmelded(defender.Hand, best.Melds)
	if err != nil {
		return fmt.Errorf("defender grouping: %w", err)
	}

	result := &RoundResult{
		Number:          s.RoundNumber,
		KnockerID:       knocker.ID,
		Gin:             gin,
		KnockerDeadwood: knockerDeadwood,
	}

	if gin {
		// No layoffs against gin.
		result.DefenderDeadwood = meld.Points(loose)
		result.WinnerID = knocker.ID
		result.Points = result.DefenderDeadwood + ginBonus
	} else {
		laid, remaining := meld.Layoffs(melds, loose)
		result.LaidOff = laid
		result.DefenderDeadwood = meld.Points(remaining)
		if result.DefenderDeadwood <= knockerDeadwood {
			// Defender ties or beats the knocker: undercut.
			result.Undercut = true
			result.WinnerID = defender.ID
			result.Points = knockerDeadwood - result.DefenderDeadwood + undercutBonus
		} else {
			result.WinnerID = knocker.ID
			result.Points = result.DefenderDeadwood - knockerDeadwood
		}
	}

	winner := s.Player(result.WinnerID)
	winner.Score += result.Points

	s.LastRound = result
	s.CurrentActorID = ""
	if winner.Score >= s.TargetScore {
		s.Phase = PhaseGameOver
	} else {
		s.Phase = PhaseRoundOver
	}
	return nil
}

const (
	ginBonus      = 25
	undercutBonus = 25
)

func (s *GameState) nonDealerID() string {
	for _, p := range s.Players {
		if p.ID != s.DealerID {
			return p.ID
		}
	}
	return ""
}
