package command

import (
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewGameRegistry()
	if err != nil {
		t.Fatalf("NewGameRegistry() error = %v, want nil", err)
	}
	return registry
}

func TestValidateForDecision(t *testing.T) {
	registry := newTestRegistry(t)

	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{
			name: "valid discard",
			cmd: Command{
				GameID:      "game-1",
				Type:        TypeDiscard,
				ActorType:   ActorTypePlayer,
				ActorID:     "alice",
				RequestID:   "req-1",
				PayloadJSON: []byte(`{"card":"7C"}`),
			},
		},
		{
			name:    "missing game id",
			cmd:     Command{Type: TypeDiscard, ActorType: ActorTypePlayer, ActorID: "alice", RequestID: "req-1"},
			wantErr: ErrGameIDRequired,
		},
		{
			name:    "unknown type",
			cmd:     Command{GameID: "game-1", Type: "move.shuffle", ActorType: ActorTypePlayer, ActorID: "alice", RequestID: "req-1"},
			wantErr: ErrTypeUnknown,
		},
		{
			name:    "player without actor id",
			cmd:     Command{GameID: "game-1", Type: TypeDrawStock, ActorType: ActorTypePlayer, RequestID: "req-1"},
			wantErr: ErrActorIDRequired,
		},
		{
			name:    "player without request id",
			cmd:     Command{GameID: "game-1", Type: TypeDrawStock, ActorType: ActorTypePlayer, ActorID: "alice"},
			wantErr: ErrRequestIDRequired,
		},
		{
			name:    "invalid actor type",
			cmd:     Command{GameID: "game-1", Type: TypeDrawStock, ActorType: "robot", ActorID: "alice", RequestID: "req-1"},
			wantErr: ErrActorTypeInvalid,
		},
		{
			name: "malformed payload",
			cmd: Command{
				GameID:      "game-1",
				Type:        TypeDiscard,
				ActorType:   ActorTypePlayer,
				ActorID:     "alice",
				RequestID:   "req-1",
				PayloadJSON: []byte(`{"card":`),
			},
			wantErr: ErrPayloadInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.ValidateForDecision(tt.cmd)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateForDecision() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateForDecision() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDecisionCanonicalizesPayload(t *testing.T) {
	registry := newTestRegistry(t)

	first, err := registry.ValidateForDecision(Command{
		GameID:      "game-1",
		Type:        TypeKnock,
		ActorType:   ActorTypePlayer,
		ActorID:     "alice",
		RequestID:   "req-1",
		PayloadJSON: []byte(`{"melds":[],"card":"9D"}`),
	})
	if err != nil {
		t.Fatalf("ValidateForDecision() error = %v, want nil", err)
	}
	second, err := registry.ValidateForDecision(Command{
		GameID:      "game-1",
		Type:        TypeKnock,
		ActorType:   ActorTypePlayer,
		ActorID:     "alice",
		RequestID:   "req-1",
		PayloadJSON: []byte(`{ "card": "9D", "melds": [] }`),
	})
	if err != nil {
		t.Fatalf("ValidateForDecision() error = %v, want nil", err)
	}
	if string(first.PayloadJSON) != string(second.PayloadJSON) {
		t.Fatalf("canonical payloads differ: %s vs %s", first.PayloadJSON, second.PayloadJSON)
	}
}

func TestValidateForDecisionRejectsBadCard(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.ValidateForDecision(Command{
		GameID:      "game-1",
		Type:        TypeDiscard,
		ActorType:   ActorTypePlayer,
		ActorID:     "alice",
		RequestID:   "req-1",
		PayloadJSON: []byte(`{"card":"ZZ"}`),
	})
	if err == nil {
		t.Fatal("ValidateForDecision() error = nil, want card rejection")
	}
}

func TestValidateForDecisionRejectsUnknownFields(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.ValidateForDecision(Command{
		GameID:      "game-1",
		Type:        TypeDrawStock,
		ActorType:   ActorTypePlayer,
		ActorID:     "alice",
		RequestID:   "req-1",
		PayloadJSON: []byte(`{"source":"stock"}`),
	})
	if err == nil {
		t.Fatal("ValidateForDecision() error = nil, want unknown field rejection")
	}
}

func TestSystemCommandNeedsNoRequestID(t *testing.T) {
	registry := newTestRegistry(t)

	cmd, err := registry.ValidateForDecision(Command{
		GameID: "game-1",
		Type:   TypeStartNewRound,
	})
	if err != nil {
		t.Fatalf("ValidateForDecision() error = %v, want nil", err)
	}
	if cmd.ActorType != ActorTypeSystem {
		t.Fatalf("ActorType = %q, want %q", cmd.ActorType, ActorTypeSystem)
	}
}

func TestListDefinitionsSorted(t *testing.T) {
	registry := newTestRegistry(t)

	defs := registry.ListDefinitions()
	if len(defs) != 10 {
		t.Fatalf("len(defs) = %d, want 10", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if string(defs[i-1].Type) >= string(defs[i].Type) {
			t.Fatalf("definitions out of order at %d: %s >= %s", i, defs[i-1].Type, defs[i].Type)
		}
	}
}
