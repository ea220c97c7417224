package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/engine"
	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/game/rules"
	"github.com/louisbranch/meldtable/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eventRegistry, err := event.NewGameRegistry()
	if err != nil {
		t.Fatalf("build event registry: %v", err)
	}
	commandRegistry, err := command.NewGameRegistry()
	if err != nil {
		t.Fatalf("build command registry: %v", err)
	}
	eng, err := engine.New(memory.New(eventRegistry), commandRegistry,
		engine.WithDecider(rules.NewDecider(func() (int64, error) { return 42, nil })),
		engine.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(eng).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, playerID string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if playerID != "" {
		req.Header.Set("X-Player-ID", playerID)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func createGame(t *testing.T, server *httptest.Server) string {
	t.Helper()
	status, body := doJSON(t, server, http.MethodPost, "/games", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("POST /games status = %d, want 201", status)
	}
	gameID, _ := body["gameId"].(string)
	if gameID == "" {
		t.Fatalf("POST /games returned no game id: %v", body)
	}
	return gameID
}

// startGame joins alice and bob and readies both, leaving the table at
// version 5 with bob holding the upcard decision.
func startGame(t *testing.T, server *httptest.Server) string {
	t.Helper()
	gameID := createGame(t, server)
	for i, player := range []string{"alice", "bob"} {
		status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/join", player,
			map[string]any{"requestId": "join-" + player, "expectedVersion": i, "displayName": player})
		if status != http.StatusOK {
			t.Fatalf("join %s status = %d, body %v", player, status, body)
		}
	}
	for i, player := range []string{"alice", "bob"} {
		status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/ready", player,
			map[string]any{"requestId": "ready-" + player, "expectedVersion": 2 + i})
		if status != http.StatusOK {
			t.Fatalf("ready %s status = %d, body %v", player, status, body)
		}
	}
	return gameID
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	status, body := doJSON(t, server, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status ok", body)
	}
}

func TestResponsesAreJSON(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", got)
	}
}

func TestJoinFlowAndRedactedState(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	status, body := doJSON(t, server, http.MethodGet, "/games/"+gameID+"/state?actorId=alice", "", nil)
	if status != http.StatusOK {
		t.Fatalf("state status = %d, body %v", status, body)
	}
	if body["version"] != float64(5) {
		t.Fatalf("version = %v, want 5", body["version"])
	}

	gameState := body["gameState"].(map[string]any)
	if gameState["phase"] != "upcard_decision" {
		t.Fatalf("phase = %v, want upcard_decision", gameState["phase"])
	}
	players := gameState["players"].([]any)
	if len(players) != 2 {
		t.Fatalf("players = %d, want 2", len(players))
	}
	for _, raw := range players {
		p := raw.(map[string]any)
		_, hasHand := p["hand"]
		if p["id"] == "alice" && !hasHand {
			t.Fatal("viewer's own hand was redacted")
		}
		if p["id"] == "bob" && hasHand {
			t.Fatal("opponent hand leaked to viewer")
		}
		if p["hand_count"] != float64(10) {
			t.Fatalf("hand_count = %v, want 10", p["hand_count"])
		}
	}
	if _, hasStock := gameState["stock"]; hasStock {
		t.Fatal("stock cards leaked to viewer")
	}
}

func TestMoveVersionConflict(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "bob",
		map[string]any{"requestId": "pass-1", "expectedVersion": 3, "moveType": "pass_upcard"})
	if status != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %v", status, body)
	}
	if body["code"] != "STATE_VERSION_MISMATCH" {
		t.Fatalf("code = %v, want STATE_VERSION_MISMATCH", body["code"])
	}
	metadata := body["metadata"].(map[string]any)
	if metadata["serverVersion"] != "5" {
		t.Fatalf("serverVersion = %v, want 5", metadata["serverVersion"])
	}
}

func TestMoveRejection(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	// Alice does not hold the upcard decision.
	status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "alice",
		map[string]any{"requestId": "pass-a", "expectedVersion": 5, "moveType": "pass_upcard"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %v", status, body)
	}
	if body["code"] != "NOT_YOUR_TURN" {
		t.Fatalf("code = %v, want NOT_YOUR_TURN", body["code"])
	}
}

func TestMoveIdempotentRetry(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	move := map[string]any{"requestId": "pass-1", "expectedVersion": 5, "moveType": "pass_upcard"}
	status, first := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "bob", move)
	if status != http.StatusOK {
		t.Fatalf("first status = %d, body %v", status, first)
	}
	if first["replayed"] != false {
		t.Fatalf("first replayed = %v, want false", first["replayed"])
	}

	status, second := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "bob", move)
	if status != http.StatusOK {
		t.Fatalf("retry status = %d, body %v", status, second)
	}
	if second["replayed"] != true {
		t.Fatalf("retry replayed = %v, want true", second["replayed"])
	}
	if second["version"] != first["version"] {
		t.Fatalf("retry version = %v, want %v", second["version"], first["version"])
	}
}

func TestMoveUnknownType(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "bob",
		map[string]any{"requestId": "x", "expectedVersion": 5, "moveType": "teleport"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %v", status, body)
	}
	if body["code"] != "MOVE_TYPE_INVALID" {
		t.Fatalf("code = %v, want MOVE_TYPE_INVALID", body["code"])
	}
}

func TestMissingPlayerHeader(t *testing.T) {
	server := newTestServer(t)
	gameID := createGame(t, server)

	status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/join", "",
		map[string]any{"requestId": "join-1", "expectedVersion": 0, "displayName": "Ghost"})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body %v", status, body)
	}
	if body["code"] != "ACTOR_ID_REQUIRED" {
		t.Fatalf("code = %v, want ACTOR_ID_REQUIRED", body["code"])
	}
}

func TestEventsEndpoint(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	status, body := doJSON(t, server, http.MethodGet, "/games/"+gameID+"/events", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	events := body["events"].([]any)
	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	for i, raw := range events {
		evt := raw.(map[string]any)
		if evt["seq"] != float64(i+1) {
			t.Fatalf("events[%d].seq = %v, want %d", i, evt["seq"], i+1)
		}
		if _, ok := evt["type"].(string); !ok {
			t.Fatalf("events[%d].type = %v, want a string", i, evt["type"])
		}
		if _, ok := evt["payload"].(map[string]any); !ok {
			t.Fatalf("events[%d].payload = %T, want an embedded JSON object", i, evt["payload"])
		}
	}

	status, partial := doJSON(t, server, http.MethodGet, "/games/"+gameID+"/events?fromVersion=3", "", nil)
	if status != http.StatusOK {
		t.Fatalf("partial status = %d", status)
	}
	if got := len(partial["events"].([]any)); got != 2 {
		t.Fatalf("partial events = %d, want 2", got)
	}
}

func TestReplayCheckEndpoint(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	status, body := doJSON(t, server, http.MethodGet, "/games/"+gameID+"/replay", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if body["match"] != true {
		t.Fatalf("match = %v, want true", body["match"])
	}
	if body["version"] != float64(5) {
		t.Fatalf("version = %v, want 5", body["version"])
	}
}

func TestStateUnknownGame(t *testing.T) {
	server := newTestServer(t)

	status, body := doJSON(t, server, http.MethodGet, "/games/nope/state", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %v", status, body)
	}
	if body["code"] != "NOT_FOUND" {
		t.Fatalf("code = %v, want NOT_FOUND", body["code"])
	}
}

func TestDrawDiscardTurnScenario(t *testing.T) {
	server := newTestServer(t)
	gameID := startGame(t, server)

	// Both players decline the upcard, then bob draws from the stock and
	// discards the drawn card.
	for i, player := range []string{"bob", "alice"} {
		status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", player,
			map[string]any{"requestId": fmt.Sprintf("pass-%d", i), "expectedVersion": 5 + i, "moveType": "pass_upcard"})
		if status != http.StatusOK {
			t.Fatalf("pass %s status = %d, body %v", player, status, body)
		}
	}

	status, body := doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "bob",
		map[string]any{"requestId": "draw-1", "expectedVersion": 7, "moveType": "draw_stock"})
	if status != http.StatusOK {
		t.Fatalf("draw status = %d, body %v", status, body)
	}
	gameState := body["gameState"].(map[string]any)
	var drawn string
	for _, raw := range gameState["players"].([]any) {
		p := raw.(map[string]any)
		if p["id"] == "bob" {
			handRaw := p["hand"].([]any)
			if len(handRaw) != 11 {
				t.Fatalf("hand size after draw = %d, want 11", len(handRaw))
			}
			drawn = handRaw[len(handRaw)-1].(string)
		}
	}

	status, body = doJSON(t, server, http.MethodPost, "/games/"+gameID+"/move", "bob",
		map[string]any{"requestId": "discard-1", "expectedVersion": 8, "moveType": "discard",
			"moveArgs": map[string]any{"card": drawn}})
	if status != http.StatusOK {
		t.Fatalf("discard status = %d, body %v", status, body)
	}
	if body["version"] != float64(9) {
		t.Fatalf("version = %v, want 9", body["version"])
	}
	gameState = body["gameState"].(map[string]any)
	if gameState["current_actor_id"] != "alice" {
		t.Fatalf("current actor = %v, want alice", gameState["current_actor_id"])
	}
	if gameState["phase"] != "draw" {
		t.Fatalf("phase = %v, want draw", gameState["phase"])
	}
}
