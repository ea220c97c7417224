// Package httpapi exposes the game engine over HTTP JSON.
//
// The API is the concurrency-control boundary for clients: every mutating
// request carries a request id and an expected version, and the responses
// surface STATE_VERSION_MISMATCH with the server's tail so clients can
// resync and retry. Player identity arrives pre-authenticated in the
// X-Player-ID header; issuing identities is outside this service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/engine"
	"github.com/louisbranch/meldtable/internal/game/event"
	apperrors "github.com/louisbranch/meldtable/internal/platform/errors"
	"github.com/louisbranch/meldtable/internal/platform/timeouts"
	"github.com/louisbranch/meldtable/internal/storage"
)

const playerHeader = "X-Player-ID"

// Handler serves the game API.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates an HTTP handler over the engine.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// RegisterRoutes attaches the API routes to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(http.MethodPost+" /games", h.handleCreateGame)
	mux.HandleFunc(http.MethodPost+" /games/{gameID}/join", h.handleJoin)
	mux.HandleFunc(http.MethodPost+" /games/{gameID}/ready", h.handleReady)
	mux.HandleFunc(http.MethodPost+" /games/{gameID}/move", h.handleMove)
	mux.HandleFunc(http.MethodGet+" /games/{gameID}/state", h.handleState)
	mux.HandleFunc(http.MethodGet+" /games/{gameID}/events", h.handleEvents)
	mux.HandleFunc(http.MethodGet+" /games/{gameID}/replay", h.handleReplayCheck)
	mux.HandleFunc(http.MethodGet+" /healthz", h.handleHealth)
}

type errorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// eventRecord is the wire shape of a journal entry. Payloads are embedded
// as JSON objects, not re-encoded bytes.
type eventRecord struct {
	Seq       uint64          `json:"seq"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	ActorType string          `json:"actorType"`
	ActorID   string          `json:"actorId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func eventRecords(events []event.Event) []eventRecord {
	records := make([]eventRecord, len(events))
	for i, evt := range events {
		records[i] = eventRecord{
			Seq:       evt.Seq,
			ID:        evt.ID,
			Timestamp: evt.Timestamp,
			Type:      string(evt.Type),
			ActorType: string(evt.ActorType),
			ActorID:   evt.ActorID,
			RequestID: evt.RequestID,
			Payload:   json.RawMessage(evt.PayloadJSON),
		}
	}
	return records
}

type joinRequest struct {
	RequestID       string `json:"requestId"`
	ExpectedVersion uint64 `json:"expectedVersion"`
	DisplayName     string `json:"displayName"`
	Scripted        bool   `json:"scripted,omitempty"`
}

type readyRequest struct {
	RequestID       string `json:"requestId"`
	ExpectedVersion uint64 `json:"expectedVersion"`
}

type moveRequest struct {
	RequestID       string          `json:"requestId"`
	ExpectedVersion uint64          `json:"expectedVersion"`
	MoveType        string          `json:"moveType"`
	MoveArgs        json.RawMessage `json:"moveArgs,omitempty"`
}

func (h *Handler) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := h.engine.CreateGame(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"gameId":  gameID,
		"version": 0,
	})
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := resolveActorID(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payload, err := json.Marshal(command.JoinGamePayload{
		DisplayName: req.DisplayName,
		Scripted:    req.Scripted,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.submit(w, r, command.Command{
		GameID:          r.PathValue("gameID"),
		Type:            command.TypeJoinGame,
		ActorType:       command.ActorTypePlayer,
		ActorID:         actorID,
		RequestID:       req.RequestID,
		ExpectedVersion: req.ExpectedVersion,
		PayloadJSON:     payload,
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	actorID, ok := resolveActorID(w, r)
	if !ok {
		return
	}

	var req readyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.submit(w, r, command.Command{
		GameID:          r.PathValue("gameID"),
		Type:            command.TypeMarkReady,
		ActorType:       command.ActorTypePlayer,
		ActorID:         actorID,
		RequestID:       req.RequestID,
		ExpectedVersion: req.ExpectedVersion,
	})
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	actorID, ok := resolveActorID(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	moveType, ok := moveCommandType(req.MoveType)
	if !ok {
		writeError(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeMoveTypeInvalid),
			Message: "unknown move type " + strconv.Quote(req.MoveType),
		})
		return
	}

	h.submit(w, r, command.Command{
		GameID:          r.PathValue("gameID"),
		Type:            moveType,
		ActorType:       command.ActorTypePlayer,
		ActorID:         actorID,
		RequestID:       req.RequestID,
		ExpectedVersion: req.ExpectedVersion,
		PayloadJSON:     req.MoveArgs,
	})
}

// submit runs the command and renders the resulting state redacted for the
// acting player.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, cmd command.Command) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	result, err := h.engine.Submit(ctx, cmd)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	seqs := make([]uint64, 0, len(result.Events))
	for _, evt := range result.Events {
		seqs = append(seqs, evt.Seq)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gameState": result.State.View(cmd.ActorID),
		"version":   result.State.Version,
		"eventSeqs": seqs,
		"replayed":  result.Replayed,
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	current, err := h.engine.State(ctx, r.PathValue("gameID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Spectators omit actorId and receive a fully redacted view.
	actorID := strings.TrimSpace(r.URL.Query().Get("actorId"))
	writeJSON(w, http.StatusOK, map[string]any{
		"gameState": current.View(actorID),
		"version":   current.Version,
	})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	fromVersion, err := parseFromVersion(r.URL.Query().Get("fromVersion"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeMoveArgsInvalid),
			Message: "fromVersion must be a non-negative integer",
		})
		return
	}

	events, err := h.engine.Events(ctx, r.PathValue("gameID"), fromVersion)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gameId": r.PathValue("gameID"),
		"events": eventRecords(events),
	})
}

func (h *Handler) handleReplayCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	report, err := h.engine.VerifyReplay(ctx, r.PathValue("gameID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError maps engine and storage errors onto the wire contract.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var conflict *storage.VersionConflictError
	if errors.As(err, &conflict) {
		writeError(w, http.StatusConflict, errorResponse{
			Code:    string(apperrors.CodeStateVersionMismatch),
			Message: "state version mismatch",
			Metadata: map[string]string{
				"serverVersion": strconv.FormatUint(conflict.ServerVersion, 10),
			},
		})
		return
	}

	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		writeError(w, domainErr.Code.HTTPStatus(), errorResponse{
			Code:     string(domainErr.Code),
			Message:  domainErr.Message,
			Metadata: domainErr.Metadata,
		})
		return
	}

	// Envelope validation failures from the command registry.
	switch {
	case errors.Is(err, command.ErrTypeUnknown):
		writeError(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeMoveTypeInvalid),
			Message: err.Error(),
		})
	case errors.Is(err, command.ErrGameIDRequired),
		errors.Is(err, command.ErrActorIDRequired),
		errors.Is(err, command.ErrRequestIDRequired),
		errors.Is(err, command.ErrPayloadInvalid):
		writeError(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeMoveArgsInvalid),
			Message: err.Error(),
		})
	default:
		writeError(w, http.StatusInternalServerError, errorResponse{
			Code:    string(apperrors.CodeUnknown),
			Message: "internal error",
		})
	}
}

// moveCommandType resolves the wire move type. Both the bare form
// ("draw_stock") and the registered form ("move.draw_stock") are accepted.
func moveCommandType(raw string) (command.Type, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}
	if !strings.Contains(name, ".") {
		name = "move." + name
	}
	switch typ := command.Type(name); typ {
	case command.TypeTakeUpcard,
		command.TypePassUpcard,
		command.TypeDrawStock,
		command.TypeDrawDiscard,
		command.TypeDiscard,
		command.TypeKnock,
		command.TypeGin,
		command.TypeStartNewRound:
		return typ, true
	default:
		return "", false
	}
}

func resolveActorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := strings.TrimSpace(r.Header.Get(playerHeader))
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, errorResponse{
			Code:    string(apperrors.CodeActorIDRequired),
			Message: playerHeader + " header is required",
		})
		return "", false
	}
	return actorID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeMoveArgsInvalid),
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func parseFromVersion(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeouts.Request)
}
