// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Concurrency outcomes
	CodeStateVersionMismatch Code = "STATE_VERSION_MISMATCH"
	CodeDuplicateRequest     Code = "DUPLICATE_REQUEST"

	// Move rejections
	CodeNotYourTurn      Code = "NOT_YOUR_TURN"
	CodeWrongPhase       Code = "WRONG_PHASE"
	CodeCardNotInHand    Code = "CARD_NOT_IN_HAND"
	CodeDeadwoodTooHigh  Code = "DEADWOOD_TOO_HIGH"
	CodeGameFull         Code = "GAME_FULL"
	CodeAlreadyJoined    Code = "ALREADY_JOINED"
	CodeNotEnoughPlayers Code = "NOT_ENOUGH_PLAYERS"
	CodeRoundNotOver     Code = "ROUND_NOT_OVER"

	// Request validation errors
	CodeGameIDRequired  Code = "GAME_ID_REQUIRED"
	CodeActorIDRequired Code = "ACTOR_ID_REQUIRED"
	CodeMoveTypeInvalid Code = "MOVE_TYPE_INVALID"
	CodeMoveArgsInvalid Code = "MOVE_ARGS_INVALID"
	CodeCardSpecInvalid Code = "CARD_SPEC_INVALID"
	CodeMeldSpecInvalid Code = "MELD_SPEC_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Random/seed errors
	CodeSeedOutOfRange Code = "SEED_OUT_OF_RANGE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Conflict - the caller must resync and retry against the new tail
	case CodeStateVersionMismatch:
		return http.StatusConflict

	// Unprocessable - deterministic rule rejections, never retried as-is
	case CodeNotYourTurn,
		CodeWrongPhase,
		CodeCardNotInHand,
		CodeDeadwoodTooHigh,
		CodeGameFull,
		CodeAlreadyJoined,
		CodeNotEnoughPlayers,
		CodeRoundNotOver:
		return http.StatusUnprocessableEntity

	// BadRequest - malformed input
	case CodeGameIDRequired,
		CodeActorIDRequired,
		CodeMoveTypeInvalid,
		CodeMoveArgsInvalid,
		CodeCardSpecInvalid,
		CodeMeldSpecInvalid,
		CodeSeedOutOfRange:
		return http.StatusBadRequest

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
