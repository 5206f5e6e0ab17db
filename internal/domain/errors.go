package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrRecordNotFound = errors.New("score record not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
)

// Validation messages returned to callers verbatim
const (
	MsgMissingFields     = "Missing required fields: playerId, gameId, score, playerName"
	MsgScoreNotInteger   = "score must be an integer"
	MsgScoreOutOfRange   = "Invalid score range. Score must be between 0 and 999,999"
	MsgPlayerIDRequired  = "playerId is required"
	MsgPlayerNotFound    = "Player not found"
	MsgInvalidJSONBody   = "request body must be a JSON object"
	MsgStoreFailure      = "Internal server error"
	MsgRankingsFailure   = "Error fetching rankings"
	MsgPlayerStatsFailed = "Error fetching player stats"
	MsgBatchFailed       = "Error calculating rankings"
)

// ValidationError reports a request that failed input checks before any store access.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with the given message
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// StoreError wraps any failure talking to the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotificationError wraps a failed summary delivery. It is logged, never returned to callers.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Sink, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// ErrorKind tags an error so callers can branch without type assertions
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindStore      ErrorKind = "store"
	KindInternal   ErrorKind = "internal"
)

// KindOf classifies err into one of the ErrorKind tags
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	if IsNotFoundError(err) {
		return KindNotFound
	}
	var se *StoreError
	if errors.As(err, &se) {
		return KindStore
	}
	return KindInternal
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound)
}
