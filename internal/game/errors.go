package game

import "fmt"

// Code is a machine-readable rejection code
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeInvalidPhase     Code = "INVALID_PHASE_FOR_ACTION"
	CodeOutOfGuesses     Code = "ALREADY_OUT_OF_GUESSES"
	CodeNotAGuessingTeam Code = "NOT_A_GUESSING_TEAM"
	CodeUnknownTeam      Code = "UNKNOWN_TEAM"
	CodeGameFinished     Code = "GAME_ALREADY_FINISHED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeIntegrity        Code = "INTEGRITY_ERROR"
	CodeUnavailable      Code = "UNAVAILABLE"
)

// Sentinels for errors.Is; matching is by code only.
var (
	ErrValidation       = &ActionError{Code: CodeValidation}
	ErrInvalidPhase     = &ActionError{Code: CodeInvalidPhase}
	ErrOutOfGuesses     = &ActionError{Code: CodeOutOfGuesses}
	ErrNotAGuessingTeam = &ActionError{Code: CodeNotAGuessingTeam}
	ErrUnknownTeam      = &ActionError{Code: CodeUnknownTeam}
	ErrGameFinished     = &ActionError{Code: CodeGameFinished}
	ErrForbidden        = &ActionError{Code: CodeForbidden}
	ErrIntegrity        = &ActionError{Code: CodeIntegrity}
	ErrUnavailable      = &ActionError{Code: CodeUnavailable}
)

// ActionError is a rejected action. The state it was applied to is unchanged.
type ActionError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *ActionError) Unwrap() error {
	return e.Cause
}

// Is matches another *ActionError by code
func (e *ActionError) Is(target error) bool {
	if t, ok := target.(*ActionError); ok {
		return e.Code == t.Code
	}
	return false
}

// Precondition reports whether the rejection is a game-rule violation that
// should only be surfaced to the submitting client
func (e *ActionError) Precondition() bool {
	switch e.Code {
	case CodeInvalidPhase, CodeOutOfGuesses, CodeNotAGuessingTeam, CodeUnknownTeam, CodeGameFinished:
		return true
	}
	return false
}

func reject(code Code, format string, args ...any) *ActionError {
	return &ActionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a ValidationError for a malformed action or snapshot
func Validation(format string, args ...any) *ActionError {
	return reject(CodeValidation, format, args...)
}

// Forbidden builds a rejection for an action the caller may not issue
func Forbidden(format string, args ...any) *ActionError {
	return reject(CodeForbidden, format, args...)
}

// Integrity wraps an unexpected condition (unknown game, corrupt snapshot)
func Integrity(message string, cause error) *ActionError {
	return &ActionError{Code: CodeIntegrity, Message: message, Cause: cause}
}

// Unavailable wraps a failure to reach the game (timeout, transport, store).
// The action may not have been applied; clients re-sync and retry.
func Unavailable(message string, cause error) *ActionError {
	return &ActionError{Code: CodeUnavailable, Message: message, Cause: cause}
}
