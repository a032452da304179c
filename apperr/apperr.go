// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package apperr holds the typed rejection reasons shared by the engine
// components. Handlers map a Kind to an HTTP status.
package apperr

import "errors"

type Kind int

const (
	KindValidation Kind = iota
	KindState
	KindNotFound
	KindAuthorization
	KindConflict
	KindAuthentication
)

// Error is a rejection the caller can act on. Code is a stable machine
// readable reason; Message is shown to users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrDecisionNotFound = newError(KindNotFound, "decision_not_found", "Decision not found")
	ErrOptionNotFound   = newError(KindNotFound, "option_not_found", "Option not found")
	ErrNoVote           = newError(KindNotFound, "vote_not_found", "No vote to change or retract")
	ErrNotParticipant   = newError(KindNotFound, "participant_not_found", "Participant not found")

	ErrDecisionNotOpen   = newError(KindState, "decision_not_open", "Decision is not open for voting")
	ErrConfigLocked      = newError(KindState, "config_locked", "Configuration can only change while voting is open")
	ErrOptionsLocked     = newError(KindState, "options_locked", "Options cannot be added once voting has started")
	ErrInvalidTransition = newError(KindConflict, "invalid_transition", "Transition not allowed from the current state")
	ErrConsensusLost     = newError(KindConflict, "consensus_lost", "Agreement is no longer reached")
	ErrConcurrentVote    = newError(KindConflict, "concurrent_vote", "Another vote by this participant is in progress")

	ErrNotEligible    = newError(KindAuthorization, "not_eligible", "Participant is not eligible to vote")
	ErrCannotDelegate = newError(KindAuthorization, "cannot_delegate", "Participant is not eligible to delegate")

	ErrMissingToken    = newError(KindAuthentication, "missing_token", "X-Participant-Token header is required")
	ErrInvalidToken    = newError(KindAuthentication, "invalid_token", "Unknown participant token")
	ErrInvalidAdminKey = newError(KindAuthentication, "invalid_admin_key", "Invalid admin key")

	ErrUnknownVoteType  = newError(KindValidation, "unknown_vote_type", "Unknown vote type")
	ErrMissingOption    = newError(KindValidation, "missing_option", "optionId is required")
	ErrMissingRank      = newError(KindValidation, "missing_rank", "ranking is required for ranked votes")
	ErrMissingScore     = newError(KindValidation, "missing_score", "score is required for scored votes")
	ErrWeightOutOfRange = newError(KindValidation, "weight_out_of_range", "weight must be between 0.1 and 10")
	ErrInvalidConfig    = newError(KindValidation, "invalid_config", "Invalid decision configuration")
)

// Validation returns a validation error with a custom message.
func Validation(code, msg string) *Error {
	return newError(KindValidation, code, msg)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
