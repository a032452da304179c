// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-agree/models"
)

// CastVote records a vote and returns it with a freshly computed snapshot.
func (e *Engine) CastVote(ctx context.Context, decisionID, participantID string, in models.VoteInput, origin models.Origin) (models.VoteResponse, error) {
	vote, err := e.ledger.Cast(ctx, decisionID, participantID, in, origin)
	if err != nil {
		return models.VoteResponse{}, err
	}
	return models.VoteResponse{Vote: vote, Consensus: e.afterVote(ctx, decisionID)}, nil
}

// ChangeVote replaces an existing vote.
func (e *Engine) ChangeVote(ctx context.Context, decisionID, participantID string, in models.VoteInput, origin models.Origin) (models.VoteResponse, error) {
	vote, err := e.ledger.Change(ctx, decisionID, participantID, in, origin)
	if err != nil {
		return models.VoteResponse{}, err
	}
	return models.VoteResponse{Vote: vote, Consensus: e.afterVote(ctx, decisionID)}, nil
}

// RetractVote removes a live vote and returns the updated snapshot.
func (e *Engine) RetractVote(ctx context.Context, decisionID, participantID string, origin models.Origin) (models.ConsensusSnapshot, error) {
	if err := e.ledger.Retract(ctx, decisionID, participantID, origin); err != nil {
		return models.ConsensusSnapshot{}, err
	}
	return e.afterVote(ctx, decisionID), nil
}

// afterVote recomputes the snapshot once a vote is committed. The vote
// stands even when this fails; the caller gets an empty snapshot and the
// next read recomputes.
func (e *Engine) afterVote(ctx context.Context, decisionID string) models.ConsensusSnapshot {
	snap, err := e.cache.Get(ctx, decisionID, true)
	if err != nil {
		slog.Warn("failed to refresh consensus after vote",
			"decision_id", decisionID,
			"error", err,
		)
		return models.ConsensusSnapshot{DecisionID: decisionID}
	}
	return snap
}

// MyVote returns the participant's live vote.
func (e *Engine) MyVote(ctx context.Context, decisionID, participantID string) (models.Vote, error) {
	return e.ledger.Get(ctx, decisionID, participantID)
}

// Audit returns the vote audit trail, oldest first.
func (e *Engine) Audit(ctx context.Context, decisionID string) ([]models.AuditEntry, error) {
	return e.ledger.Audit(ctx, decisionID)
}

// Consensus returns the cached snapshot, recomputing when stale or when
// refresh is set. A countdown that has elapsed is acted on first.
func (e *Engine) Consensus(ctx context.Context, decisionID string, refresh bool) (models.ConsensusSnapshot, error) {
	if _, err := e.machine.CheckDue(ctx, decisionID); err != nil {
		return models.ConsensusSnapshot{}, err
	}
	return e.cache.Get(ctx, decisionID, refresh)
}

// History returns the trend series recorded within the trailing window.
func (e *Engine) History(ctx context.Context, decisionID string, window time.Duration) ([]models.HistoryEntry, error) {
	return e.history.Trend(ctx, decisionID, window)
}

// StartTransition commits the decision to its winning option.
func (e *Engine) StartTransition(ctx context.Context, decisionID, actorID string) (models.TransitionStatus, error) {
	if err := e.machine.Start(ctx, decisionID, actorID); err != nil {
		return models.TransitionStatus{}, err
	}
	return e.machine.Status(ctx, decisionID)
}

// CancelTransition stops a transition that has not completed.
func (e *Engine) CancelTransition(ctx context.Context, decisionID string) (models.TransitionStatus, error) {
	if err := e.machine.Cancel(ctx, decisionID); err != nil {
		return models.TransitionStatus{}, err
	}
	return e.machine.Status(ctx, decisionID)
}

// CancelCountdown clears a pending automatic transition.
func (e *Engine) CancelCountdown(ctx context.Context, decisionID string) (models.TransitionStatus, error) {
	if err := e.machine.CancelCountdown(ctx, decisionID); err != nil {
		return models.TransitionStatus{}, err
	}
	return e.machine.Status(ctx, decisionID)
}

// TransitionStatus reports state, progress and any pending countdown.
func (e *Engine) TransitionStatus(ctx context.Context, decisionID string) (models.TransitionStatus, error) {
	if _, err := e.machine.CheckDue(ctx, decisionID); err != nil {
		return models.TransitionStatus{}, err
	}
	return e.machine.Status(ctx, decisionID)
}

// Confirmations lists the confirmation pool.
func (e *Engine) Confirmations(ctx context.Context, decisionID string) ([]models.Confirmation, error) {
	return e.machine.Confirmations(ctx, decisionID)
}
