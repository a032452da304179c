// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/models"
)

const decisionColumns = `
	id, title, description, proposer_id, state,
	algorithm, threshold, min_participants, time_limit_minutes,
	tie_handling, tie_breaker, allow_option_add, auto_transition_seconds,
	expires_at, agreement_reached_at, transition_deadline,
	transition_step, transition_progress, winning_option_id,
	final_option_text, final_option_description, confirmed_at, closed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (models.Decision, error) {
	var d models.Decision
	var algorithm string
	var timeLimit, autoTransition sql.NullInt64
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.ProposerID, &d.State,
		&algorithm, &d.Config.Threshold, &d.Config.MinParticipants, &timeLimit,
		&d.Config.TieHandling, &d.Config.TieBreaker, &d.Config.AllowOptionAdd, &autoTransition,
		&d.ExpiresAt, &d.AgreementReachedAt, &d.TransitionDeadline,
		&d.TransitionStep, &d.TransitionProgress, &d.WinningOptionID,
		&d.FinalOptionText, &d.FinalOptionDesc, &d.ConfirmedAt, &d.ClosedAt, &d.CreatedAt,
	)
	if err != nil {
		return models.Decision{}, err
	}
	d.Config.Algorithm = models.Algorithm(algorithm)
	if timeLimit.Valid {
		v := int(timeLimit.Int64)
		d.Config.TimeLimitMinutes = &v
	}
	if autoTransition.Valid {
		v := int(autoTransition.Int64)
		d.Config.AutoTransitionSeconds = &v
	}
	return d, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// InsertDecision stores a new decision.
func (q *Queries) InsertDecision(ctx context.Context, d models.Decision) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO decision (
			id, title, description, proposer_id, state,
			algorithm, threshold, min_participants, time_limit_minutes,
			tie_handling, tie_breaker, allow_option_add, auto_transition_seconds,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, d.ID, d.Title, d.Description, d.ProposerID, d.State,
		string(d.Config.Algorithm), d.Config.Threshold, d.Config.MinParticipants, nullableInt(d.Config.TimeLimitMinutes),
		d.Config.TieHandling, d.Config.TieBreaker, d.Config.AllowOptionAdd, nullableInt(d.Config.AutoTransitionSeconds),
		d.ExpiresAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// GetDecision loads a decision by id.
func (q *Queries) GetDecision(ctx context.Context, id string) (models.Decision, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decision WHERE id = $1`, id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Decision{}, apperr.ErrDecisionNotFound
	}
	if err != nil {
		return models.Decision{}, fmt.Errorf("failed to query decision: %w", err)
	}
	return d, nil
}

// UpdateConfig replaces the rule configuration of an OPEN decision.
func (q *Queries) UpdateConfig(ctx context.Context, id string, cfg models.DecisionConfig, expiresAt *time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET algorithm = $2, threshold = $3, min_participants = $4, time_limit_minutes = $5,
		    tie_handling = $6, tie_breaker = $7, allow_option_add = $8,
		    auto_transition_seconds = $9, expires_at = $10
		WHERE id = $1 AND state = $11
	`, id, string(cfg.Algorithm), cfg.Threshold, cfg.MinParticipants, nullableInt(cfg.TimeLimitMinutes),
		cfg.TieHandling, cfg.TieBreaker, cfg.AllowOptionAdd,
		nullableInt(cfg.AutoTransitionSeconds), expiresAt, models.StateOpen)
	if err != nil {
		return false, fmt.Errorf("failed to update config: %w", err)
	}
	return affected(res)
}

// CloseDecision soft-closes a decision that has not started transitioning.
func (q *Queries) CloseDecision(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET state = $2, closed_at = $3, transition_deadline = NULL
		WHERE id = $1 AND state IN ($4, $5)
	`, id, models.StateClosed, at, models.StateOpen, models.StateAgreementReached)
	if err != nil {
		return false, fmt.Errorf("failed to close decision: %w", err)
	}
	return affected(res)
}

// MarkAgreementReached moves an OPEN decision to AGREEMENT_REACHED.
func (q *Queries) MarkAgreementReached(ctx context.Context, id string, at time.Time, deadline *time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET state = $2, agreement_reached_at = $3, transition_deadline = $4
		WHERE id = $1 AND state = $5
	`, id, models.StateAgreementReached, at, deadline, models.StateOpen)
	if err != nil {
		return false, fmt.Errorf("failed to mark agreement reached: %w", err)
	}
	return affected(res)
}

// RevertToOpen moves an AGREEMENT_REACHED decision back to OPEN.
func (q *Queries) RevertToOpen(ctx context.Context, id string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET state = $2, agreement_reached_at = NULL, transition_deadline = NULL
		WHERE id = $1 AND state = $3
	`, id, models.StateOpen, models.StateAgreementReached)
	if err != nil {
		return false, fmt.Errorf("failed to revert decision: %w", err)
	}
	return affected(res)
}

// ClearDeadline cancels a pending auto-transition.
func (q *Queries) ClearDeadline(ctx context.Context, id string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET transition_deadline = NULL
		WHERE id = $1 AND state = $2 AND transition_deadline IS NOT NULL
	`, id, models.StateAgreementReached)
	if err != nil {
		return false, fmt.Errorf("failed to clear deadline: %w", err)
	}
	return affected(res)
}

// BeginTransition moves an AGREEMENT_REACHED decision to TRANSITIONING and
// records the winning option.
func (q *Queries) BeginTransition(ctx context.Context, id, winningOptionID string, progress int) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET state = $2, transition_step = $3, transition_progress = $4,
		    winning_option_id = $5, transition_deadline = NULL
		WHERE id = $1 AND state = $6
	`, id, models.StateTransitioning, models.StepStarted, progress, winningOptionID, models.StateAgreementReached)
	if err != nil {
		return false, fmt.Errorf("failed to begin transition: %w", err)
	}
	return affected(res)
}

// SetTransitionProgress records a completed step of a TRANSITIONING decision.
func (q *Queries) SetTransitionProgress(ctx context.Context, id, step string, progress int) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET transition_step = $2, transition_progress = $3
		WHERE id = $1 AND state = $4
	`, id, step, progress, models.StateTransitioning)
	if err != nil {
		return fmt.Errorf("failed to record transition progress: %w", err)
	}
	return nil
}

// CopyWinningOption copies the winning option's text onto the decision.
// A decision that already carries a copy is left untouched.
func (q *Queries) CopyWinningOption(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET final_option_text = (SELECT o.text FROM option o WHERE o.id = decision.winning_option_id),
		    final_option_description = (SELECT o.description FROM option o WHERE o.id = decision.winning_option_id)
		WHERE id = $1 AND final_option_text IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to copy winning option: %w", err)
	}
	return nil
}

// CompleteTransition moves a TRANSITIONING decision to CONFIRMING.
func (q *Queries) CompleteTransition(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET state = $2, transition_step = $3, transition_progress = 100, confirmed_at = $4
		WHERE id = $1 AND state = $5
	`, id, models.StateConfirming, models.StepDone, at, models.StateTransitioning)
	if err != nil {
		return false, fmt.Errorf("failed to complete transition: %w", err)
	}
	return affected(res)
}

// CancelTransition returns a TRANSITIONING decision to AGREEMENT_REACHED and
// forgets the partially applied steps.
func (q *Queries) CancelTransition(ctx context.Context, id string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE decision
		SET state = $2, transition_step = '', transition_progress = 0,
		    winning_option_id = NULL, final_option_text = NULL, final_option_description = NULL
		WHERE id = $1 AND state = $3
	`, id, models.StateAgreementReached, models.StateTransitioning)
	if err != nil {
		return false, fmt.Errorf("failed to cancel transition: %w", err)
	}
	return affected(res)
}

// ListDueDecisions returns decisions whose auto-transition deadline has passed.
func (q *Queries) ListDueDecisions(ctx context.Context, now time.Time) ([]string, error) {
	return q.listIDs(ctx, `
		SELECT id FROM decision
		WHERE state = $1 AND transition_deadline IS NOT NULL AND transition_deadline <= $2
		ORDER BY transition_deadline
	`, models.StateAgreementReached, now)
}

// ListDecisionsInState returns the ids of every decision in state.
func (q *Queries) ListDecisionsInState(ctx context.Context, state string) ([]string, error) {
	return q.listIDs(ctx, `SELECT id FROM decision WHERE state = $1 ORDER BY created_at`, state)
}

func (q *Queries) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan decision id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
