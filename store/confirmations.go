// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-agree/models"
)

// MaterializeConfirmations creates one pending confirmation per participant.
// Rows that already exist are kept, so repeating the call is a no-op.
func (q *Queries) MaterializeConfirmations(ctx context.Context, decisionID string, at time.Time) error {
	participants, err := q.ListParticipants(ctx, decisionID)
	if err != nil {
		return err
	}

	for _, p := range participants {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO confirmation (decision_id, participant_id, status, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (decision_id, participant_id) DO NOTHING
		`, decisionID, p.ParticipantID, models.ConfirmationPending, at)
		if err != nil {
			return fmt.Errorf("failed to materialize confirmation: %w", err)
		}
	}
	return nil
}

// DeleteConfirmations drops a partially materialized pool.
func (q *Queries) DeleteConfirmations(ctx context.Context, decisionID string) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM confirmation WHERE decision_id = $1`, decisionID)
	if err != nil {
		return fmt.Errorf("failed to delete confirmations: %w", err)
	}
	return nil
}

// ListConfirmations returns the confirmation pool of a decision.
func (q *Queries) ListConfirmations(ctx context.Context, decisionID string) ([]models.Confirmation, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT decision_id, participant_id, status, created_at
		FROM confirmation
		WHERE decision_id = $1
		ORDER BY participant_id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmations: %w", err)
	}
	defer rows.Close()

	confirmations := []models.Confirmation{}
	for rows.Next() {
		var c models.Confirmation
		if err := rows.Scan(&c.DecisionID, &c.ParticipantID, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan confirmation: %w", err)
		}
		confirmations = append(confirmations, c)
	}
	return confirmations, rows.Err()
}
