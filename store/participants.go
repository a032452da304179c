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

const participantColumns = `
	decision_id, participant_id, display_name, token, can_vote, can_delegate,
	status, last_active_at, created_at`

func scanParticipant(row rowScanner) (models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.DecisionID, &p.ParticipantID, &p.DisplayName, &p.Token, &p.CanVote, &p.CanDelegate,
		&p.Status, &p.LastActiveAt, &p.CreatedAt,
	)
	return p, err
}

// InsertParticipant adds a user to a decision's voting pool.
func (q *Queries) InsertParticipant(ctx context.Context, p models.Participant) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO participant (
			decision_id, participant_id, display_name, token, can_vote, can_delegate,
			status, last_active_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.DecisionID, p.ParticipantID, p.DisplayName, p.Token, p.CanVote, p.CanDelegate,
		p.Status, p.LastActiveAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// GetParticipant loads one participant record.
func (q *Queries) GetParticipant(ctx context.Context, decisionID, participantID string) (models.Participant, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participant
		WHERE decision_id = $1 AND participant_id = $2
	`, decisionID, participantID)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, apperr.ErrNotParticipant
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to query participant: %w", err)
	}
	return p, nil
}

// GetParticipantByToken resolves an identity token within one decision.
func (q *Queries) GetParticipantByToken(ctx context.Context, decisionID, token string) (models.Participant, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participant
		WHERE decision_id = $1 AND token = $2
	`, decisionID, token)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, apperr.ErrNotParticipant
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to query participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns the voting pool in invitation order.
func (q *Queries) ListParticipants(ctx context.Context, decisionID string) ([]models.Participant, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participant
		WHERE decision_id = $1
		ORDER BY created_at, participant_id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// CountEligibleParticipants counts participants allowed to vote.
func (q *Queries) CountEligibleParticipants(ctx context.Context, decisionID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participant WHERE decision_id = $1 AND can_vote = $2
	`, decisionID, true).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return n, nil
}

// SetParticipantStatus updates the participation status and activity time.
func (q *Queries) SetParticipantStatus(ctx context.Context, decisionID, participantID, status string, at time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE participant
		SET status = $3, last_active_at = $4
		WHERE decision_id = $1 AND participant_id = $2
	`, decisionID, participantID, status, at)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return nil
}

// TouchParticipant records activity, promoting an invited participant to active.
func (q *Queries) TouchParticipant(ctx context.Context, decisionID, participantID string, at time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE participant
		SET last_active_at = $3,
		    status = CASE WHEN status = $4 THEN $5 ELSE status END
		WHERE decision_id = $1 AND participant_id = $2
	`, decisionID, participantID, at, models.ParticipantInvited, models.ParticipantActive)
	if err != nil {
		return fmt.Errorf("failed to touch participant: %w", err)
	}
	return nil
}
