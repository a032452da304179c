// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-agree/models"
)

// InsertHistory appends a snapshot to the consensus time series.
func (q *Queries) InsertHistory(ctx context.Context, e models.HistoryEntry) error {
	payload, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO consensus_history (
			id, decision_id, recorded_at, consensus_level, total_votes, participant_count,
			leading_option_id, is_consensus_reached, algorithm, confidence_score, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.DecisionID, e.RecordedAt, e.ConsensusLevel, e.TotalVotes, e.ParticipantCount,
		e.LeadingOptionID, e.IsConsensusReached, string(e.Algorithm), e.ConfidenceScore, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// ListHistorySince returns entries recorded at or after since, oldest first.
func (q *Queries) ListHistorySince(ctx context.Context, decisionID string, since time.Time) ([]models.HistoryEntry, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, decision_id, recorded_at, consensus_level, total_votes, participant_count,
		       leading_option_id, is_consensus_reached, algorithm, confidence_score, payload
		FROM consensus_history
		WHERE decision_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at, id
	`, decisionID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var algorithm string
		var payload []byte
		if err := rows.Scan(&e.ID, &e.DecisionID, &e.RecordedAt, &e.ConsensusLevel, &e.TotalVotes,
			&e.ParticipantCount, &e.LeadingOptionID, &e.IsConsensusReached, &algorithm,
			&e.ConfidenceScore, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Algorithm = models.Algorithm(algorithm)
		if err := json.Unmarshal(payload, &e.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to parse history payload: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
