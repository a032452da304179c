// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/models"
)

const voteColumns = `
	id, decision_id, participant_id, option_id, vote_type, ranking, score,
	weight, sentiment, comment, origin_hash, client, created_at`

func scanVote(row rowScanner) (models.Vote, error) {
	var v models.Vote
	var ranking sql.NullInt64
	var score sql.NullFloat64
	err := row.Scan(
		&v.ID, &v.DecisionID, &v.ParticipantID, &v.OptionID, &v.VoteType, &ranking, &score,
		&v.Weight, &v.Sentiment, &v.Comment, &v.OriginHash, &v.ClientString, &v.CreatedAt,
	)
	if err != nil {
		return models.Vote{}, err
	}
	if ranking.Valid {
		r := int(ranking.Int64)
		v.Ranking = &r
	}
	if score.Valid {
		s := score.Float64
		v.Score = &s
	}
	return v, nil
}

// GetVote loads the live vote of one participant.
func (q *Queries) GetVote(ctx context.Context, decisionID, participantID string) (models.Vote, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+voteColumns+`
		FROM vote
		WHERE decision_id = $1 AND participant_id = $2
	`, decisionID, participantID)
	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vote{}, apperr.ErrNoVote
	}
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to query vote: %w", err)
	}
	return v, nil
}

// ListVotes returns every live vote on a decision.
func (q *Queries) ListVotes(ctx context.Context, decisionID string) ([]models.Vote, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+voteColumns+`
		FROM vote
		WHERE decision_id = $1
		ORDER BY created_at, id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// CountVotes returns the number of live votes on a decision.
func (q *Queries) CountVotes(ctx context.Context, decisionID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote WHERE decision_id = $1`, decisionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

// InsertVote stores a live vote.
func (q *Queries) InsertVote(ctx context.Context, v models.Vote) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO vote (
			id, decision_id, participant_id, option_id, vote_type, ranking, score,
			weight, sentiment, comment, origin_hash, client, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, v.ID, v.DecisionID, v.ParticipantID, v.OptionID, v.VoteType, nullableInt(v.Ranking), v.Score,
		v.Weight, v.Sentiment, v.Comment, v.OriginHash, v.ClientString, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// DeleteVote removes a participant's live vote.
func (q *Queries) DeleteVote(ctx context.Context, decisionID, participantID string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		DELETE FROM vote WHERE decision_id = $1 AND participant_id = $2
	`, decisionID, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete vote: %w", err)
	}
	return affected(res)
}

// InsertAudit appends an entry to the audit trail.
func (q *Queries) InsertAudit(ctx context.Context, e models.AuditEntry) error {
	oldValue, err := marshalVote(e.OldValue)
	if err != nil {
		return err
	}
	newValue, err := marshalVote(e.NewValue)
	if err != nil {
		return err
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO vote_audit (id, decision_id, participant_id, action, old_value, new_value, origin, client, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.DecisionID, e.ParticipantID, e.Action, oldValue, newValue, e.Origin, e.Client, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns a decision's audit trail, oldest first.
func (q *Queries) ListAudit(ctx context.Context, decisionID string) ([]models.AuditEntry, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, decision_id, participant_id, action, old_value, new_value, origin, client, created_at
		FROM vote_audit
		WHERE decision_id = $1
		ORDER BY created_at, id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var oldValue, newValue []byte
		if err := rows.Scan(&e.ID, &e.DecisionID, &e.ParticipantID, &e.Action, &oldValue, &newValue,
			&e.Origin, &e.Client, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.OldValue, err = unmarshalVote(oldValue); err != nil {
			return nil, err
		}
		if e.NewValue, err = unmarshalVote(newValue); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// marshalVote encodes a vote for a JSON column; nil becomes SQL NULL.
func marshalVote(v *models.Vote) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vote: %w", err)
	}
	return string(b), nil
}

func unmarshalVote(b []byte) (*models.Vote, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v models.Vote
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode audit value: %w", err)
	}
	return &v, nil
}
