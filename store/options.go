// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/models"
)

// InsertOption stores an option. Position must be unique within the decision.
func (q *Queries) InsertOption(ctx context.Context, o models.Option) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO option (id, decision_id, text, description, position)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.DecisionID, o.Text, o.Description, o.Position)
	if err != nil {
		return fmt.Errorf("failed to insert option: %w", err)
	}
	return nil
}

// NextOptionPosition returns the ordinal the next appended option receives.
func (q *Queries) NextOptionPosition(ctx context.Context, decisionID string) (int, error) {
	var next int
	err := q.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM option WHERE decision_id = $1
	`, decisionID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute option position: %w", err)
	}
	return next, nil
}

// ListOptions returns a decision's options in ordinal order.
func (q *Queries) ListOptions(ctx context.Context, decisionID string) ([]models.Option, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, decision_id, text, description, position
		FROM option
		WHERE decision_id = $1
		ORDER BY position
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.DecisionID, &o.Text, &o.Description, &o.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// GetOption loads an option that belongs to decisionID.
func (q *Queries) GetOption(ctx context.Context, decisionID, optionID string) (models.Option, error) {
	var o models.Option
	err := q.q.QueryRowContext(ctx, `
		SELECT id, decision_id, text, description, position
		FROM option
		WHERE id = $1 AND decision_id = $2
	`, optionID, decisionID).Scan(&o.ID, &o.DecisionID, &o.Text, &o.Description, &o.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Option{}, apperr.ErrOptionNotFound
	}
	if err != nil {
		return models.Option{}, fmt.Errorf("failed to query option: %w", err)
	}
	return o, nil
}
