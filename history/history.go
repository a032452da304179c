// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package history keeps the append-only time series of consensus snapshots
// used for trend charts. Entries are never pruned here.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/auth"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
)

const (
	DefaultWindow = 24 * time.Hour
	MaxWindow     = 30 * 24 * time.Hour
)

type Recorder struct {
	store     *store.Store
	maxWindow time.Duration

	// Now is the clock used to anchor trailing windows.
	Now func() time.Time
}

// New builds a recorder. A non-positive maxWindow means MaxWindow.
func New(st *store.Store, maxWindow time.Duration) *Recorder {
	if maxWindow <= 0 {
		maxWindow = MaxWindow
	}
	return &Recorder{store: st, maxWindow: maxWindow, Now: time.Now}
}

// Append stores a copy of snap.
func (r *Recorder) Append(ctx context.Context, snap models.ConsensusSnapshot) error {
	ctx, cancel := r.store.Bound(ctx)
	defer cancel()

	var leading *string
	if snap.LeadingOption != nil {
		id := snap.LeadingOption.ID
		leading = &id
	}

	return r.store.InsertHistory(ctx, models.HistoryEntry{
		ID:                 auth.NewID(),
		DecisionID:         snap.DecisionID,
		RecordedAt:         snap.CalculatedAt.UTC(),
		ConsensusLevel:     snap.ConsensusLevel,
		TotalVotes:         snap.TotalVotes,
		ParticipantCount:   snap.ParticipantCount,
		LeadingOptionID:    leading,
		IsConsensusReached: snap.IsConsensusReached,
		Algorithm:          snap.Algorithm,
		ConfidenceScore:    snap.ConfidenceScore,
		Snapshot:           snap,
	})
}

// Trend returns the entries recorded within the trailing window, oldest
// first. A zero window means DefaultWindow.
func (r *Recorder) Trend(ctx context.Context, decisionID string, window time.Duration) ([]models.HistoryEntry, error) {
	if window == 0 {
		window = DefaultWindow
	}
	if window < 0 || window > r.maxWindow {
		return nil, apperr.Validation("invalid_window",
			fmt.Sprintf("window must be between 1 hour and %d hours", int(r.maxWindow.Hours())))
	}

	ctx, cancel := r.store.Bound(ctx)
	defer cancel()

	if _, err := r.store.GetDecision(ctx, decisionID); err != nil {
		return nil, err
	}
	return r.store.ListHistorySince(ctx, decisionID, r.Now().UTC().Add(-window))
}
