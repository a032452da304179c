// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package transition

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-agree/models"
)

// SweepDue runs CheckDue for every decision whose countdown has elapsed and
// returns how many of them moved to CONFIRMING. A failure on one decision
// is logged and does not stop the sweep.
func (m *Machine) SweepDue(ctx context.Context) (int, error) {
	bctx, cancel := m.store.Bound(ctx)
	ids, err := m.store.ListDueDecisions(bctx, m.Now().UTC())
	cancel()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return moved, ctx.Err()
		}
		ok, err := m.CheckDue(ctx, id)
		if err != nil {
			slog.Warn("due transition failed", "decision_id", id, "error", err)
			continue
		}
		if ok {
			moved++
		}
	}
	return moved, nil
}

// Resume completes every decision left TRANSITIONING, such as after a
// crash between steps.
func (m *Machine) Resume(ctx context.Context) (int, error) {
	bctx, cancel := m.store.Bound(ctx)
	ids, err := m.store.ListDecisionsInState(bctx, models.StateTransitioning)
	cancel()
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, id := range ids {
		if err := m.Complete(ctx, id); err != nil {
			slog.Warn("failed to resume transition", "decision_id", id, "error", err)
			continue
		}
		resumed++
	}
	if resumed > 0 {
		slog.Info("resumed transitions", "count", resumed)
	}
	return resumed, nil
}

// Run sweeps due transitions every interval until ctx is cancelled.
func (m *Machine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.SweepDue(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("transition sweep failed", "error", err)
			}
		}
	}
}
