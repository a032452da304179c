// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package transition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/keylock"
	"github.com/danielhkuo/quickly-agree/metrics"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
)

// Progress recorded after each step of a transition.
const (
	progressStarted    = 10
	progressPoolReady  = 50
	progressOptionCopy = 90
)

// Snapshotter yields consensus snapshots, recomputing when force is set.
type Snapshotter interface {
	Get(ctx context.Context, decisionID string, force bool) (models.ConsensusSnapshot, error)
}

// Publisher receives engine events.
type Publisher interface {
	Publish(ctx context.Context, e models.Event)
}

// Machine drives decisions through OPEN, AGREEMENT_REACHED, TRANSITIONING
// and CONFIRMING.
type Machine struct {
	store     *store.Store
	snapshots Snapshotter
	events    Publisher
	metrics   *metrics.Metrics
	locks     *keylock.Map

	// Now is the clock used for deadlines and timestamps.
	Now func() time.Time
}

// New builds a state machine. events and m may be nil.
func New(st *store.Store, snapshots Snapshotter, events Publisher, m *metrics.Metrics) *Machine {
	return &Machine{
		store:     st,
		snapshots: snapshots,
		events:    events,
		metrics:   m,
		locks:     keylock.New(),
		Now:       time.Now,
	}
}

// Observe applies the automatic transitions implied by a fresh snapshot:
// OPEN becomes AGREEMENT_REACHED when agreement is reached, and
// AGREEMENT_REACHED falls back to OPEN when it is lost. Other states are
// left alone. Both moves are compare-and-set updates, so Observe takes no
// lock and is safe to call while a transition is being started.
func (m *Machine) Observe(ctx context.Context, snap models.ConsensusSnapshot) error {
	ctx, cancel := m.store.Bound(ctx)
	defer cancel()

	now := m.Now().UTC()

	if !snap.IsConsensusReached {
		reverted, err := m.store.RevertToOpen(ctx, snap.DecisionID)
		if err != nil {
			return err
		}
		if reverted {
			m.metrics.Transition(models.StateOpen)
			slog.Info("agreement lost",
				"decision_id", snap.DecisionID,
				"consensus_level", snap.ConsensusLevel,
			)
		}
		return nil
	}

	d, err := m.store.GetDecision(ctx, snap.DecisionID)
	if err != nil {
		return err
	}
	if d.State != models.StateOpen {
		return nil
	}

	var deadline *time.Time
	if secs := d.Config.AutoTransitionSeconds; secs != nil && *secs >= 0 {
		t := now.Add(time.Duration(*secs) * time.Second)
		deadline = &t
	}

	marked, err := m.store.MarkAgreementReached(ctx, d.ID, now, deadline)
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}

	m.metrics.Transition(models.StateAgreementReached)
	slog.Info("agreement reached",
		"decision_id", d.ID,
		"consensus_level", snap.ConsensusLevel,
		"auto_transition", deadline != nil,
	)

	var optionID string
	if snap.LeadingOption != nil {
		optionID = snap.LeadingOption.ID
	}
	m.publish(ctx, models.EventConsensusReached, d.ID, "", optionID)
	return nil
}

// Start moves an AGREEMENT_REACHED decision into TRANSITIONING and runs
// the transition to completion. Agreement is re-checked against a fresh
// snapshot first; if it no longer holds the decision returns to OPEN and
// apperr.ErrConsensusLost is returned.
func (m *Machine) Start(ctx context.Context, decisionID, actorID string) error {
	unlock := m.locks.Lock(decisionID)
	defer unlock()
	return m.start(ctx, decisionID, actorID)
}

func (m *Machine) start(ctx context.Context, decisionID, actorID string) error {
	d, err := m.getDecision(ctx, decisionID)
	if err != nil {
		return err
	}
	if d.State != models.StateAgreementReached {
		return apperr.ErrInvalidTransition
	}

	snap, err := m.snapshots.Get(ctx, decisionID, true)
	if err != nil {
		return err
	}
	if !snap.IsConsensusReached || snap.LeadingOption == nil {
		bctx, cancel := m.store.Bound(ctx)
		defer cancel()
		if _, err := m.store.RevertToOpen(bctx, decisionID); err != nil {
			return err
		}
		return apperr.ErrConsensusLost
	}

	bctx, cancel := m.store.Bound(ctx)
	begun, err := m.store.BeginTransition(bctx, decisionID, snap.LeadingOption.ID, progressStarted)
	cancel()
	if err != nil {
		return err
	}
	if !begun {
		return apperr.ErrInvalidTransition
	}

	m.metrics.Transition(models.StateTransitioning)
	slog.Info("transition started",
		"decision_id", decisionID,
		"winning_option_id", snap.LeadingOption.ID,
		"actor_id", actorID,
	)
	m.publish(ctx, models.EventTransitionStarted, decisionID, actorID, snap.LeadingOption.ID)

	return m.complete(ctx, decisionID)
}

// Complete runs the remaining steps of a TRANSITIONING decision. Steps
// already recorded are skipped, and a decision already CONFIRMING is left
// untouched, so Complete may be repeated safely.
func (m *Machine) Complete(ctx context.Context, decisionID string) error {
	unlock := m.locks.Lock(decisionID)
	defer unlock()
	return m.complete(ctx, decisionID)
}

func (m *Machine) complete(ctx context.Context, decisionID string) error {
	ctx, cancel := m.store.Bound(ctx)
	defer cancel()

	d, err := m.store.GetDecision(ctx, decisionID)
	if err != nil {
		return err
	}
	switch d.State {
	case models.StateConfirming:
		return nil
	case models.StateTransitioning:
	default:
		return apperr.ErrInvalidTransition
	}

	now := m.Now().UTC()
	step := stepIndex(d.TransitionStep)

	if step < stepIndex(models.StepPoolReady) {
		err := m.store.InTx(ctx, func(q *store.Queries) error {
			if err := q.MaterializeConfirmations(ctx, decisionID, now); err != nil {
				return err
			}
			return q.SetTransitionProgress(ctx, decisionID, models.StepPoolReady, progressPoolReady)
		})
		if err != nil {
			return err
		}
	}

	if step < stepIndex(models.StepOptionCopied) {
		err := m.store.InTx(ctx, func(q *store.Queries) error {
			if err := q.CopyWinningOption(ctx, decisionID); err != nil {
				return err
			}
			return q.SetTransitionProgress(ctx, decisionID, models.StepOptionCopied, progressOptionCopy)
		})
		if err != nil {
			return err
		}
	}

	done, err := m.store.CompleteTransition(ctx, decisionID, now)
	if err != nil {
		return err
	}
	if !done {
		// Cancelled between steps.
		return apperr.ErrInvalidTransition
	}

	m.metrics.Transition(models.StateConfirming)
	slog.Info("transition completed", "decision_id", decisionID)

	var winner string
	if d.WinningOptionID != nil {
		winner = *d.WinningOptionID
	}
	m.publish(ctx, models.EventTransitionCompleted, decisionID, "", winner)
	return nil
}

// Cancel aborts an in-progress transition, returning the decision to
// AGREEMENT_REACHED and dropping any confirmations created so far.
// CONFIRMING cannot be undone.
func (m *Machine) Cancel(ctx context.Context, decisionID string) error {
	unlock := m.locks.Lock(decisionID)
	defer unlock()

	ctx, cancel := m.store.Bound(ctx)
	defer cancel()

	err := m.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.GetDecision(ctx, decisionID); err != nil {
			return err
		}
		cancelled, err := q.CancelTransition(ctx, decisionID)
		if err != nil {
			return err
		}
		if !cancelled {
			return apperr.ErrInvalidTransition
		}
		return q.DeleteConfirmations(ctx, decisionID)
	})
	if err != nil {
		return err
	}

	m.metrics.Transition(models.StateAgreementReached)
	slog.Info("transition cancelled", "decision_id", decisionID)
	return nil
}

// CancelCountdown clears a pending auto-transition deadline. It is a no-op
// when no countdown is running.
func (m *Machine) CancelCountdown(ctx context.Context, decisionID string) error {
	unlock := m.locks.Lock(decisionID)
	defer unlock()

	ctx, cancel := m.store.Bound(ctx)
	defer cancel()

	d, err := m.store.GetDecision(ctx, decisionID)
	if err != nil {
		return err
	}
	if d.State != models.StateAgreementReached {
		return apperr.ErrInvalidTransition
	}

	cleared, err := m.store.ClearDeadline(ctx, decisionID)
	if err != nil {
		return err
	}
	if cleared {
		slog.Info("auto-transition cancelled", "decision_id", decisionID)
	}
	return nil
}

// CheckDue starts the transition of a decision whose countdown has
// elapsed. It reports whether the decision moved to CONFIRMING. Calling it
// for a decision that is not due does nothing.
func (m *Machine) CheckDue(ctx context.Context, decisionID string) (bool, error) {
	unlock := m.locks.Lock(decisionID)
	defer unlock()

	d, err := m.getDecision(ctx, decisionID)
	if err != nil {
		return false, err
	}
	if d.State != models.StateAgreementReached || d.TransitionDeadline == nil {
		return false, nil
	}
	if m.Now().Before(*d.TransitionDeadline) {
		return false, nil
	}

	err = m.start(ctx, decisionID, "")
	if errors.Is(err, apperr.ErrConsensusLost) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Status describes where a decision is in its lifecycle.
func (m *Machine) Status(ctx context.Context, decisionID string) (models.TransitionStatus, error) {
	d, err := m.getDecision(ctx, decisionID)
	if err != nil {
		return models.TransitionStatus{}, err
	}

	status := models.TransitionStatus{
		DecisionID:      d.ID,
		State:           d.State,
		Step:            d.TransitionStep,
		Progress:        d.TransitionProgress,
		Deadline:        d.TransitionDeadline,
		WinningOptionID: d.WinningOptionID,
	}
	if d.State == models.StateConfirming {
		status.Progress = 100
	}
	if d.TransitionDeadline != nil {
		status.DeadlineText = humanize.RelTime(*d.TransitionDeadline, m.Now(), "ago", "from now")
	}
	return status, nil
}

// Confirmations lists the confirmation pool created by a transition.
func (m *Machine) Confirmations(ctx context.Context, decisionID string) ([]models.Confirmation, error) {
	ctx, cancel := m.store.Bound(ctx)
	defer cancel()

	if _, err := m.store.GetDecision(ctx, decisionID); err != nil {
		return nil, err
	}
	return m.store.ListConfirmations(ctx, decisionID)
}

func (m *Machine) getDecision(ctx context.Context, decisionID string) (models.Decision, error) {
	ctx, cancel := m.store.Bound(ctx)
	defer cancel()
	return m.store.GetDecision(ctx, decisionID)
}

func (m *Machine) publish(ctx context.Context, t models.EventType, decisionID, actorID, optionID string) {
	if m.events == nil {
		return
	}
	m.events.Publish(context.WithoutCancel(ctx), models.Event{
		Type:       t,
		DecisionID: decisionID,
		ActorID:    actorID,
		OptionID:   optionID,
		OccurredAt: m.Now().UTC(),
	})
}

// stepIndex orders transition steps.
func stepIndex(step string) int {
	switch step {
	case models.StepStarted:
		return 1
	case models.StepPoolReady:
		return 2
	case models.StepOptionCopied:
		return 3
	case models.StepDone:
		return 4
	default:
		return 0
	}
}
