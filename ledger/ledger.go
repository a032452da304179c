// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/auth"
	"github.com/danielhkuo/quickly-agree/keylock"
	"github.com/danielhkuo/quickly-agree/metrics"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
)

// Invalidator drops cached consensus for a decision.
type Invalidator interface {
	Invalidate(decisionID string)
}

// Publisher receives engine events.
type Publisher interface {
	Publish(ctx context.Context, e models.Event)
}

// Ledger records live votes and their audit trail.
type Ledger struct {
	store   *store.Store
	cache   Invalidator
	events  Publisher
	metrics *metrics.Metrics
	locks   *keylock.Map

	// Now is the clock used for timestamps and expiry checks.
	Now func() time.Time
}

// New builds a ledger. cache, events and m may be nil.
func New(st *store.Store, cache Invalidator, events Publisher, m *metrics.Metrics) *Ledger {
	return &Ledger{
		store:   st,
		cache:   cache,
		events:  events,
		metrics: m,
		locks:   keylock.New(),
		Now:     time.Now,
	}
}

// Cast records a participant's vote, replacing any prior live vote.
func (l *Ledger) Cast(ctx context.Context, decisionID, participantID string, in models.VoteInput, origin models.Origin) (models.Vote, error) {
	return l.write(ctx, decisionID, participantID, in, origin, false)
}

// Change replaces an existing vote. It fails with apperr.ErrNoVote when the
// participant has not voted.
func (l *Ledger) Change(ctx context.Context, decisionID, participantID string, in models.VoteInput, origin models.Origin) (models.Vote, error) {
	return l.write(ctx, decisionID, participantID, in, origin, true)
}

func (l *Ledger) write(ctx context.Context, decisionID, participantID string, in models.VoteInput, origin models.Origin, mustExist bool) (models.Vote, error) {
	unlock := l.locks.Lock(lockKey(decisionID, participantID))
	defer unlock()

	ctx, cancel := l.store.Bound(ctx)
	defer cancel()

	now := l.Now().UTC()
	var vote models.Vote
	action := models.AuditCast

	err := l.store.InTx(ctx, func(q *store.Queries) error {
		participant, err := checkVoter(ctx, q, decisionID, participantID, now)
		if err != nil {
			return err
		}

		if in.OptionID == "" {
			return apperr.ErrMissingOption
		}
		if _, err := q.GetOption(ctx, decisionID, in.OptionID); err != nil {
			return err
		}

		vote, err = buildVote(decisionID, participant, in, origin, now)
		if err != nil {
			return err
		}

		prior, err := q.GetVote(ctx, decisionID, participantID)
		hadPrior := true
		if errors.Is(err, apperr.ErrNoVote) {
			hadPrior = false
		} else if err != nil {
			return err
		}
		if mustExist && !hadPrior {
			return apperr.ErrNoVote
		}

		entry := models.AuditEntry{
			ID:            auth.NewID(),
			DecisionID:    decisionID,
			ParticipantID: participantID,
			Action:        models.AuditCast,
			NewValue:      &vote,
			Origin:        origin.AddressHash,
			Client:        origin.Client,
			CreatedAt:     now,
		}
		if hadPrior {
			if _, err := q.DeleteVote(ctx, decisionID, participantID); err != nil {
				return err
			}
			entry.Action = models.AuditChange
			entry.OldValue = &prior
			action = models.AuditChange
		}

		if err := q.InsertVote(ctx, vote); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.ErrConcurrentVote
			}
			return err
		}
		if err := q.SetParticipantStatus(ctx, decisionID, participantID, models.ParticipantVoted, now); err != nil {
			return err
		}
		return q.InsertAudit(ctx, entry)
	})
	if err != nil {
		return models.Vote{}, err
	}

	eventType := models.EventVoteCast
	if action == models.AuditChange {
		eventType = models.EventVoteChanged
	}
	l.committed(ctx, decisionID, participantID, in.OptionID, action, eventType)

	slog.Info("vote recorded",
		"decision_id", decisionID,
		"participant_id", participantID,
		"option_id", vote.OptionID,
		"action", action,
	)
	return vote, nil
}

// Retract removes a participant's live vote.
func (l *Ledger) Retract(ctx context.Context, decisionID, participantID string, origin models.Origin) error {
	unlock := l.locks.Lock(lockKey(decisionID, participantID))
	defer unlock()

	ctx, cancel := l.store.Bound(ctx)
	defer cancel()

	now := l.Now().UTC()

	err := l.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := checkVoter(ctx, q, decisionID, participantID, now); err != nil {
			return err
		}

		prior, err := q.GetVote(ctx, decisionID, participantID)
		if err != nil {
			return err
		}
		deleted, err := q.DeleteVote(ctx, decisionID, participantID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.ErrNoVote
		}
		if err := q.SetParticipantStatus(ctx, decisionID, participantID, models.ParticipantActive, now); err != nil {
			return err
		}
		return q.InsertAudit(ctx, models.AuditEntry{
			ID:            auth.NewID(),
			DecisionID:    decisionID,
			ParticipantID: participantID,
			Action:        models.AuditRetract,
			OldValue:      &prior,
			Origin:        origin.AddressHash,
			Client:        origin.Client,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return err
	}

	l.committed(ctx, decisionID, participantID, "", models.AuditRetract, models.EventVoteChanged)

	slog.Info("vote retracted",
		"decision_id", decisionID,
		"participant_id", participantID,
	)
	return nil
}

// Get returns a participant's live vote.
func (l *Ledger) Get(ctx context.Context, decisionID, participantID string) (models.Vote, error) {
	ctx, cancel := l.store.Bound(ctx)
	defer cancel()
	return l.store.GetVote(ctx, decisionID, participantID)
}

// Audit returns the decision's audit trail, oldest first.
func (l *Ledger) Audit(ctx context.Context, decisionID string) ([]models.AuditEntry, error) {
	ctx, cancel := l.store.Bound(ctx)
	defer cancel()

	if _, err := l.store.GetDecision(ctx, decisionID); err != nil {
		return nil, err
	}
	return l.store.ListAudit(ctx, decisionID)
}

// committed runs the after-commit side effects of a vote mutation.
func (l *Ledger) committed(ctx context.Context, decisionID, participantID, optionID, action string, eventType models.EventType) {
	if l.cache != nil {
		l.cache.Invalidate(decisionID)
	}
	l.metrics.VoteRecorded(action)
	if l.events != nil {
		l.events.Publish(context.WithoutCancel(ctx), models.Event{
			Type:       eventType,
			DecisionID: decisionID,
			ActorID:    participantID,
			OptionID:   optionID,
			OccurredAt: l.Now().UTC(),
		})
	}
}

// checkVoter verifies the decision accepts votes and the participant may cast them.
func checkVoter(ctx context.Context, q *store.Queries, decisionID, participantID string, now time.Time) (models.Participant, error) {
	d, err := q.GetDecision(ctx, decisionID)
	if err != nil {
		return models.Participant{}, err
	}
	if !d.AcceptsVotes(now) {
		return models.Participant{}, apperr.ErrDecisionNotOpen
	}

	p, err := q.GetParticipant(ctx, decisionID, participantID)
	if errors.Is(err, apperr.ErrNotParticipant) {
		return models.Participant{}, apperr.ErrNotEligible
	}
	if err != nil {
		return models.Participant{}, err
	}
	if !p.CanVote {
		return models.Participant{}, apperr.ErrNotEligible
	}
	return p, nil
}

func lockKey(decisionID, participantID string) string {
	return decisionID + "/" + participantID
}
