// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/danielhkuo/quickly-agree/metrics"
	"github.com/danielhkuo/quickly-agree/models"
)

// Recipients lists the participants of a decision.
type Recipients interface {
	ListParticipants(ctx context.Context, decisionID string) ([]models.Participant, error)
}

type dedupKey struct {
	recipient  string
	decisionID string
	eventType  models.EventType
}

// Filter turns engine events into notices and applies the delivery rules.
// It never reports back to the engine: failures are logged and counted.
type Filter struct {
	rules      Rules
	recipients Recipients
	sink       Sink
	metrics    *metrics.Metrics

	mu      sync.Mutex
	sent    map[dedupKey]time.Time
	held    []Notice
	batches map[string][]Notice

	// Now is the clock used for dedup windows and quiet hours.
	Now func() time.Time
}

// New builds a filter. m may be nil.
func New(rules Rules, recipients Recipients, sink Sink, m *metrics.Metrics) *Filter {
	return &Filter{
		rules:      rules,
		recipients: recipients,
		sink:       sink,
		metrics:    m,
		sent:       make(map[dedupKey]time.Time),
		batches:    make(map[string][]Notice),
		Now:        time.Now,
	}
}

// Publish addresses e to every participant of its decision except the actor.
func (f *Filter) Publish(ctx context.Context, e models.Event) {
	participants, err := f.recipients.ListParticipants(ctx, e.DecisionID)
	if err != nil {
		slog.Warn("failed to resolve notification recipients",
			"decision_id", e.DecisionID,
			"event", string(e.Type),
			"error", err,
		)
		f.metrics.Notification(metrics.NotifyFailed)
		return
	}

	priority := PriorityOf(e.Type)
	now := f.Now()

	var ready []Notice
	f.mu.Lock()
	for _, p := range participants {
		if p.ParticipantID == e.ActorID {
			continue
		}
		n := Notice{Recipient: p.ParticipantID, Event: e, Priority: priority}
		ready = append(ready, f.route(n, p, now)...)
	}
	f.mu.Unlock()

	f.deliver(ctx, ready)
}

// route decides what happens to one notice and returns the notices that are
// ready to deliver now. f.mu must be held.
func (f *Filter) route(n Notice, p models.Participant, now time.Time) []Notice {
	key := dedupKey{recipient: n.Recipient, decisionID: n.Event.DecisionID, eventType: n.Event.Type}
	if f.rules.DedupWindow > 0 {
		if last, ok := f.sent[key]; ok && now.Sub(last) < f.rules.DedupWindow {
			f.metrics.Notification(metrics.NotifyDeduped)
			return nil
		}
	}
	f.sent[key] = now

	if n.Priority == PriorityHigh {
		return []Notice{n}
	}

	if f.rules.RespectActivity && inactive(p, now, f.rules.InactiveAfter) {
		f.metrics.Notification(metrics.NotifyDropped)
		return nil
	}

	if f.rules.QuietHours.Active(now) {
		f.held = append(f.held, n)
		f.metrics.Notification(metrics.NotifyHeld)
		return nil
	}

	if f.rules.BatchSize > 0 {
		batch := append(f.batches[n.Recipient], n)
		if len(batch) < f.rules.BatchSize {
			f.batches[n.Recipient] = batch
			f.metrics.Notification(metrics.NotifyBatched)
			return nil
		}
		delete(f.batches, n.Recipient)
		return batch
	}

	return []Notice{n}
}

// Flush delivers every queued batch, and the held notices once quiet hours
// are over. Expired dedup entries are forgotten.
func (f *Filter) Flush(ctx context.Context) {
	now := f.Now()

	f.mu.Lock()
	var ready []Notice
	recipients := make([]string, 0, len(f.batches))
	for r := range f.batches {
		recipients = append(recipients, r)
	}
	sort.Strings(recipients)
	for _, r := range recipients {
		ready = append(ready, f.batches[r]...)
		delete(f.batches, r)
	}
	if len(f.held) > 0 && !f.rules.QuietHours.Active(now) {
		ready = append(ready, f.held...)
		f.held = nil
	}
	for key, at := range f.sent {
		if now.Sub(at) >= f.rules.DedupWindow {
			delete(f.sent, key)
		}
	}
	f.mu.Unlock()

	f.deliver(ctx, ready)
}

// Pending reports how many notices are queued or held.
func (f *Filter) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.held)
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// Run flushes every interval until ctx is cancelled, then flushes once more.
func (f *Filter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.Flush(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

func (f *Filter) deliver(ctx context.Context, notices []Notice) {
	if len(notices) == 0 {
		return
	}
	if err := f.sink.Deliver(ctx, notices); err != nil {
		slog.Warn("notification delivery failed", "count", len(notices), "error", err)
		for range notices {
			f.metrics.Notification(metrics.NotifyFailed)
		}
		return
	}
	for range notices {
		f.metrics.Notification(metrics.NotifySent)
	}
}

func inactive(p models.Participant, now time.Time, after time.Duration) bool {
	last := p.CreatedAt
	if p.LastActiveAt != nil {
		last = *p.LastActiveAt
	}
	return now.Sub(last) > after
}
