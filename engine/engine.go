// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-agree/cache"
	"github.com/danielhkuo/quickly-agree/cliparse"
	"github.com/danielhkuo/quickly-agree/history"
	"github.com/danielhkuo/quickly-agree/keylock"
	"github.com/danielhkuo/quickly-agree/ledger"
	"github.com/danielhkuo/quickly-agree/metrics"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/notify"
	"github.com/danielhkuo/quickly-agree/store"
	"github.com/danielhkuo/quickly-agree/transition"
)

// Engine is the decision engine behind the HTTP API.
type Engine struct {
	cfg     cliparse.Config
	store   *store.Store
	ledger  *ledger.Ledger
	cache   *cache.Service
	history *history.Recorder
	machine *transition.Machine
	notify  *notify.Filter
	metrics *metrics.Metrics

	// options serializes option changes per decision.
	options *keylock.Map

	// Now is the clock used for new records.
	Now func() time.Time
}

// New wires the engine components on top of conn. m may be nil.
func New(conn *sql.DB, cfg cliparse.Config, m *metrics.Metrics) (*Engine, error) {
	rules := notify.DefaultRules()
	if cfg.NotifyRules != "" {
		var err error
		rules, err = notify.LoadRules(cfg.NotifyRules)
		if err != nil {
			return nil, err
		}
	}

	st := store.New(conn, cfg.StoreTimeout)
	hist := history.New(st, cfg.HistoryWindowMax)
	filter := notify.New(rules, st, notify.LogSink{}, m)

	snapshots, err := cache.New(cache.Config{TTL: cfg.CacheTTL, Size: cfg.CacheSize}, st, hist, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create consensus cache: %w", err)
	}

	machine := transition.New(st, snapshots, filter, m)
	snapshots.OnRefresh = func(ctx context.Context, snap models.ConsensusSnapshot) {
		if err := machine.Observe(ctx, snap); err != nil {
			slog.Warn("failed to apply consensus snapshot",
				"decision_id", snap.DecisionID,
				"error", err,
			)
		}
	}

	return &Engine{
		cfg:     cfg,
		store:   st,
		ledger:  ledger.New(st, snapshots, filter, m),
		cache:   snapshots,
		history: hist,
		machine: machine,
		notify:  filter,
		metrics: m,
		options: keylock.New(),
		Now:     time.Now,
	}, nil
}

// Resume finishes transitions interrupted by a restart.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	return e.machine.Resume(ctx)
}

// Run drives the due-transition sweep and the notification flush until ctx
// is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.SweepInterval
	if interval <= 0 {
		interval = cliparse.DefaultSweepInterval
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.machine.Run(ctx, interval) })
	g.Go(func() error { return e.notify.Run(ctx, interval) })
	return g.Wait()
}

// SetClock replaces the clock of every component.
func (e *Engine) SetClock(now func() time.Time) {
	e.Now = now
	e.ledger.Now = now
	e.cache.Now = now
	e.history.Now = now
	e.machine.Now = now
	e.notify.Now = now
}
