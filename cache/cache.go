// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/quickly-agree/consensus"
	"github.com/danielhkuo/quickly-agree/keylock"
	"github.com/danielhkuo/quickly-agree/metrics"
	"github.com/danielhkuo/quickly-agree/models"
)

const (
	DefaultTTL  = 30 * time.Second
	DefaultSize = 1024
)

// Loader reads what the calculator needs for one decision.
type Loader interface {
	LoadTally(ctx context.Context, decisionID string) (consensus.Input, models.DecisionConfig, error)
}

// Recorder receives a copy of every computed snapshot.
type Recorder interface {
	Append(ctx context.Context, snap models.ConsensusSnapshot) error
}

type Config struct {
	TTL  time.Duration
	Size int
}

type entry struct {
	snap     models.ConsensusSnapshot
	storedAt time.Time
	seq      uint64
}

// Service memoizes consensus snapshots per decision.
type Service struct {
	loader   Loader
	recorder Recorder
	metrics  *metrics.Metrics
	ttl      time.Duration
	entries  *lru.Cache
	group    singleflight.Group

	// gens counts invalidations per decision so a computation that started
	// before an invalidation never repopulates the cache.
	mu   sync.Mutex
	gens map[string]uint64

	// seqs numbers loads per decision in the order they start. delivered
	// holds the newest sequence handed to OnRefresh; older snapshots that
	// finish late are not delivered.
	seqs      map[string]uint64
	delivered map[string]uint64
	deliver   *keylock.Map

	// OnRefresh, when set, runs after every recomputation that is not
	// older than one it already received.
	OnRefresh func(ctx context.Context, snap models.ConsensusSnapshot)

	// Now is the clock used for freshness and snapshot timestamps.
	Now func() time.Time
}

// New builds a cache service. recorder and m may be nil.
func New(cfg Config, loader Loader, recorder Recorder, m *metrics.Metrics) (*Service, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}

	entries, err := lru.New(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create consensus cache: %w", err)
	}

	return &Service{
		loader:    loader,
		recorder:  recorder,
		metrics:   m,
		ttl:       cfg.TTL,
		entries:   entries,
		gens:      make(map[string]uint64),
		seqs:      make(map[string]uint64),
		delivered: make(map[string]uint64),
		deliver:   keylock.New(),
		Now:       time.Now,
	}, nil
}

// Get returns the decision's snapshot. A fresh cached value is returned
// as is unless force is set; otherwise the snapshot is recomputed, cached,
// appended to history and handed to OnRefresh.
func (s *Service) Get(ctx context.Context, decisionID string, force bool) (models.ConsensusSnapshot, error) {
	if !force {
		if v, ok := s.entries.Get(decisionID); ok {
			e := v.(entry)
			if s.Now().Sub(e.storedAt) < s.ttl {
				s.metrics.CacheRequest(metrics.CacheHit)
				return e.snap, nil
			}
		}
	}
	s.metrics.CacheRequest(metrics.CacheMiss)

	gen := s.generation(decisionID)
	key := decisionID + "@" + strconv.FormatUint(gen, 10)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx), decisionID, gen)
	})
	if err != nil {
		return models.ConsensusSnapshot{}, err
	}
	return v.(models.ConsensusSnapshot), nil
}

// Invalidate drops the cached snapshot for a decision.
func (s *Service) Invalidate(decisionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[decisionID]++
	s.entries.Remove(decisionID)
}

// Len reports the number of cached decisions.
func (s *Service) Len() int {
	return s.entries.Len()
}

func (s *Service) generation(decisionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[decisionID]
}

func (s *Service) nextSeq(decisionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[decisionID]++
	return s.seqs[decisionID]
}

func (s *Service) refresh(ctx context.Context, decisionID string, gen uint64) (models.ConsensusSnapshot, error) {
	start := time.Now()
	seq := s.nextSeq(decisionID)

	in, cfg, err := s.loader.LoadTally(ctx, decisionID)
	if err != nil {
		return models.ConsensusSnapshot{}, err
	}
	now := s.Now().UTC()
	snap := consensus.Compute(in, cfg, now)

	s.metrics.ObserveCompute(time.Since(start))

	s.mu.Lock()
	if s.gens[decisionID] == gen {
		if v, ok := s.entries.Peek(decisionID); !ok || v.(entry).seq < seq {
			s.entries.Add(decisionID, entry{snap: snap, storedAt: now, seq: seq})
		}
	}
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.Append(ctx, snap); err != nil {
			slog.Warn("failed to record consensus history",
				"decision_id", decisionID,
				"error", err,
			)
		}
	}

	if s.OnRefresh != nil {
		s.publish(ctx, decisionID, snap, seq)
	}

	return snap, nil
}

// publish hands snap to OnRefresh unless a later load was already handed
// over. Deliveries for one decision never overlap.
func (s *Service) publish(ctx context.Context, decisionID string, snap models.ConsensusSnapshot, seq uint64) {
	unlock := s.deliver.Lock(decisionID)
	defer unlock()

	s.mu.Lock()
	stale := seq <= s.delivered[decisionID]
	if !stale {
		s.delivered[decisionID] = seq
	}
	s.mu.Unlock()

	if stale {
		slog.Debug("dropped out of order consensus snapshot",
			"decision_id", decisionID,
			"seq", seq,
		)
		return
	}
	s.OnRefresh(ctx, snap)
}
