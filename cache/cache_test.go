// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-agree/consensus"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
	"github.com/danielhkuo/quickly-agree/testutil"
)

type fakeLoader struct {
	calls atomic.Int32
	votes atomic.Int32 // votes for option a
	block chan struct{}
	err   error
}

func (f *fakeLoader) LoadTally(_ context.Context, decisionID string) (consensus.Input, models.DecisionConfig, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return consensus.Input{}, models.DecisionConfig{}, f.err
	}
	in := consensus.Input{
		DecisionID:       decisionID,
		Options:          []models.Option{{ID: "a", Text: "A", Position: 0}},
		ParticipantCount: 10,
	}
	for i := int32(0); i < f.votes.Load(); i++ {
		in.Votes = append(in.Votes, models.Vote{OptionID: "a", Weight: 1, CreatedAt: time.Now()})
	}
	return in, models.DefaultConfig(), nil
}

type fakeRecorder struct {
	mu    sync.Mutex
	snaps []models.ConsensusSnapshot
}

func (f *fakeRecorder) Append(_ context.Context, snap models.ConsensusSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

func newService(t *testing.T, loader Loader, rec Recorder) *Service {
	t.Helper()
	svc, err := New(Config{TTL: 30 * time.Second, Size: 8}, loader, rec, nil)
	require.NoError(t, err)
	return svc
}

func TestHitWithinTTLDoesNotRecompute(t *testing.T) {
	loader := &fakeLoader{}
	rec := &fakeRecorder{}
	svc := newService(t, loader, rec)
	ctx := context.Background()

	first, err := svc.Get(ctx, "d1", false)
	require.NoError(t, err)
	second, err := svc.Get(ctx, "d1", false)
	require.NoError(t, err)

	require.Equal(t, int32(1), loader.calls.Load())
	require.Equal(t, first.CalculatedAt, second.CalculatedAt)
	require.Equal(t, 1, rec.count(), "only computed snapshots are recorded")
}

func TestForceRefreshRecomputes(t *testing.T) {
	loader := &fakeLoader{}
	svc := newService(t, loader, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "d1", false)
	require.NoError(t, err)
	loader.votes.Store(1)

	snap, err := svc.Get(ctx, "d1", true)
	require.NoError(t, err)
	require.Equal(t, int32(2), loader.calls.Load())
	require.Equal(t, 1, snap.TotalVotes)
}

func TestInvalidateDropsEntry(t *testing.T) {
	loader := &fakeLoader{}
	svc := newService(t, loader, nil)
	ctx := context.Background()

	snap, err := svc.Get(ctx, "d1", false)
	require.NoError(t, err)
	require.Zero(t, snap.TotalVotes)
	require.Equal(t, 1, svc.Len())

	loader.votes.Store(2)
	svc.Invalidate("d1")
	require.Zero(t, svc.Len())

	snap, err = svc.Get(ctx, "d1", false)
	require.NoError(t, err)
	require.Equal(t, 2, snap.TotalVotes)
	require.Equal(t, int32(2), loader.calls.Load())
}

func TestTTLExpiry(t *testing.T) {
	loader := &fakeLoader{}
	svc := newService(t, loader, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	ctx := context.Background()

	_, err := svc.Get(ctx, "d1", false)
	require.NoError(t, err)

	now = now.Add(29 * time.Second)
	_, err = svc.Get(ctx, "d1", false)
	require.NoError(t, err)
	require.Equal(t, int32(1), loader.calls.Load())

	now = now.Add(2 * time.Second)
	_, err = svc.Get(ctx, "d1", false)
	require.NoError(t, err)
	require.Equal(t, int32(2), loader.calls.Load())
}

func TestConcurrentMissesShareOneComputation(t *testing.T) {
	loader := &fakeLoader{block: make(chan struct{})}
	svc := newService(t, loader, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Get(context.Background(), "d1", false); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(loader.block)
	wg.Wait()

	require.Equal(t, int32(1), loader.calls.Load())
}

func TestInvalidateDuringComputeIsNotCached(t *testing.T) {
	loader := &fakeLoader{block: make(chan struct{})}
	svc := newService(t, loader, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Get(context.Background(), "d1", false)
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.Invalidate("d1")
	close(loader.block)
	<-done

	require.Zero(t, svc.Len(), "a snapshot computed before invalidation must not be cached")
}

func TestLoaderErrorIsReturned(t *testing.T) {
	loader := &fakeLoader{err: errors.New("boom")}
	svc := newService(t, loader, nil)

	_, err := svc.Get(context.Background(), "d1", false)
	require.EqualError(t, err, "boom")
	require.Zero(t, svc.Len())
}

func TestOnRefreshSeesEveryComputation(t *testing.T) {
	loader := &fakeLoader{}
	svc := newService(t, loader, nil)
	var seen []models.ConsensusSnapshot
	svc.OnRefresh = func(_ context.Context, snap models.ConsensusSnapshot) {
		seen = append(seen, snap)
	}

	ctx := context.Background()
	_, _ = svc.Get(ctx, "d1", false)
	_, _ = svc.Get(ctx, "d1", false)
	_, _ = svc.Get(ctx, "d1", true)

	require.Len(t, seen, 2)
}

// heldLoader parks its first load after reading the tally.
type heldLoader struct {
	calls   atomic.Int32
	reached atomic.Bool
	hold    chan struct{}
}

func (l *heldLoader) LoadTally(_ context.Context, decisionID string) (consensus.Input, models.DecisionConfig, error) {
	n := l.calls.Add(1)
	in := consensus.Input{
		DecisionID:       decisionID,
		Options:          []models.Option{{ID: "a", Text: "A", Position: 0}},
		ParticipantCount: 1,
	}
	if l.reached.Load() {
		in.Votes = append(in.Votes, models.Vote{OptionID: "a", Weight: 1, CreatedAt: time.Now()})
	}
	if n == 1 {
		<-l.hold
	}
	return in, models.DefaultConfig(), nil
}

func TestOnRefreshSkipsOlderLoadFinishingLate(t *testing.T) {
	loader := &heldLoader{hold: make(chan struct{})}
	loader.reached.Store(true)
	rec := &fakeRecorder{}
	svc := newService(t, loader, rec)

	var mu sync.Mutex
	var seen []models.ConsensusSnapshot
	svc.OnRefresh = func(_ context.Context, snap models.ConsensusSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, snap)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Get(context.Background(), "d1", true)
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	// The vote is retracted while the first load is parked.
	loader.reached.Store(false)
	svc.Invalidate("d1")
	latest, err := svc.Get(context.Background(), "d1", true)
	require.NoError(t, err)
	require.False(t, latest.IsConsensusReached)

	close(loader.hold)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	require.False(t, seen[0].IsConsensusReached)
	require.Equal(t, 2, rec.count())

	cached, err := svc.Get(context.Background(), "d1", false)
	require.NoError(t, err)
	require.False(t, cached.IsConsensusReached)
}

func TestGetAgainstStore(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	decisionID, _ := testutil.CreateTestDecision(t, conn, testutil.GetTestConfig(), models.StateOpen, nil)
	a := testutil.AddTestOption(t, conn, decisionID, "A")
	b := testutil.AddTestOption(t, conn, decisionID, "B")
	now := time.Now()
	for i, option := range []string{a, a, a, b, b} {
		pid, _ := testutil.CreateTestParticipant(t, conn, decisionID, "voter"+string(rune('a'+i)))
		testutil.InsertTestVote(t, conn, decisionID, pid, option, now)
	}

	svc := newService(t, store.New(conn, time.Second), nil)
	snap, err := svc.Get(context.Background(), decisionID, false)
	require.NoError(t, err)
	require.Equal(t, 5, snap.TotalVotes)
	require.Equal(t, a, snap.LeadingOption.ID)
	require.InDelta(t, 60.0, snap.ConsensusLevel, 1e-9)
	require.True(t, snap.IsConsensusReached)
}

func TestGetUnknownDecision(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	svc := newService(t, store.New(conn, time.Second), nil)
	_, err := svc.Get(context.Background(), "missing", false)
	require.Error(t, err)
}
