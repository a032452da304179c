// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package transition

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/cache"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
	"github.com/danielhkuo/quickly-agree/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) Publish(_ context.Context, e models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []models.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	db         *sql.DB
	store      *store.Store
	cache      *cache.Service
	machine    *Machine
	events     *eventLog
	decisionID string
	optionA    string
	optionB    string
}

func setup(t *testing.T, dcfg *models.DecisionConfig) *env {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	decisionID, _ := testutil.CreateTestDecision(t, conn, testutil.GetTestConfig(), models.StateOpen, dcfg)

	st := store.New(conn, time.Second)
	svc, err := cache.New(cache.Config{}, st, nil, nil)
	require.NoError(t, err)

	events := &eventLog{}
	m := New(st, svc, events, nil)
	svc.OnRefresh = func(ctx context.Context, snap models.ConsensusSnapshot) {
		if err := m.Observe(ctx, snap); err != nil {
			t.Errorf("observe: %v", err)
		}
	}

	return &env{
		db:         conn,
		store:      st,
		cache:      svc,
		machine:    m,
		events:     events,
		decisionID: decisionID,
		optionA:    testutil.AddTestOption(t, conn, decisionID, "Pizza"),
		optionB:    testutil.AddTestOption(t, conn, decisionID, "Sushi"),
	}
}

// vote adds a new participant voting for option and drops the cached snapshot.
func (e *env) vote(t *testing.T, option string) {
	t.Helper()
	n, err := e.store.CountVotes(context.Background(), e.decisionID)
	require.NoError(t, err)
	pid, _ := testutil.CreateTestParticipant(t, e.db, e.decisionID, "voter-"+string(rune('a'+n)))
	testutil.InsertTestVote(t, e.db, e.decisionID, pid, option, time.Now())
	e.cache.Invalidate(e.decisionID)
}

func (e *env) state(t *testing.T) models.Decision {
	t.Helper()
	d, err := e.store.GetDecision(context.Background(), e.decisionID)
	require.NoError(t, err)
	return d
}

func (e *env) refresh(t *testing.T) models.ConsensusSnapshot {
	t.Helper()
	snap, err := e.cache.Get(context.Background(), e.decisionID, false)
	require.NoError(t, err)
	return snap
}

func TestObserveMarksAndRevertsAgreement(t *testing.T) {
	e := setup(t, nil)

	e.vote(t, e.optionA)
	e.vote(t, e.optionA)
	e.vote(t, e.optionA)
	require.True(t, e.refresh(t).IsConsensusReached)

	d := e.state(t)
	require.Equal(t, models.StateAgreementReached, d.State)
	require.NotNil(t, d.AgreementReachedAt)
	require.Nil(t, d.TransitionDeadline)
	require.Equal(t, []models.EventType{models.EventConsensusReached}, e.events.types())

	// Observing the same agreement again changes nothing.
	_, err := e.cache.Get(context.Background(), e.decisionID, true)
	require.NoError(t, err)
	require.Len(t, e.events.types(), 1)

	e.vote(t, e.optionB)
	e.vote(t, e.optionB)
	e.vote(t, e.optionB)
	require.False(t, e.refresh(t).IsConsensusReached)

	d = e.state(t)
	require.Equal(t, models.StateOpen, d.State)
	require.Nil(t, d.AgreementReachedAt)
}

func TestStartCompletesTransition(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	e.vote(t, e.optionA)
	e.vote(t, e.optionA)
	e.vote(t, e.optionB)
	e.refresh(t)
	require.Equal(t, models.StateAgreementReached, e.state(t).State)

	require.NoError(t, e.machine.Start(ctx, e.decisionID, "proposer"))

	d := e.state(t)
	require.Equal(t, models.StateConfirming, d.State)
	require.Equal(t, models.StepDone, d.TransitionStep)
	require.Equal(t, 100, d.TransitionProgress)
	require.Equal(t, e.optionA, *d.WinningOptionID)
	require.Equal(t, "Pizza", *d.FinalOptionText)
	require.NotNil(t, d.ConfirmedAt)

	pool, err := e.machine.Confirmations(ctx, e.decisionID)
	require.NoError(t, err)
	require.Len(t, pool, 3)
	for _, c := range pool {
		require.Equal(t, models.ConfirmationPending, c.Status)
	}

	require.Equal(t, []models.EventType{
		models.EventConsensusReached,
		models.EventTransitionStarted,
		models.EventTransitionCompleted,
	}, e.events.types())

	status, err := e.machine.Status(ctx, e.decisionID)
	require.NoError(t, err)
	require.Equal(t, 100, status.Progress)
	require.Equal(t, models.StateConfirming, status.State)

	require.ErrorIs(t, e.machine.Start(ctx, e.decisionID, "proposer"), apperr.ErrInvalidTransition)
}

func TestCompleteIsIdempotent(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	e.vote(t, e.optionA)
	e.vote(t, e.optionA)
	e.refresh(t)
	require.NoError(t, e.machine.Start(ctx, e.decisionID, "proposer"))

	require.NoError(t, e.machine.Complete(ctx, e.decisionID))
	require.NoError(t, e.machine.Complete(ctx, e.decisionID))

	pool, err := e.store.ListConfirmations(ctx, e.decisionID)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	require.Equal(t, models.StateConfirming, e.state(t).State)
	require.Len(t, e.events.types(), 3, "a repeated completion publishes nothing")
}

func TestResumeSkipsRecordedSteps(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	e.vote(t, e.optionA)
	e.vote(t, e.optionA)
	e.refresh(t)

	// Simulate a crash right after the pool was materialized.
	ok, err := e.store.BeginTransition(ctx, e.decisionID, e.optionA, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, e.store.MaterializeConfirmations(ctx, e.decisionID, time.Now().UTC()))
	require.NoError(t, e.store.SetTransitionProgress(ctx, e.decisionID, models.StepPoolReady, 50))

	// A participant invited after the pool was built is not added on resume.
	testutil.CreateTestParticipant(t, e.db, e.decisionID, "latecomer")

	resumed, err := e.machine.Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, resumed)

	pool, err := e.store.ListConfirmations(ctx, e.decisionID)
	require.NoError(t, err)
	require.Len(t, pool, 2)

	d := e.state(t)
	require.Equal(t, models.StateConfirming, d.State)
	require.Equal(t, "Pizza", *d.FinalOptionText)

	resumed, err = e.machine.Resume(ctx)
	require.NoError(t, err)
	require.Zero(t, resumed)
}

func TestStartRequiresAgreement(t *testing.T) {
	e := setup(t, nil)
	require.ErrorIs(t, e.machine.Start(context.Background(), e.decisionID, "proposer"), apperr.ErrInvalidTransition)
	require.ErrorIs(t, e.machine.Start(context.Background(), "missing", "proposer"), apperr.ErrDecisionNotFound)
}

func TestStartRevertsWhenAgreementLost(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	e.vote(t, e.optionA)
	e.refresh(t)
	require.Equal(t, models.StateAgreementReached, e.state(t).State)

	// New votes land before anyone re-reads consensus.
	e.vote(t, e.optionB)
	e.vote(t, e.optionB)

	err := e.machine.Start(ctx, e.decisionID, "proposer")
	require.ErrorIs(t, err, apperr.ErrConsensusLost)
	require.Equal(t, models.StateOpen, e.state(t).State)
}

func TestCancel(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	e.vote(t, e.optionA)
	e.refresh(t)

	ok, err := e.store.BeginTransition(ctx, e.decisionID, e.optionA, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, e.store.MaterializeConfirmations(ctx, e.decisionID, time.Now().UTC()))

	require.NoError(t, e.machine.Cancel(ctx, e.decisionID))

	d := e.state(t)
	require.Equal(t, models.StateAgreementReached, d.State)
	require.Zero(t, d.TransitionProgress)
	require.Nil(t, d.WinningOptionID)

	pool, err := e.store.ListConfirmations(ctx, e.decisionID)
	require.NoError(t, err)
	require.Empty(t, pool)

	require.ErrorIs(t, e.machine.Cancel(ctx, e.decisionID), apperr.ErrInvalidTransition)

	require.NoError(t, e.machine.Start(ctx, e.decisionID, "proposer"))
	require.ErrorIs(t, e.machine.Cancel(ctx, e.decisionID), apperr.ErrInvalidTransition,
		"CONFIRMING cannot be undone")
}

func countdownConfig(seconds int) *models.DecisionConfig {
	cfg := models.DefaultConfig()
	cfg.AutoTransitionSeconds = &seconds
	return &cfg
}

func TestCountdownTransitionsWhenDue(t *testing.T) {
	e := setup(t, countdownConfig(60))
	ctx := context.Background()

	t0 := time.Now().UTC()
	offset := time.Duration(0)
	e.machine.Now = func() time.Time { return t0.Add(offset) }

	e.vote(t, e.optionA)
	e.refresh(t)

	d := e.state(t)
	require.Equal(t, models.StateAgreementReached, d.State)
	require.NotNil(t, d.TransitionDeadline)
	require.WithinDuration(t, t0.Add(time.Minute), *d.TransitionDeadline, time.Millisecond)

	offset = 30 * time.Second
	moved, err := e.machine.CheckDue(ctx, e.decisionID)
	require.NoError(t, err)
	require.False(t, moved)

	status, err := e.machine.Status(ctx, e.decisionID)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(status.DeadlineText, "from now"), status.DeadlineText)

	offset = 61 * time.Second
	n, err := e.machine.SweepDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, models.StateConfirming, e.state(t).State)

	// Already transitioned: checking again is a no-op.
	moved, err = e.machine.CheckDue(ctx, e.decisionID)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestCancelCountdown(t *testing.T) {
	e := setup(t, countdownConfig(60))
	ctx := context.Background()

	t0 := time.Now().UTC()
	offset := time.Duration(0)
	e.machine.Now = func() time.Time { return t0.Add(offset) }

	require.ErrorIs(t, e.machine.CancelCountdown(ctx, e.decisionID), apperr.ErrInvalidTransition)

	e.vote(t, e.optionA)
	e.refresh(t)

	require.NoError(t, e.machine.CancelCountdown(ctx, e.decisionID))
	require.NoError(t, e.machine.CancelCountdown(ctx, e.decisionID))
	require.Nil(t, e.state(t).TransitionDeadline)

	offset = 2 * time.Minute
	moved, err := e.machine.CheckDue(ctx, e.decisionID)
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, models.StateAgreementReached, e.state(t).State)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := setup(t, nil)
	defer e.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- e.machine.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
