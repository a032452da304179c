// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-agree/models"
)

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
dedup_window: 10m
batch_size: 5
respect_activity: true
inactive_after: 48h
quiet_hours:
  start: 22
  end: 7
  timezone: UTC
`))
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, rules.DedupWindow)
	require.Equal(t, 5, rules.BatchSize)
	require.True(t, rules.RespectActivity)
	require.Equal(t, 48*time.Hour, rules.InactiveAfter)
	require.NotNil(t, rules.QuietHours)
	require.Equal(t, 22, rules.QuietHours.Start)

	rules, err = ParseRules([]byte("batch_size: 2\n"))
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, rules.DedupWindow, "default kept")
	require.Nil(t, rules.QuietHours)
}

func TestParseRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative dedup", "dedup_window: -1m\n"},
		{"negative batch", "batch_size: -1\n"},
		{"zero inactive", "inactive_after: 0s\n"},
		{"hour out of range", "quiet_hours:\n  start: 25\n  end: 7\n"},
		{"bad timezone", "quiet_hours:\n  start: 22\n  end: 7\n  timezone: Mars/Olympus\n"},
		{"not yaml", "dedup_window: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 3\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Equal(t, 3, rules.BatchSize)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestQuietHoursActive(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 6, 1, h, 30, 0, 0, time.UTC) }

	overnight := &QuietHours{Start: 22, End: 7}
	require.True(t, overnight.Active(at(23)))
	require.True(t, overnight.Active(at(3)))
	require.False(t, overnight.Active(at(7)))
	require.False(t, overnight.Active(at(12)))

	daytime := &QuietHours{Start: 9, End: 17}
	require.True(t, daytime.Active(at(9)))
	require.False(t, daytime.Active(at(17)))

	var none *QuietHours
	require.False(t, none.Active(at(23)))
}

func TestPriorityOf(t *testing.T) {
	require.Equal(t, PriorityHigh, PriorityOf(models.EventConsensusReached))
	require.Equal(t, PriorityHigh, PriorityOf(models.EventTransitionStarted))
	require.Equal(t, PriorityHigh, PriorityOf(models.EventTransitionCompleted))
	require.Equal(t, PriorityLow, PriorityOf(models.EventVoteCast))
	require.Equal(t, PriorityLow, PriorityOf(models.EventVoteChanged))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := sink.Deliver(context.Background(), []Notice{{
		Recipient: "bob",
		Event:     models.Event{Type: models.EventVoteCast, DecisionID: "dec-1", OptionID: "opt-1"},
		Priority:  PriorityLow,
	}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"recipient":"bob"`)
	require.Contains(t, buf.String(), `"event":"VOTE_CAST"`)
	require.Contains(t, buf.String(), `"priority":"low"`)
}
