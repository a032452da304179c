// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.VoteRecorded("CAST")
	m.CacheRequest(CacheHit)
	m.ObserveCompute(time.Millisecond)
	m.Transition("CONFIRMING")
	m.Notification(NotifySent)
	require.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.VoteRecorded("CAST")
	m.VoteRecorded("CAST")
	m.VoteRecorded("RETRACT")
	m.CacheRequest(CacheMiss)

	require.Equal(t, 2.0, testutil.ToFloat64(m.votes.WithLabelValues("CAST")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("RETRACT")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues(CacheMiss)))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.Transition("AGREEMENT_REACHED")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	require.True(t, strings.Contains(body, `quickly_agree_transitions_total{to="AGREEMENT_REACHED"} 1`), body)
	require.True(t, strings.Contains(body, "go_goroutines"))
}
