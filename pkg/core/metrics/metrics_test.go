//
//  Copyright © Manetu Inc. All rights reserved.
//

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDecision(t *testing.T) {
	m := New()

	m.ObserveDecision("Proprietary", "3", 10*time.Millisecond)
	m.ObserveDecision("Proprietary", "3", 20*time.Millisecond)
	m.ObserveDecision("Public", "2a", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("Proprietary", "3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("Public", "2a")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.decisionDuration))
}

func TestObserveCache(t *testing.T) {
	m := New()

	m.ObserveCache("schedule.keywords", true)
	m.ObserveCache("schedule.keywords", false)
	m.ObserveCache("schedule.keywords", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("schedule.keywords", Hit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("schedule.keywords", Miss)))
}

func TestCollaboratorAndResync(t *testing.T) {
	m := New()

	m.CollaboratorError("compute_ownerhint")
	m.ObserveResync(true)
	m.ObserveResync(false)
	m.ObserveResync(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.collaboratorErrors.WithLabelValues("compute_ownerhint")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resyncDirectories.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resyncDirectories.WithLabelValues("failed")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveDecision("Public", "6", time.Second)
		m.ObserveCache("x", true)
		m.CollaboratorError("x")
		m.ObserveResync(true)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveDecision("Unknown", "4z", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `aauth_decisions_total{rule="4z",visibility="Unknown"} 1`), body)
}
