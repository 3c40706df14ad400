package metrics_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-course-portal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSession_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSession(reg)
	require.NoError(t, err)

	m.ObserveCheck(metrics.SourceLive, true)
	m.ObserveCheck(metrics.SourceLive, true)
	m.ObserveCheck(metrics.SourceSnapshot, false)
	m.ObserveRefresh(metrics.RefreshRejected)
	m.ObserveLogout(errors.New("network"))
	m.SetActiveClients(4)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestSession_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewSession(reg)
	require.NoError(t, err)

	_, err = metrics.NewSession(reg)
	require.Error(t, err)
}

func TestSession_NilIsNoop(t *testing.T) {
	var m *metrics.Session
	require.NotPanics(t, func() {
		m.ObserveCheck(metrics.SourceMemory, true)
		m.ObserveRefresh(metrics.RefreshAccepted)
		m.ObserveLogout(nil)
		m.SetActiveClients(1)
	})
}
