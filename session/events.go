package session

import (
	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/metrics"
)

// handleEvent reacts to provider push notifications.
func (m *Manager) handleEvent(e identity.Event) {
	switch e.Name {
	case identity.EventSignedIn:
		m.CheckStatus(m.ctx, true)

	case identity.EventSignedOut:
		m.reset()
		m.limiter.Reset()
		m.clearSnapshot(m.ctx)

	case identity.EventTokenRefresh:
		m.onTokenRefresh()

	default:
		m.log.Debug().Str("event", string(e.Name)).Msg("ignoring unknown identity event")
	}
}

// onTokenRefresh records the refresh as a fresh check, subject to the refresh limiter.
// Attributes are not refetched.
func (m *Manager) onTokenRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Authenticated {
		m.metrics.ObserveRefresh(metrics.RefreshIgnored)
		return
	}

	now := m.nowTime()
	if !m.limiter.Allow(now) {
		m.log.Debug().Int("attempts", m.limiter.Attempts()).Msg("token refresh rate limited")
		m.metrics.ObserveRefresh(metrics.RefreshRejected)
		return
	}
	m.lastChecked = now
	m.metrics.ObserveRefresh(metrics.RefreshAccepted)
}
