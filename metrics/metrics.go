package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Check sources
const (
	SourceMemory   = "memory"
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

// Refresh decisions
const (
	RefreshAccepted = "accepted"
	RefreshRejected = "rejected"
	RefreshIgnored  = "ignored"
)

// Session holds the session cache collectors. A nil *Session records nothing.
type Session struct {
	checks        *prometheus.CounterVec
	refreshEvents *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	activeClients prometheus.Gauge
}

// NewSession creates the collectors and registers them with reg.
func NewSession(reg prometheus.Registerer) (*Session, error) {
	s := &Session{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "checks_total",
			Help:      "Session status checks by where the answer came from and whether the user was authenticated.",
		}, []string{"source", "result"}),
		refreshEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "refresh_events_total",
			Help:      "Token refresh events by limiter decision.",
		}, []string{"decision"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Logouts by provider sign-out result.",
		}, []string{"result"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "active_clients",
			Help:      "Browser sessions with a live session cache.",
		}),
	}

	for _, c := range []prometheus.Collector{s.checks, s.refreshEvents, s.logouts, s.activeClients} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) ObserveCheck(source string, authenticated bool) {
	if s == nil {
		return
	}
	result := "unauthenticated"
	if authenticated {
		result = "authenticated"
	}
	s.checks.WithLabelValues(source, result).Inc()
}

func (s *Session) ObserveRefresh(decision string) {
	if s == nil {
		return
	}
	s.refreshEvents.WithLabelValues(decision).Inc()
}

func (s *Session) ObserveLogout(err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.logouts.WithLabelValues(result).Inc()
}

func (s *Session) SetActiveClients(n int) {
	if s == nil {
		return
	}
	s.activeClients.Set(float64(n))
}
