package session_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-course-portal/session"
	"github.com/stretchr/testify/require"
)

func TestRefreshLimiter(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	l := session.NewRefreshLimiter(3, 30*time.Second)

	require.True(t, l.Allow(start))
	require.True(t, l.Allow(start.Add(time.Second)))
	require.True(t, l.Allow(start.Add(2*time.Second)))
	require.Equal(t, 3, l.Attempts())

	require.False(t, l.Allow(start.Add(10*time.Second)))
	require.False(t, l.Allow(start.Add(31*time.Second)))
	require.Equal(t, 3, l.Attempts())

	require.True(t, l.Allow(start.Add(32*time.Second)))
	require.Equal(t, 4, l.Attempts())
	require.False(t, l.Allow(start.Add(33*time.Second)))

	l.Reset()
	require.Zero(t, l.Attempts())
	require.True(t, l.Allow(start.Add(34*time.Second)))
}

func TestRefreshLimiter_Defaults(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	l := session.NewRefreshLimiter(0, 0)

	for i := 0; i < session.DefaultRefreshMaxAttempts; i++ {
		require.True(t, l.Allow(start))
	}
	require.False(t, l.Allow(start.Add(session.DefaultRefreshCooldown-time.Millisecond)))
	require.True(t, l.Allow(start.Add(session.DefaultRefreshCooldown)))
}
