package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetFreshnessWindow() time.Duration {
	return GetEnvDuration("SESSION_FRESHNESS", 15*time.Minute)
}

func (Session) GetRefreshMaxAttempts() int {
	return GetEnvInt("REFRESH_MAX_ATTEMPTS", 3)
}

func (Session) GetRefreshCooldown() time.Duration {
	return GetEnvDuration("REFRESH_COOLDOWN", 30*time.Second)
}

// GetRoleAttribute is the user attribute the portal role is read from.
func (Session) GetRoleAttribute() string {
	return GetEnv("ROLE_ATTRIBUTE", "profile")
}

func (Session) GetHomeRoute() string {
	return GetEnv("HOME_ROUTE", "/")
}

func (Session) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/login")
}

// GetClientIdleTimeout is how long a browser session's cache is kept without requests.
func (Session) GetClientIdleTimeout() time.Duration {
	return GetEnvDuration("CLIENT_IDLE_TIMEOUT", time.Hour)
}

func (Session) GetForcedCheckRate() time.Duration {
	return GetEnvDuration("FORCED_CHECK_RATE", time.Second)
}

func (Session) GetForcedCheckBurst() int {
	return GetEnvInt("FORCED_CHECK_BURST", 5)
}
