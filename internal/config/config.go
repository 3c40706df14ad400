package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	IdentityConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetDataFolder() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// SessionConfig carries the session cache policy.
type SessionConfig interface {
	GetFreshnessWindow() time.Duration
	GetRefreshMaxAttempts() int
	GetRefreshCooldown() time.Duration
	GetRoleAttribute() string
	GetHomeRoute() string
	GetLoginRoute() string
	GetClientIdleTimeout() time.Duration
	GetForcedCheckRate() time.Duration
	GetForcedCheckBurst() int
}

// IdentityConfig selects and configures the identity platform.
type IdentityConfig interface {
	GetIdentityProvider() string
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string
	GetLocalUsers() []LocalUser
}

// StorageConfig selects the snapshot store backend.
type StorageConfig interface {
	GetStorageDriver() string
	GetSQLitePath() string
	GetRedisAddr() string
	GetRedisKeyExpiry() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Identity
	Storage
}

func New() Config {
	return mainConfig{}
}
