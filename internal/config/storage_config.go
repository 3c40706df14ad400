package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	StorageDriverMemory = "memory"
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageDriver() string {
	return strings.ToLower(GetEnv("STORAGE_DRIVER", StorageDriverMemory))
}

func (Storage) GetSQLitePath() string {
	return GetEnv("SQLITE_PATH", filepath.Join(EnvVars{}.GetDataFolder(), "portal.db"))
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

// GetRedisKeyExpiry bounds how long an abandoned browser session's keys survive in Redis.
func (Storage) GetRedisKeyExpiry() time.Duration {
	return GetEnvDuration("REDIS_KEY_EXPIRY", 24*time.Hour)
}
