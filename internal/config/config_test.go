package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-course-portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, 15*time.Minute, c.GetFreshnessWindow())
	require.Equal(t, 3, c.GetRefreshMaxAttempts())
	require.Equal(t, 30*time.Second, c.GetRefreshCooldown())
	require.Equal(t, "profile", c.GetRoleAttribute())
	require.Equal(t, "/", c.GetHomeRoute())
	require.Equal(t, "/login", c.GetLoginRoute())
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, config.IdentityProviderLocal, c.GetIdentityProvider())
	require.Equal(t, config.StorageDriverMemory, c.GetStorageDriver())
	require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, c.GetScopes())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_FRESHNESS", "5m")
	t.Setenv("REFRESH_MAX_ATTEMPTS", "7")
	t.Setenv("STORAGE_DRIVER", "Redis")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	c := config.New()

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 5*time.Minute, c.GetFreshnessWindow())
	require.Equal(t, 7, c.GetRefreshMaxAttempts())
	require.Equal(t, config.StorageDriverRedis, c.GetStorageDriver())

	origins := c.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("https://a.example.com"))
	require.True(t, origins.IsAllowedOrigin("https://b.example.com"))
	require.False(t, origins.IsAllowedOrigin("https://c.example.com"))
}

func TestConfig_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_FRESHNESS", "soon")
	t.Setenv("REFRESH_COOLDOWN", "-1s")
	t.Setenv("REFRESH_MAX_ATTEMPTS", "zero")

	c := config.New()

	require.Equal(t, 15*time.Minute, c.GetFreshnessWindow())
	require.Equal(t, 30*time.Second, c.GetRefreshCooldown())
	require.Equal(t, 3, c.GetRefreshMaxAttempts())
}

func TestConfig_LocalUsers(t *testing.T) {
	t.Setenv("LOCAL_USERS", "jdoe:Password123:instructor, sam:secret ,broken, :nopass:admin")

	users := config.New().GetLocalUsers()

	require.Equal(t, []config.LocalUser{
		{Username: "jdoe", Password: "Password123", Role: "instructor"},
		{Username: "sam", Password: "secret", Role: "student"},
	}, users)
}
