package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/identity/localprovider"
	"github.com/jrsteele09/go-course-portal/identity/oidcprovider"
	"github.com/jrsteele09/go-course-portal/internal/config"
	"github.com/jrsteele09/go-course-portal/storage"
	"github.com/jrsteele09/go-course-portal/storage/memstore"
	"github.com/jrsteele09/go-course-portal/storage/redisstore"
	"github.com/jrsteele09/go-course-portal/storage/sqlitestore"
	"github.com/jrsteele09/go-course-portal/users"
)

// openStore opens the configured snapshot backend. The returned func closes it.
func openStore(ctx context.Context, c config.StorageConfig) (storage.Store, func(), error) {
	switch driver := c.GetStorageDriver(); driver {
	case config.StorageDriverMemory:
		return memstore.New(), func() {}, nil

	case config.StorageDriverSQLite:
		store, err := sqlitestore.Open(c.GetSQLitePath())
		if err != nil {
			return nil, nil, fmt.Errorf("sqlitestore.Open: %w", err)
		}
		log.Info().Str("path", c.GetSQLitePath()).Msg("Using SQLite snapshot store")
		return store, func() { _ = store.Close() }, nil

	case config.StorageDriverRedis:
		store := redisstore.New(c.GetRedisAddr(), c.GetRedisKeyExpiry())
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redisstore.Ping %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using Redis snapshot store")
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// newIdentityFactory connects to the configured identity platform.
func newIdentityFactory(ctx context.Context, c config.Config) (identity.Factory, error) {
	switch provider := c.GetIdentityProvider(); provider {
	case config.IdentityProviderOIDC:
		issuer, err := oidcprovider.NewIssuer(ctx, oidcprovider.ConfigFromEnv(c))
		if err != nil {
			return nil, fmt.Errorf("oidcprovider.NewIssuer: %w", err)
		}
		log.Info().Str("issuer", c.GetIssuerURL()).Msg("Using hosted OIDC identity provider")
		return issuer, nil

	case config.IdentityProviderLocal:
		var opts []localprovider.DirectoryOption
		if c.GetEnv() != "DEV" {
			opts = append(opts, localprovider.WithPasswordPolicy(users.ValidatePasswordStrength))
		}
		dir, err := localprovider.NewDirectory(opts...)
		if err != nil {
			return nil, fmt.Errorf("localprovider.NewDirectory: %w", err)
		}
		for _, u := range c.GetLocalUsers() {
			if err := dir.AddUser(u.Username, u.Password, identity.Attributes{"profile": u.Role}); err != nil {
				return nil, fmt.Errorf("seed local user %s: %w", u.Username, err)
			}
		}
		log.Warn().Int("users", len(c.GetLocalUsers())).Msg("Using local identity directory, not for production")
		return dir, nil

	default:
		return nil, fmt.Errorf("unknown identity provider %q", provider)
	}
}
