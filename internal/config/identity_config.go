package config

import "strings"

const (
	IdentityProviderLocal = "local"
	IdentityProviderOIDC  = "oidc"
)

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityProvider() string {
	return strings.ToLower(GetEnv("IDENTITY_PROVIDER", IdentityProviderLocal))
}

func (Identity) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Identity) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Identity) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Identity) GetRedirectURL() string {
	return GetEnv("OIDC_REDIRECT_URL", EnvVars{}.GetBaseURL()+"/callback")
}

func (Identity) GetScopes() []string {
	var scopes []string
	for _, s := range strings.Split(GetEnv("OIDC_SCOPES", "openid,profile,email,offline_access"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// LocalUser seeds the local identity directory in development.
type LocalUser struct {
	Username string
	Password string
	Role     string
}

// GetLocalUsers parses LOCAL_USERS, a comma separated list of
// username:password:role entries. Malformed entries are skipped.
func (Identity) GetLocalUsers() []LocalUser {
	var out []LocalUser
	for _, entry := range strings.Split(GetEnv("LOCAL_USERS", ""), ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		u := LocalUser{Username: parts[0], Password: parts[1], Role: "student"}
		if len(parts) > 2 && parts[2] != "" {
			u.Role = parts[2]
		}
		out = append(out, u)
	}
	return out
}
