package oidcprovider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/internal/config"
	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
)

// Config describes the portal's registration with the hosted identity platform.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// ConfigFromEnv reads the OIDC registration from the identity configuration.
func ConfigFromEnv(cfg config.IdentityConfig) Config {
	return Config{
		IssuerURL:    cfg.GetIssuerURL(),
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetRedirectURL(),
		Scopes:       cfg.GetScopes(),
	}
}

// Issuer holds the discovered endpoints of one identity platform and hands
// out per-browser clients.
type Issuer struct {
	provider           *oidc.Provider
	oauth2Config       *oauth2.Config
	verifier           *oidc.IDTokenVerifier
	revocationEndpoint string
	httpClient         *http.Client
	nowTime            func() time.Time
}

var _ identity.Factory = (*Issuer)(nil)

type IssuerOption func(*Issuer)

func WithHTTPClient(client *http.Client) IssuerOption {
	return func(i *Issuer) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// NewIssuer runs OIDC discovery against cfg.IssuerURL.
func NewIssuer(ctx context.Context, cfg Config, options ...IssuerOption) (*Issuer, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("[NewIssuer] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[NewIssuer] client ID is required")
	}

	i := &Issuer{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(i)
	}

	provider, err := oidc.NewProvider(i.clientContext(ctx), cfg.IssuerURL)
	if err != nil {
		return nil, perrors.Wrapf(err, "[NewIssuer] discovery for %s", cfg.IssuerURL)
	}

	var discovery struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, perrors.Wrapf(err, "[NewIssuer] read discovery document")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	i.provider = provider
	i.revocationEndpoint = discovery.RevocationEndpoint
	i.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}
	i.verifier = provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
		Now:      i.nowTime,
	})
	return i, nil
}

func (i *Issuer) NewClient() identity.Provider {
	return i.NewOIDCClient()
}

// NewOIDCClient returns the concrete client, for callers that need HostedLogin.
func (i *Issuer) NewOIDCClient() *Client {
	return &Client{
		issuer: i,
		hub:    identity.NewHub(),
	}
}

// RevocationEndpoint is empty when the platform does not advertise one.
func (i *Issuer) RevocationEndpoint() string {
	return i.revocationEndpoint
}

func (i *Issuer) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, i.httpClient)
}
