package oidcprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-course-portal/identity"
	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
	"github.com/jrsteele09/go-course-portal/internal/utils"
)

var (
	_ identity.Provider    = (*Client)(nil)
	_ identity.HostedLogin = (*Client)(nil)
)

// Client is one browser session's connection to the hosted platform. Tokens
// live in memory only.
type Client struct {
	issuer *Issuer
	hub    *identity.Hub

	mu      sync.Mutex
	token   *oauth2.Token
	idToken string
}

// AuthCodeURL builds the hosted login URL with a nonce and an S256 PKCE challenge.
func (c *Client) AuthCodeURL(state, nonce, codeVerifier string) string {
	return c.issuer.oauth2Config.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchange redeems an authorization code, verifies the ID token and its
// nonce, then publishes signedIn.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier, nonce string) error {
	ctx = c.issuer.clientContext(ctx)

	token, err := c.issuer.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return errors.Wrap(err, "[Exchange] token exchange")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.Wrap(perrors.ErrNoIDToken, "[Exchange]")
	}
	idToken, err := c.issuer.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return errors.Wrap(err, "[Exchange] verify id token")
	}
	if idToken.Nonce != nonce {
		return errors.Wrap(perrors.ErrNonceMismatch, "[Exchange]")
	}

	c.mu.Lock()
	c.token = token
	c.idToken = rawIDToken
	c.mu.Unlock()

	c.hub.Publish(identity.Event{
		Name:    identity.EventSignedIn,
		Payload: map[string]any{"sub": idToken.Subject},
	})
	return nil
}

// FetchSession returns the stored tokens. An expired access token is
// refreshed with the refresh token, which publishes tokenRefresh.
func (c *Client) FetchSession(ctx context.Context) (identity.AuthSession, error) {
	c.mu.Lock()
	if c.token == nil {
		c.mu.Unlock()
		return identity.AuthSession{}, nil
	}

	refreshed := false
	if c.expired(c.token) {
		if c.token.RefreshToken == "" {
			c.mu.Unlock()
			return identity.AuthSession{}, errors.Wrap(perrors.ErrTokenExpired, "[FetchSession]")
		}
		source := c.issuer.oauth2Config.TokenSource(c.issuer.clientContext(ctx), &oauth2.Token{
			RefreshToken: c.token.RefreshToken,
		})
		token, err := source.Token()
		if err != nil {
			c.mu.Unlock()
			return identity.AuthSession{}, errors.Wrap(err, "[FetchSession] refresh")
		}
		if token.RefreshToken == "" {
			token.RefreshToken = c.token.RefreshToken
		}
		if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
			c.idToken = raw
		}
		c.token = token
		refreshed = true
	}
	tokens := &identity.Tokens{
		AccessToken:  c.token.AccessToken,
		IDToken:      c.idToken,
		RefreshToken: c.token.RefreshToken,
		ExpiresAt:    c.token.Expiry,
	}
	c.mu.Unlock()

	if refreshed {
		c.hub.Publish(identity.Event{Name: identity.EventTokenRefresh})
	}
	return identity.AuthSession{Tokens: tokens}, nil
}

// FetchCurrentUser reads the user from the stored ID token. The token was
// verified at exchange, so it is not verified again here.
func (c *Client) FetchCurrentUser(ctx context.Context) (identity.User, error) {
	c.mu.Lock()
	raw := c.idToken
	c.mu.Unlock()
	if raw == "" {
		return identity.User{}, errors.Wrap(perrors.ErrNotAuthenticated, "[FetchCurrentUser]")
	}

	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return identity.User{}, errors.Wrap(err, "[FetchCurrentUser] parse id token")
	}

	sub, _ := claims["sub"].(string)
	username := ""
	for _, key := range []string{"preferred_username", "cognito:username", "username"} {
		if v, ok := claims[key].(string); ok && v != "" {
			username = v
			break
		}
	}
	return identity.User{Username: username, UserID: sub}, nil
}

// FetchUserAttributes calls the UserInfo endpoint and flattens its claims to strings.
func (c *Client) FetchUserAttributes(ctx context.Context) (identity.Attributes, error) {
	c.mu.Lock()
	if c.token == nil {
		c.mu.Unlock()
		return nil, errors.Wrap(perrors.ErrNotAuthenticated, "[FetchUserAttributes]")
	}
	token := *c.token
	c.mu.Unlock()

	info, err := c.issuer.provider.UserInfo(c.issuer.clientContext(ctx), oauth2.StaticTokenSource(&token))
	if err != nil {
		return nil, errors.Wrap(err, "[FetchUserAttributes] userinfo")
	}
	claims := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[FetchUserAttributes] decode claims")
	}

	attrs := flattenClaims(claims)
	if attrs["sub"] == "" {
		attrs["sub"] = info.Subject
	}
	return attrs, nil
}

// SignOut drops the local tokens and publishes signedOut. A global sign-out
// also revokes the refresh token at the platform; its failure is returned
// after the local session has ended.
func (c *Client) SignOut(ctx context.Context, options identity.SignOutOptions) error {
	c.mu.Lock()
	token := c.token
	c.token = nil
	c.idToken = ""
	c.mu.Unlock()

	var revokeErr error
	if options.Global && token != nil && token.RefreshToken != "" {
		revokeErr = c.revoke(ctx, token.RefreshToken, "refresh_token")
	}

	c.hub.Publish(identity.Event{
		Name:    identity.EventSignedOut,
		Payload: map[string]any{"global": options.Global},
	})
	return revokeErr
}

func (c *Client) Subscribe(listener identity.Listener) func() {
	return c.hub.Subscribe(listener)
}

// revoke posts an RFC 7009 revocation request.
func (c *Client) revoke(ctx context.Context, token, tokenTypeHint string) error {
	endpoint := c.issuer.revocationEndpoint
	if endpoint == "" {
		return errors.Wrap(perrors.ErrUnsupported, "[SignOut] no revocation endpoint")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", tokenTypeHint)
	form.Set("client_id", c.issuer.oauth2Config.ClientID)
	if c.issuer.oauth2Config.ClientSecret != "" {
		form.Set("client_secret", c.issuer.oauth2Config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[SignOut] build revocation request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.issuer.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[SignOut] revoke token")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("[SignOut] revocation failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) expired(token *oauth2.Token) bool {
	if token.AccessToken == "" {
		return true
	}
	if token.Expiry.IsZero() {
		return false
	}
	return !c.issuer.nowTime().Before(token.Expiry)
}

func flattenClaims(claims map[string]any) identity.Attributes {
	attrs := make(identity.Attributes, len(claims))
	for k, v := range claims {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			attrs[k] = val
		case bool:
			attrs[k] = strconv.FormatBool(val)
		case float64:
			attrs[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case []any:
			// Lists of strings such as groups are kept comma separated
			if strs := utils.ToStringSlice(val); len(strs) == len(val) {
				attrs[k] = strings.Join(strs, ",")
				continue
			}
			raw, err := json.Marshal(val)
			if err != nil {
				continue
			}
			attrs[k] = string(raw)
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				continue
			}
			attrs[k] = string(raw)
		}
	}
	return attrs
}
