package localprovider

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-course-portal/identity"
	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
)

// Op names a provider call, for fault injection and call counting.
type Op string

const (
	OpSignIn              Op = "signIn"
	OpFetchSession        Op = "fetchSession"
	OpFetchCurrentUser    Op = "fetchCurrentUser"
	OpFetchUserAttributes Op = "fetchUserAttributes"
	OpSignOut             Op = "signOut"
)

var (
	_ identity.Provider              = (*Client)(nil)
	_ identity.PasswordAuthenticator = (*Client)(nil)
	_ identity.Factory               = (*Directory)(nil)
)

// Client is one browser session's connection to the Directory.
type Client struct {
	dir *Directory
	hub *identity.Hub

	mu       sync.Mutex
	tokens   *identity.Tokens
	username string
	failures map[Op]error
	calls    map[Op]int
}

// SignIn checks the credentials, mints tokens and publishes signedIn.
func (c *Client) SignIn(ctx context.Context, username, password string) error {
	if err := c.begin(OpSignIn); err != nil {
		return err
	}
	acc, err := c.dir.authenticate(username, password)
	if err != nil {
		return errors.Wrap(err, "[SignIn]")
	}
	tokens, err := c.dir.issueTokens(acc)
	if err != nil {
		return errors.Wrap(err, "[SignIn]")
	}

	c.mu.Lock()
	c.tokens = tokens
	c.username = acc.username
	c.mu.Unlock()

	c.hub.Publish(identity.Event{
		Name:    identity.EventSignedIn,
		Payload: map[string]any{"username": acc.username},
	})
	return nil
}

// FetchSession returns the current tokens. An expired access token is
// refreshed, which publishes tokenRefresh.
func (c *Client) FetchSession(ctx context.Context) (identity.AuthSession, error) {
	if err := c.begin(OpFetchSession); err != nil {
		return identity.AuthSession{}, err
	}

	c.mu.Lock()
	if c.tokens == nil {
		c.mu.Unlock()
		return identity.AuthSession{}, nil
	}
	refreshed := false
	if !c.dir.nowTime().Before(c.tokens.ExpiresAt) {
		acc, err := c.dir.lookup(c.username)
		if err != nil {
			c.tokens = nil
			c.mu.Unlock()
			return identity.AuthSession{}, errors.Wrap(perrors.ErrInvalidRefreshToken, "[FetchSession]")
		}
		tokens, err := c.dir.issueTokens(acc)
		if err != nil {
			c.mu.Unlock()
			return identity.AuthSession{}, errors.Wrap(err, "[FetchSession] refresh")
		}
		c.tokens = tokens
		refreshed = true
	}
	tokens := *c.tokens
	c.mu.Unlock()

	if refreshed {
		c.hub.Publish(identity.Event{Name: identity.EventTokenRefresh})
	}
	return identity.AuthSession{Tokens: &tokens}, nil
}

func (c *Client) FetchCurrentUser(ctx context.Context) (identity.User, error) {
	if err := c.begin(OpFetchCurrentUser); err != nil {
		return identity.User{}, err
	}
	access, err := c.accessToken()
	if err != nil {
		return identity.User{}, errors.Wrap(err, "[FetchCurrentUser]")
	}
	username, sub, err := c.dir.parseAccessToken(access)
	if err != nil {
		return identity.User{}, errors.Wrap(err, "[FetchCurrentUser]")
	}
	return identity.User{Username: username, UserID: sub}, nil
}

func (c *Client) FetchUserAttributes(ctx context.Context) (identity.Attributes, error) {
	if err := c.begin(OpFetchUserAttributes); err != nil {
		return nil, err
	}
	if _, err := c.accessToken(); err != nil {
		return nil, errors.Wrap(err, "[FetchUserAttributes]")
	}

	c.mu.Lock()
	username := c.username
	c.mu.Unlock()

	acc, err := c.dir.lookup(username)
	if err != nil {
		return nil, errors.Wrap(err, "[FetchUserAttributes]")
	}
	return acc.attributes, nil
}

// SignOut drops the tokens and publishes signedOut. The local directory has
// a single session per client, so Global has no extra effect.
func (c *Client) SignOut(ctx context.Context, options identity.SignOutOptions) error {
	if err := c.begin(OpSignOut); err != nil {
		return err
	}

	c.mu.Lock()
	c.tokens = nil
	c.username = ""
	c.mu.Unlock()

	c.hub.Publish(identity.Event{
		Name:    identity.EventSignedOut,
		Payload: map[string]any{"global": options.Global},
	})
	return nil
}

func (c *Client) Subscribe(listener identity.Listener) func() {
	return c.hub.Subscribe(listener)
}

// Emit pushes an arbitrary event to subscribers, as the hosted platform would.
func (c *Client) Emit(event identity.Event) {
	c.hub.Publish(event)
}

// ExpireAccessToken marks the current access token as expired so the next
// FetchSession refreshes it.
func (c *Client) ExpireAccessToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens != nil {
		c.tokens.ExpiresAt = c.dir.nowTime()
	}
}

// FailNext makes the next call to op return err without side effects.
func (c *Client) FailNext(op Op, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = err
}

// Calls returns how many times op has been invoked.
func (c *Client) Calls(op Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Subscribers returns the number of active event subscriptions.
func (c *Client) Subscribers() int {
	return c.hub.Len()
}

func (c *Client) begin(op Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[op]++
	if err, ok := c.failures[op]; ok {
		delete(c.failures, op)
		return err
	}
	return nil
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		return "", perrors.ErrNotAuthenticated
	}
	return c.tokens.AccessToken, nil
}
