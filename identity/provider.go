package identity

import (
	"context"
	"time"
)

// EventName identifies a session lifecycle notification pushed by the identity platform.
type EventName string

const (
	EventSignedIn     EventName = "signedIn"
	EventSignedOut    EventName = "signedOut"
	EventTokenRefresh EventName = "tokenRefresh"
)

// Event is a push notification from the identity platform.
type Event struct {
	Name    EventName
	Payload map[string]any
}

// Listener receives provider events. It is called outside of any provider lock.
type Listener func(Event)

// Tokens are the credentials of the current session.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthSession is the result of FetchSession. Tokens is nil when nobody is signed in.
type AuthSession struct {
	Tokens *Tokens
}

// User identifies the signed-in user.
type User struct {
	Username string
	UserID   string
}

// Attributes are the profile fields returned by the identity platform.
type Attributes map[string]string

// Clone returns a copy that shares no state with a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

type SignOutOptions struct {
	Global bool // Sign out of every device and session, not just this one
}

// Provider is the contract consumed by the session cache. Implementations
// talk to a hosted identity platform and are treated as opaque.
type Provider interface {
	FetchSession(ctx context.Context) (AuthSession, error)
	FetchCurrentUser(ctx context.Context) (User, error)
	FetchUserAttributes(ctx context.Context) (Attributes, error)
	SignOut(ctx context.Context, options SignOutOptions) error

	// Subscribe registers a listener and returns its disposer.
	Subscribe(listener Listener) (unsubscribe func())
}

// Factory hands out one Provider client per browser session.
type Factory interface {
	NewClient() Provider
}

// PasswordAuthenticator is implemented by providers that accept credentials directly.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, username, password string) error
}

// HostedLogin is implemented by providers that authenticate through a hosted
// authorization-code flow with PKCE.
type HostedLogin interface {
	AuthCodeURL(state, nonce, codeVerifier string) string
	Exchange(ctx context.Context, code, codeVerifier, nonce string) error
}
