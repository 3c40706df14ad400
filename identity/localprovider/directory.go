package localprovider

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-course-portal/identity"
	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
	"github.com/jrsteele09/go-course-portal/users"
)

const (
	defaultIssuer         = "portal-local-identity"
	defaultAccessTokenTTL = time.Hour
)

// Directory is a self-contained identity platform for development and tests.
// It stores users with bcrypt password hashes and signs HS256 tokens.
type Directory struct {
	mu        sync.RWMutex
	accounts  map[string]*account // username -> account
	secret    []byte
	issuer    string
	accessTTL time.Duration
	policy    func(password string) error
	nowTime   func() time.Time
}

type account struct {
	userID       string
	username     string
	passwordHash string
	attributes   identity.Attributes
}

type DirectoryOption func(*Directory)

func WithSigningSecret(secret []byte) DirectoryOption {
	return func(d *Directory) {
		d.secret = secret
	}
}

func WithAccessTokenTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		d.accessTTL = ttl
	}
}

// WithPasswordPolicy rejects AddUser passwords the policy returns an error for.
func WithPasswordPolicy(policy func(password string) error) DirectoryOption {
	return func(d *Directory) {
		d.policy = policy
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.nowTime = nowFunc
	}
}

func NewDirectory(options ...DirectoryOption) (*Directory, error) {
	d := &Directory{
		accounts:  make(map[string]*account),
		issuer:    defaultIssuer,
		accessTTL: defaultAccessTokenTTL,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	if len(d.secret) == 0 {
		d.secret = make([]byte, 32)
		if _, err := rand.Read(d.secret); err != nil {
			return nil, errors.Wrap(err, "[NewDirectory] generate signing secret")
		}
	}
	return d, nil
}

// AddUser creates or replaces a user.
func (d *Directory) AddUser(username, password string, attrs identity.Attributes) error {
	if username == "" {
		return errors.New("[AddUser] username is required")
	}
	if d.policy != nil {
		if err := d.policy(password); err != nil {
			return errors.Wrapf(err, "[AddUser] %s", username)
		}
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[AddUser] hash password")
	}

	attributes := attrs.Clone()
	d.mu.Lock()
	defer d.mu.Unlock()

	userID := uuid.New().String()
	if existing, ok := d.accounts[username]; ok {
		userID = existing.userID
	}
	setIdentityAttributes(attributes, userID, username)
	d.accounts[username] = &account{
		userID:       userID,
		username:     username,
		passwordHash: hash,
		attributes:   attributes,
	}
	return nil
}

// SetAttributes replaces a user's profile attributes.
func (d *Directory) SetAttributes(username string, attrs identity.Attributes) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.accounts[username]
	if !ok {
		return perrors.ErrUserNotFound
	}
	acc.attributes = attrs.Clone()
	setIdentityAttributes(acc.attributes, acc.userID, acc.username)
	return nil
}

// setIdentityAttributes fills the standard claims a hosted platform always returns.
func setIdentityAttributes(attrs identity.Attributes, userID, username string) {
	attrs["sub"] = userID
	if _, ok := attrs["preferred_username"]; !ok {
		attrs["preferred_username"] = username
	}
}

func (d *Directory) authenticate(username, password string) (*account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acc, ok := d.accounts[username]
	if !ok {
		return nil, perrors.ErrInvalidCredentials
	}
	if !users.CheckPasswordHash(password, acc.passwordHash) {
		return nil, perrors.ErrInvalidCredentials
	}
	return acc, nil
}

func (d *Directory) lookup(username string) (*account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acc, ok := d.accounts[username]
	if !ok {
		return nil, perrors.ErrUserNotFound
	}
	return &account{
		userID:     acc.userID,
		username:   acc.username,
		attributes: acc.attributes.Clone(),
	}, nil
}

// issueTokens mints a fresh access/ID token pair plus an opaque refresh token.
func (d *Directory) issueTokens(acc *account) (*identity.Tokens, error) {
	now := d.nowTime()
	exp := now.Add(d.accessTTL)

	sign := func(use string) (string, error) {
		claims := jwtlib.MapClaims{
			"iss":       d.issuer,
			"sub":       acc.userID,
			"username":  acc.username,
			"token_use": use,
			"iat":       now.Unix(),
			"exp":       exp.Unix(),
			"jti":       uuid.New().String(),
		}
		return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(d.secret)
	}

	access, err := sign("access")
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	id, err := sign("id")
	if err != nil {
		return nil, fmt.Errorf("failed to sign id token: %w", err)
	}
	return &identity.Tokens{
		AccessToken:  access,
		IDToken:      id,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    exp,
	}, nil
}

// parseAccessToken verifies an access token and returns its username and subject.
func (d *Directory) parseAccessToken(raw string) (username, sub string, err error) {
	token, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (interface{}, error) {
		return d.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(d.issuer),
		jwtlib.WithTimeFunc(d.nowTime),
	)
	if err != nil {
		return "", "", errors.Wrap(err, "[parseAccessToken]")
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", "", errors.New("[parseAccessToken] unexpected claims type")
	}
	username, _ = claims["username"].(string)
	sub, _ = claims["sub"].(string)
	return username, sub, nil
}

// NewClient implements identity.Factory.
func (d *Directory) NewClient() identity.Provider {
	return d.NewLocalClient()
}

// NewLocalClient returns a client with no signed-in user.
func (d *Directory) NewLocalClient() *Client {
	return &Client{
		dir:      d,
		hub:      identity.NewHub(),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
	}
}
