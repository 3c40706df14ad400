package oidcprovider_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "portal-web"
	testKeyID    = "test-key"
	testSubject  = "user-123"
)

type authGrant struct {
	challenge string
	nonce     string
}

// fakeIssuer is a minimal OIDC platform: discovery, JWKS, token, userinfo and revocation.
type fakeIssuer struct {
	t   *testing.T
	srv *httptest.Server
	key *rsa.PrivateKey

	mu            sync.Mutex
	codes         map[string]authGrant
	accessTokens  map[string]bool
	refreshTokens map[string]bool
	grants        map[string]int
	revoked       []string
	revokeStatus  int
	userInfo      map[string]any
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{
		t:             t,
		key:           key,
		codes:         make(map[string]authGrant),
		accessTokens:  make(map[string]bool),
		refreshTokens: make(map[string]bool),
		grants:        make(map[string]int),
		revokeStatus:  http.StatusOK,
		userInfo: map[string]any{
			"sub":            testSubject,
			"email":          "jdoe@example.com",
			"email_verified": true,
			"profile":        "instructor",
			"groups":         []string{"course-101", "course-202"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("GET /jwks", f.jwks)
	mux.HandleFunc("POST /token", f.token)
	mux.HandleFunc("GET /userinfo", f.userinfo)
	mux.HandleFunc("POST /revoke", f.revoke)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) URL() string {
	return f.srv.URL
}

// authorize plays the hosted login page: it accepts the auth URL and returns a code.
func (f *fakeIssuer) authorize(authURL string) string {
	f.t.Helper()

	u, err := url.Parse(authURL)
	require.NoError(f.t, err)
	q := u.Query()
	require.Equal(f.t, "S256", q.Get("code_challenge_method"))

	code := uuid.NewString()
	f.mu.Lock()
	f.codes[code] = authGrant{challenge: q.Get("code_challenge"), nonce: q.Get("nonce")}
	f.mu.Unlock()
	return code
}

func (f *fakeIssuer) grantCount(grantType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[grantType]
}

func (f *fakeIssuer) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func (f *fakeIssuer) setRevokeStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeStatus = status
}

// forgetRefreshTokens makes every outstanding refresh token invalid.
func (f *fakeIssuer) forgetRefreshTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTokens = make(map[string]bool)
}

func (f *fakeIssuer) discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                f.srv.URL,
		"authorization_endpoint":                f.srv.URL + "/authorize",
		"token_endpoint":                        f.srv.URL + "/token",
		"jwks_uri":                              f.srv.URL + "/jwks",
		"userinfo_endpoint":                     f.srv.URL + "/userinfo",
		"revocation_endpoint":                   f.srv.URL + "/revoke",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (f *fakeIssuer) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(f.key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(f.key.E)).Bytes()),
		}},
	})
}

func (f *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	grantType := r.PostForm.Get("grant_type")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[grantType]++

	switch grantType {
	case "authorization_code":
		grant, ok := f.codes[r.PostForm.Get("code")]
		delete(f.codes, r.PostForm.Get("code"))
		if !ok || pkceChallenge(r.PostForm.Get("code_verifier")) != grant.challenge {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp := f.newTokensLocked()
		resp["id_token"] = f.signIDToken(grant.nonce)
		writeJSON(w, http.StatusOK, resp)

	case "refresh_token":
		if !f.refreshTokens[r.PostForm.Get("refresh_token")] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp := f.newTokensLocked()
		delete(resp, "refresh_token")
		writeJSON(w, http.StatusOK, resp)

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *fakeIssuer) newTokensLocked() map[string]any {
	access := uuid.NewString()
	refresh := uuid.NewString()
	f.accessTokens[access] = true
	f.refreshTokens[refresh] = true
	return map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": refresh,
	}
}

func (f *fakeIssuer) signIDToken(nonce string) string {
	now := time.Now()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
		"iss":                f.srv.URL,
		"aud":                testClientID,
		"sub":                testSubject,
		"nonce":              nonce,
		"preferred_username": "jdoe",
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(f.key)
	require.NoError(f.t, err)
	return signed
}

func (f *fakeIssuer) userinfo(w http.ResponseWriter, r *http.Request) {
	access := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	valid := f.accessTokens[access]
	info := f.userInfo
	f.mu.Unlock()

	if !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (f *fakeIssuer) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeStatus != http.StatusOK {
		w.WriteHeader(f.revokeStatus)
		return
	}
	token := r.PostForm.Get("token")
	f.revoked = append(f.revoked, token)
	delete(f.refreshTokens, token)
	w.WriteHeader(http.StatusOK)
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
