package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-course-portal/session"
	"github.com/jrsteele09/go-course-portal/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClient stores the browser session's *Client
	ContextKeyClient ContextKey = "client"
	// ContextKeySession stores the session.State checked by RequireSession
	ContextKeySession ContextKey = "session"
)

// ClientMiddleware resolves the browser session from its cookie, issuing a
// new id when the cookie is missing or the server no longer knows it.
func (s *Server) ClientMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var client *Client
		if cookie, err := r.Cookie(clientCookieName); err == nil && cookie.Value != "" {
			client, _ = s.clients.Get(cookie.Value)
		}

		if client == nil {
			c, err := s.clients.GetOrCreate(uuid.NewString())
			if err != nil {
				s.log.Error().Err(err).Msg("failed to create browser session")
				writeError(w, http.StatusInternalServerError, "internal_error", "Failed to start session")
				return
			}
			client = c
		}
		s.SetClientCookie(w, client.ID, r)

		ctx := context.WithValue(r.Context(), ContextKeyClient, client)
		next(w, r.WithContext(ctx))
	}
}

func clientFrom(r *http.Request) *Client {
	c, _ := r.Context().Value(ContextKeyClient).(*Client)
	return c
}

func sessionFrom(r *http.Request) (session.State, bool) {
	st, ok := r.Context().Value(ContextKeySession).(session.State)
	return st, ok
}

// RequireSession lets authenticated sessions through. Anyone else is sent
// to the login route with the requested path as the return target.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			client := clientFrom(r)
			st := client.Manager.CheckStatus(r.Context(), false)
			if !st.Authenticated {
				redirectSuccess(w, r, client.Manager.LoginRedirect(r.URL.RequestURI()))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, st)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole must be chained after RequireSession.
func (s *Server) RequireRole(role users.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			st, ok := sessionFrom(r)
			if !ok || !st.Role.AtLeast(role) {
				writeError(w, http.StatusForbidden, "forbidden", role.String()+" role required")
				return
			}
			next(w, r)
		}
	}
}
