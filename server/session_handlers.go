package server

import (
	"net/http"
	"strconv"
)

// SessionStatusHandler returns the cached session state (GET /api/session).
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := clientFrom(r).Manager.CheckStatus(r.Context(), false)
		writeJSON(w, http.StatusOK, st)
	}
}

// SessionCheckHandler runs a status check, live when force=true (POST /api/session/check).
func (s *Server) SessionCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientFrom(r)

		force := false
		if raw := r.URL.Query().Get("force"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "force must be true or false")
				return
			}
			force = parsed
		}

		if force && !client.AllowForcedCheck(s.nowTime()) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many forced session checks")
			return
		}

		st := client.Manager.CheckStatus(r.Context(), force)
		writeJSON(w, http.StatusOK, st)
	}
}

type tokensResponse struct {
	HasTokens bool `json:"hasTokens"`
}

// SessionTokensHandler reports whether the identity provider holds tokens
// for this browser, independent of the cached state (GET /api/session/tokens).
func (s *Server) SessionTokensHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		has := clientFrom(r).Manager.ProbeTokens(r.Context())
		writeJSON(w, http.StatusOK, tokensResponse{HasTokens: has})
	}
}

// MeHandler returns the signed-in user's profile.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := sessionFrom(r)
		writeJSON(w, http.StatusOK, st)
	}
}

// PingHandler answers instructors only.
func (s *Server) PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := sessionFrom(r)
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"username": st.Username,
			"role":     st.Role.String(),
		})
	}
}
