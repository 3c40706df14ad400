package server

import (
	"net/http"

	"github.com/jrsteele09/go-course-portal/identity"
)

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientFrom(r)

		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		// Check for authorization errors
		if errorParam != "" {
			s.log.Warn().Str("error", errorParam).Str("description", errorDesc).Msg("hosted login returned an error")
			redirectWithError(w, r, s.config.GetLoginRoute(), "Sign-in was cancelled or failed")
			return
		}

		if code == "" || state == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "Missing code or state parameter")
			return
		}

		authState, err := s.authFlows.Get(state)
		if err != nil || authState == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid state parameter")
			return
		}

		// Clean up state after use
		if err := s.authFlows.Delete(state); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to clear login state")
			return
		}

		if s.nowTime().Sub(authState.CreatedAt) > authFlowTTL {
			redirectWithError(w, r, s.config.GetLoginRoute(), "Sign-in took too long, please try again")
			return
		}

		// The flow must finish in the browser session that started it
		if authState.ClientID != client.ID {
			writeError(w, http.StatusBadRequest, "invalid_request", "Login was started in a different session")
			return
		}

		hosted, ok := client.Provider.(identity.HostedLogin)
		if !ok {
			writeError(w, http.StatusNotFound, "unsupported", "Hosted login is not available")
			return
		}

		// Exchange verifies the ID token and nonce, then publishes signedIn
		if err := hosted.Exchange(r.Context(), code, authState.CodeVerifier, authState.Nonce); err != nil {
			s.log.Warn().Err(err).Msg("authorization code exchange failed")
			redirectWithError(w, r, s.config.GetLoginRoute(), "Sign-in failed")
			return
		}

		returnURL := safeReturnPath(authState.ReturnURL, s.config.GetHomeRoute())
		redirectSuccess(w, r, returnURL)
	}
}
