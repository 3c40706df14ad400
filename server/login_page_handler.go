package server

import (
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/server/authflowrepo"
	"github.com/jrsteele09/go-course-portal/session"
)

// LoginFormContract tells the front end how to render the password login form.
type LoginFormContract struct {
	Action   string   `json:"action"`
	Method   string   `json:"method"`
	Fields   []string `json:"fields"`
	ReturnTo string   `json:"returnTo"`
	Error    string   `json:"error,omitempty"`
	Username string   `json:"username,omitempty"` // Preserve username on error
}

// LoginRedirectHandler sends the browser to the login route, remembering
// where it should come back to (GET /auth/redirect).
func (s *Server) LoginRedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnTo := safeReturnPath(r.URL.Query().Get(session.ReturnToParam), "")
		target := clientFrom(r).Manager.LoginRedirect(returnTo)
		redirectSuccess(w, r, target)
	}
}

// LoginPageHandler starts a hosted login, or describes the password form
// when the provider takes credentials directly (GET /login).
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientFrom(r)
		returnTo := safeReturnPath(r.URL.Query().Get(session.ReturnToParam), s.config.GetHomeRoute())

		switch provider := client.Provider.(type) {
		case identity.HostedLogin:
			state := generateRandomString(32)
			nonce := generateRandomString(32)
			verifier := oauth2.GenerateVerifier()

			err := s.authFlows.Upsert(state, &authflowrepo.AuthFlowState{
				ClientID:     client.ID,
				CodeVerifier: verifier,
				Nonce:        nonce,
				ReturnURL:    returnTo,
				CreatedAt:    s.nowTime(),
			})
			if err != nil {
				s.log.Error().Err(err).Msg("failed to store auth flow state")
				writeError(w, http.StatusInternalServerError, "internal_error", "Failed to start login")
				return
			}
			http.Redirect(w, r, provider.AuthCodeURL(state, nonce, verifier), http.StatusSeeOther)

		case identity.PasswordAuthenticator:
			writeJSON(w, http.StatusOK, LoginFormContract{
				Action:   RouteAuthLogin,
				Method:   http.MethodPost,
				Fields:   []string{"username", "password", session.ReturnToParam},
				ReturnTo: returnTo,
				Error:    r.URL.Query().Get("error"),
				Username: r.URL.Query().Get("username"),
			})

		default:
			writeError(w, http.StatusNotImplemented, "unsupported", "Identity provider has no login flow")
		}
	}
}

// LoginSubmissionHandler processes the password login form (POST /auth/login).
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientFrom(r)
		authenticator, ok := client.Provider.(identity.PasswordAuthenticator)
		if !ok {
			writeError(w, http.StatusNotFound, "unsupported", "Password login is not available")
			return
		}

		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
			return
		}
		username := r.FormValue("username")
		password := r.FormValue("password")
		returnTo := safeReturnPath(r.FormValue(session.ReturnToParam), s.config.GetHomeRoute())

		if username == "" || password == "" {
			s.renderLoginError(w, r, "Username and password are required", username, returnTo)
			return
		}

		// A successful sign-in publishes signedIn, which refreshes the session cache
		if err := authenticator.SignIn(r.Context(), username, password); err != nil {
			s.log.Debug().Err(err).Str("username", username).Msg("password sign-in failed")
			s.renderLoginError(w, r, "Invalid username or password", username, returnTo)
			return
		}

		redirectSuccess(w, r, returnTo)
	}
}

// LogoutHandler signs the browser session out (POST /auth/logout?global=true).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		global, _ := strconv.ParseBool(r.URL.Query().Get("global"))
		target := clientFrom(r).Manager.Logout(r.Context(), global)
		redirectSuccess(w, r, target)
	}
}

// renderLoginError redirects to login page with an error message
func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, errorMsg, username, returnTo string) {
	q := url.Values{}
	q.Set("error", errorMsg)
	if username != "" {
		q.Set("username", username)
	}
	q.Set(session.ReturnToParam, returnTo)

	redirectSuccess(w, r, s.config.GetLoginRoute()+"?"+q.Encode())
}
