package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrsteele09/go-course-portal/users"
)

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISessionCheck, ChainMiddleware(s.SessionCheckHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISessionTokens, ChainMiddleware(s.SessionTokensHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSessionSocket, ChainMiddleware(s.SessionSocketHandler(), s.BrowserMiddleware()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteAuthRedirect, ChainMiddleware(s.LoginRedirectHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.BrowserMiddleware()...)) // For form_post response mode

	// Protected routes
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIInstructorPing, ChainMiddleware(s.PingHandler(),
		s.APIMiddleware(s.RequireSession(), s.RequireRole(users.RoleInstructor))...))

	// CORS preflight for the JSON API
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {}, s.CorsMiddleware))

	s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(s.metricsHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
}

func (s *Server) metricsHandler() http.HandlerFunc {
	h := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	return h.ServeHTTP
}
