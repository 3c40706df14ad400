package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteLogin         = "/login"
	RouteAuthLogin     = "/auth/login"
	RouteAuthLogout    = "/auth/logout"
	RouteAuthRedirect  = "/auth/redirect"
	RouteCallback      = "/callback"
	RouteSessionSocket = "/ws/session"

	// Session API Routes
	RouteAPISession       = "/api/session"
	RouteAPISessionCheck  = "/api/session/check"
	RouteAPISessionTokens = "/api/session/tokens"

	// Protected API Routes
	RouteAPIMe             = "/api/me"
	RouteAPIInstructorPing = "/api/instructor/ping"

	RouteMetrics = "/metrics"
)
