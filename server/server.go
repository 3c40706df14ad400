package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-course-portal/internal/config"
	"github.com/jrsteele09/go-course-portal/server/authflowrepo"
)

// authFlowTTL bounds how long a hosted login may take between /login and /callback
const authFlowTTL = 10 * time.Minute

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	clients   *ClientRegistry
	authFlows authflowrepo.Repo
	gatherer  prometheus.Gatherer
	upgrader  websocket.Upgrader
	log       zerolog.Logger
	nowTime   func() time.Time
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithGatherer exposes gatherer on the metrics route
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, clients *ClientRegistry, authFlows authflowrepo.Repo, options ...Option) (*Server, error) {
	if clients == nil {
		return nil, errors.New("[Server New] client registry is required")
	}
	if authFlows == nil {
		authFlows = authflowrepo.NewInMemoryRepo()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		clients:   clients,
		authFlows: authFlows,
		gatherer:  prometheus.DefaultGatherer,
		log:       log.Logger,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.env = config.GetEnv()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Sweep evicts idle browser sessions and abandoned login flows.
func (s *Server) Sweep(now time.Time) {
	evicted := s.clients.Sweep(now)
	flows := s.authFlows.Sweep(now.Add(-authFlowTTL))
	if evicted > 0 || flows > 0 {
		s.log.Debug().Int("clients", evicted).Int("authFlows", flows).Msg("swept idle state")
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

// checkOrigin accepts same-origin websocket upgrades and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host {
		return true
	}
	return s.config.GetAllowedOrigins().IsAllowedOrigin(origin)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func displayDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
}
