// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	Fixture(ctx context.Context, entityID string) (types.Fixture, error)
	RecentAlerts(limit int) []model.Alert
	RunCycle(ctx context.Context) (types.CycleReport, error)
	GetStats(ctx context.Context) types.Stats
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

const (
	defaultMaxLimit     = 100
	defaultLeaderboardN = 10
	defaultAlertsN      = 50
)

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit query parameter of /leaderboard and /alerts.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithWebsocket mounts h at GET /ws.
func WithWebsocket(h http.HandlerFunc) Option {
	return func(s *Server) {
		s.ws = h
	}
}

// WithAllowedOrigins restricts CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	maxLimit int
	ws       http.HandlerFunc
	origins  []string

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	fixtureHandler     *FixtureHandler
	alertsHandler      *AlertsHandler
	scanHandler        *ScanHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLimit: defaultMaxLimit,
		origins:  []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.fixtureHandler = NewFixtureHandler(deps)
	s.alertsHandler = NewAlertsHandler(deps, s.maxLimit)
	s.scanHandler = NewScanHandler(deps)
	return s
}

// Router builds the chi router with middleware and every API route.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	r.Get("/fixtures/{id}", MetricsMiddleware(s.fixtureHandler.HandleGetFixture, "fixtures"))
	r.Get("/alerts", MetricsMiddleware(s.alertsHandler.HandleGetAlerts, "alerts"))
	r.Post("/scan", MetricsMiddleware(s.scanHandler.HandleScan, "scan"))
	if s.ws != nil {
		r.Get("/ws", s.ws)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
