// Package operatorhttp exposes the engine's C8 config/status API over HTTP:
// status, rankings, champions, pruning history, manual prune, config
// replace, and a live websocket event stream, behind bearer-token auth and
// per-token rate limiting.
package operatorhttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/99souls/atrwac/engine"
	"github.com/99souls/atrwac/engine/adapters/telemetryhttp"
)

// Options configures the operator HTTP surface.
type Options struct {
	Engine *engine.Engine

	// JWTSecret validates bearer tokens on every /api/v1 route except
	// healthz and readyz. A nil/empty secret disables auth entirely (used in local/dev
	// and in tests) — callers deploying over a public network must set one.
	JWTSecret []byte

	// RateLimitPerSecond and RateLimitBurst bound the rate each bearer
	// token subject may call the API; if auth is disabled, every request
	// shares the single "anonymous" limiter. Zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int

	Logger *slog.Logger
}

// Server is the operator-facing HTTP surface over one Engine.
type Server struct {
	eng     *engine.Engine
	secret  []byte
	log     *slog.Logger
	limiter *tokenLimiter
	hub     *eventHub
}

// NewServer builds the chi router for the operator API. Call Close when
// done to stop the event hub's background fan-out.
func NewServer(opts Options) (*Server, http.Handler) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		eng:    opts.Engine,
		secret: opts.JWTSecret,
		log:    opts.Logger,
		hub:    newEventHub(opts.Engine),
	}
	if opts.RateLimitPerSecond > 0 {
		s.limiter = newTokenLimiter(rate.Limit(opts.RateLimitPerSecond), opts.RateLimitBurst)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	healthOpts := telemetryhttp.HealthHandlerOptions{Engine: opts.Engine, IncludeProbes: true}
	r.Get("/api/v1/healthz", telemetryhttp.NewHealthHandler(healthOpts).ServeHTTP)
	r.Get("/api/v1/readyz", telemetryhttp.NewReadinessHandler(healthOpts).ServeHTTP)
	r.Get("/metrics", telemetryhttp.NewMetricsHandler(opts.Engine.MetricsProvider()).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		if s.limiter != nil {
			r.Use(s.rateLimitMiddleware)
		}
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/config", s.handleGetConfig)
		r.Put("/api/v1/config", s.handlePutConfig)
		r.Post("/api/v1/start", s.handleStart)
		r.Post("/api/v1/stop", s.handleStop)
		r.Get("/api/v1/rankings", s.handleRankings)
		r.Get("/api/v1/champions", s.handleChampions)
		r.Get("/api/v1/pruning-history", s.handlePruningHistory)
		r.Get("/api/v1/targets", s.handleTargets)
		r.Get("/api/v1/resources", s.handleResources)
		r.Post("/api/v1/force-evaluation", s.handleForceEvaluation)
		r.Post("/api/v1/agents/{agentID}/prune", s.handleManualPrune)
		r.Get("/api/v1/stream", s.handleStream)
	})

	return s, r
}

// Close stops the server's background event hub.
func (s *Server) Close() { s.hub.close() }
