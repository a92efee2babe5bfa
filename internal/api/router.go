package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"snake-arena/internal/config"
	"snake-arena/internal/game"
	"snake-arena/internal/input"
	"snake-arena/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the game engine methods used by the API.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Snapshot returns a copy of the latest published state
	Snapshot() game.Snapshot
	// Config returns the active game configuration
	Config() config.GameConfig
	// Stats returns engine counters
	Stats() game.EngineStats
}

// IntentSubmitter queues player input. Implemented by input.Handler.
type IntentSubmitter interface {
	Submit(source, name, mode string) (input.Intent, error)
}

// StoreInterface defines the persistence methods used by the API.
type StoreInterface interface {
	HighScores(mode game.Mode, limit int) []store.HighScoreEntry
	Stats() store.Stats
	Achievements() []store.AchievementStatus
	RecentGames(ctx context.Context, limit int) ([]store.GameRecord, error)
	Export() store.ExportData
	Import(ctx context.Context, data store.ExportData) error
}

// FrameRenderer draws a snapshot as an image. Implemented by render.FrameRenderer.
type FrameRenderer interface {
	WritePNG(w io.Writer, snap game.Snapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    Input:  mockInput,
//	    Store:  mockStore,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Input receives intents from POST /api/input (required)
	Input IntentSubmitter

	// Store serves scores, stats and achievements (required)
	Store StoreInterface

	// Renderer serves /api/frame.png. If nil the route answers 503.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// AdminToken guards POST /api/import. Empty leaves it open.
	AdminToken string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	input    IntentSubmitter
	store    StoreInterface
	renderer FrameRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// The router is pure apart from the rate limiter's cleanup goroutine:
// no listeners are opened and no game workers are started, so it is safe
// to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", AdminTokenHeader},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		input:    cfg.Input,
		store:    cfg.Store,
		renderer: cfg.Renderer,
	}

	r.Route("/api", func(r chi.Router) {
		// Game
		r.Get("/state", h.handleGetState)
		r.Get("/config", h.handleGetConfig)
		r.Get("/engine", h.handleGetEngine)
		r.Get("/frame.png", h.handleGetFrame)
		r.With(middleware.AllowContentType("application/json")).Post("/input", h.handlePostInput)

		// Persistence
		r.Get("/highscores", h.handleGetHighScores)
		r.Get("/stats", h.handleGetStats)
		r.Get("/achievements", h.handleGetAchievements)
		r.Get("/games", h.handleGetGames)
		r.Get("/export", h.handleExport)
		admin := NewAdminGuard(cfg.AdminToken)
		r.With(admin.Middleware, middleware.AllowContentType("application/json")).Post("/import", h.handleImport)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency by route pattern, never by raw URL
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
