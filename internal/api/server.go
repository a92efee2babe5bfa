package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig wires a Server
type ServerConfig struct {
	Engine      EngineInterface
	Input       IntentSubmitter
	Store       StoreInterface
	Renderer    FrameRenderer
	CORSOrigins []string
	MaxClients  int
	AdminToken  string
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		engine:      cfg.Engine,
		wsHub:       NewWebSocketHub(cfg.Input, cfg.MaxClients),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      cfg.Engine,
		Input:       cfg.Input,
		Store:       cfg.Store,
		Renderer:    cfg.Renderer,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		AdminToken:  cfg.AdminToken,
	})

	// WebSocket routes need the wsHub instance
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Hub exposes the WebSocket hub so events can be fanned out to it
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start runs background workers and serves HTTP until Shutdown.
// Returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, StateBroadcastInterval)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🐍 State: http://localhost%s/api/state", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes WebSockets and stops the limiter
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
