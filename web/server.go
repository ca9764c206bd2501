// Package web provides a unified HTTP server for the REST API and browser UI.
package web

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"adslink/api"
	"adslink/bridge"
	"adslink/config"
	"adslink/kafka"
	"adslink/logging"
	"adslink/mqtt"
	"adslink/valkey"
	"adslink/www"
)

// Managers exposes the runtime managers to the API and UI routers.
type Managers interface {
	GetConfig() *config.Config
	GetConfigPath() string
	GetBridge() *bridge.Manager
	GetMQTTMgr() *mqtt.Manager
	GetValkeyMgr() *valkey.Manager
	GetKafkaMgr() *kafka.Manager
}

// Server is the unified HTTP server for REST API and browser UI.
type Server struct {
	config   *config.WebConfig
	managers Managers
	server   *http.Server
	router   chi.Router
	running  bool
	mu       sync.RWMutex

	// UI SSE hub and its cleanup, nil when the UI is disabled
	eventHub  *www.EventHub
	uiCleanup func()
}

// NewServer creates a new unified web server.
func NewServer(cfg *config.WebConfig, managers Managers) *Server {
	s := &Server{
		config:   cfg,
		managers: managers,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the chi router with all routes.
func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	// CORS for API
	r.Use(corsMiddleware)

	// Mount REST API at /api
	if s.config.API.Enabled {
		r.Mount("/api", api.NewRouter(s.managers))
	}

	// Mount Web UI at root
	if s.config.UI.Enabled {
		uiRouter, hub, cleanup := www.NewRouter(&s.config.UI, s.managers)
		s.eventHub = hub
		s.uiCleanup = cleanup
		r.Mount("/", uiRouter)
	}

	s.router = r
}

// BroadcastValues forwards symbol changes to connected UI clients.
func (s *Server) BroadcastValues(changes []bridge.ValueChange) {
	s.mu.RLock()
	hub := s.eventHub
	s.mu.RUnlock()
	if hub != nil {
		hub.BroadcastValues(changes)
	}
}

// BroadcastStatus forwards current target statuses to connected UI clients.
func (s *Server) BroadcastStatus() {
	s.mu.RLock()
	hub := s.eventHub
	s.mu.RUnlock()
	if hub != nil {
		hub.BroadcastStatus(s.managers.GetBridge())
	}
}

// debugLogWriter adapts logging.DebugLog to an io.Writer for use with log.Logger.
type debugLogWriter string

func (tag debugLogWriter) Write(p []byte) (n int, err error) {
	logging.DebugLog(string(tag), "%s", string(p))
	return len(p), nil
}

// Verify debugLogWriter implements io.Writer.
var _ io.Writer = debugLogWriter("")

// corsMiddleware adds CORS headers for API access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start begins the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(debugLogWriter("www"), "", 0),
	}

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	s.running = true
	return nil
}

// Stop halts the HTTP server gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	// Stop UI SSE event hub
	if s.uiCleanup != nil {
		s.uiCleanup()
		s.uiCleanup = nil
		s.eventHub = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	return err
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the server address.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// Reload reconfigures routes with updated config.
// Call this after config changes that affect enabled state.
func (s *Server) Reload(cfg *config.WebConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up the old SSE hub before rebuilding routes
	if s.uiCleanup != nil {
		s.uiCleanup()
		s.uiCleanup = nil
		s.eventHub = nil
	}

	s.config = cfg
	s.setupRoutes()
	if s.server != nil {
		s.server.Handler = s.router
	}
}
