package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/opencode-ai/mcp-claude-code/internal/config"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
)

// MCP endpoints, relative to the server root.
const (
	SSEEndpoint     = "/sse"
	MessageEndpoint = "/message"
)

// Config holds server configuration.
type Config struct {
	Address string
	// BaseURL is what SSE clients are told to post messages to. Derived
	// from Address when empty.
	BaseURL      string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      config.DefaultAddress,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	name    string
	router  *chi.Mux
	httpSrv *http.Server
	sse     *mcpserver.SSEServer
	tools   *tool.Registry
	gate    *permission.Gate
}

// New creates a new Server instance serving mcp over SSE.
func New(cfg *Config, name string, mcp *mcpserver.MCPServer, tools *tool.Registry, gate *permission.Gate) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://" + cfg.Address
	}

	s := &Server{
		config: cfg,
		name:   name,
		router: chi.NewRouter(),
		sse: mcpserver.NewSSEServer(mcp,
			mcpserver.WithBaseURL(baseURL),
			mcpserver.WithSSEEndpoint(SSEEndpoint),
			mcpserver.WithMessageEndpoint(MessageEndpoint),
			mcpserver.WithKeepAlive(true),
		),
		tools: tools,
		gate:  gate,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Mcp-Session-Id"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// requestLogger logs requests through zerolog instead of chi's logger,
// which writes to stdout.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	logging.Info().Str("address", s.config.Address).Msg("MCP SSE server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.config.Address, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.sse.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("SSE transport shutdown failed")
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
