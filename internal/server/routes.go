package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	r := s.router

	// MCP transport
	r.Handle(SSEEndpoint, s.sse.SSEHandler())
	r.Handle(MessageEndpoint, s.sse.MessageHandler())

	r.Get("/health", s.health)
	r.Get("/tools", s.listTools)

	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", s.getPermissions)
		r.Post("/approve", s.approveOperation)
	})

	// Event streaming (SSE)
	r.Get("/events", s.allEvents)
}
