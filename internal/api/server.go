package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webuild-community/spacebot/internal/config"
	"github.com/webuild-community/spacebot/internal/store"
)

// Server wraps the HTTP router with a listener lifecycle.
//
// IMPORTANT: no network listener opens until Start is called. This keeps
// construction safe for tests that only need Router() with httptest.
type Server struct {
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer builds a Server wired to registry and store, matching the
// RouterConfig dependencies NewRouter expects.
func NewServer(registry Registry, adapter store.Adapter, cfg config.AppConfig, defaultRoomToken string) *Server {
	rateLimiter := NewIPRateLimiter(DefaultRateLimitConfig)

	router := NewRouter(RouterConfig{
		Registry:         registry,
		Store:            adapter,
		Config:           cfg,
		DefaultRoomToken: defaultRoomToken,
		RateLimiter:      rateLimiter,
	})

	return &Server{
		router:      router,
		rateLimiter: rateLimiter,
	}
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving on addr. This is the only method that opens a
// network listener; call it once.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	log.Printf("api: serving on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop performs a graceful shutdown, bounded by ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
