// Package api exposes the HTTP surface described in spec.md §6: room
// creation/listing, scoreboard retrieval, WebSocket upgrade for players and
// spectators, an admin reset, and Prometheus metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webuild-community/spacebot/internal/config"
	"github.com/webuild-community/spacebot/internal/room"
	"github.com/webuild-community/spacebot/internal/store"
)

// Registry is the subset of *room.Registry the API layer needs, kept as an
// interface so tests can exercise routes without a live GameLoop.
type Registry interface {
	CreateRoom(name string, maxPlayers, timeLimitSeconds uint32) (room.RoomCreated, error)
	JoinRoom(token string) (*room.Room, bool)
	ListRooms() []room.Summary
}

// RouterConfig contains every dependency needed to construct the HTTP
// router. Designed for dependency injection, same as the teacher's
// RouterConfig: safe to pass to httptest.NewServer with fakes.
type RouterConfig struct {
	// Registry creates and looks up rooms (required).
	Registry Registry

	// Store backs scoreboard reads (required; use store.NoopAdapter{} if
	// persistence is disabled).
	Store store.Adapter

	// Config gates API-key enforcement and dev-mode bypass.
	Config config.AppConfig

	// DefaultRoomToken is the room the bare GET /reset endpoint resets.
	DefaultRoomToken string

	// RateLimiter is an optional pre-configured per-IP limiter. If nil, one
	// is built from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig configures RateLimiter when it is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default allowed origins.
	CORSOrigins []string

	// DisableLogging turns off the request logger middleware, useful for
	// benchmarks and quiet test output.
	DisableLogging bool

	// Upgrader is the WebSocket upgrader used by /socket and /spectate. If
	// nil, a permissive default is constructed.
	Upgrader *websocket.Upgrader
}

type routerHandlers struct {
	registry  Registry
	store     store.Adapter
	cfg       config.AppConfig
	defaultRM string
	upgrader  *websocket.Upgrader
	wsLimiter *WebSocketRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes. It is
// pure: no goroutines, no listeners, safe for httptest.NewServer.
func NewRouter(rc RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !rc.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := rc.RateLimiter
	if rateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if rc.RateLimitConfig != nil {
			rlCfg = *rc.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := rc.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = AllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	upgrader := rc.Upgrader
	if upgrader == nil {
		upgrader = &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(req *http.Request) bool {
				origin := req.Header.Get("Origin")
				return origin == "" || IsAllowedOrigin(origin)
			},
		}
	}

	maxWSPerIP := rc.Config.MaxWSConnectionsPerIP
	if maxWSPerIP <= 0 {
		maxWSPerIP = DefaultMaxWSConnectionsPerIP
	}

	h := &routerHandlers{
		registry:  rc.Registry,
		store:     rc.Store,
		cfg:       rc.Config,
		defaultRM: rc.DefaultRoomToken,
		upgrader:  upgrader,
		wsLimiter: NewWebSocketRateLimiter(maxWSPerIP),
	}

	r.Get("/socket", h.handleSocket)
	r.Get("/spectate", h.handleSpectate)

	r.Post("/rooms", h.handleCreateRoom)
	r.Get("/rooms", h.handleListRooms)
	r.Get("/rooms/{token}/scoreboard", h.handleScoreboard)

	r.Get("/reset", h.handleReset)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
