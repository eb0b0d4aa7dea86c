package http

import (
	"net/http"
	"time"

	"gamehub/auth"
	"gamehub/config"
	"gamehub/match"
	"gamehub/store"
	"gamehub/ws"

	"github.com/gorilla/mux"
)

type Server struct {
	router   *mux.Router
	handlers *Handlers
}

func NewServer(cfg *config.Config, authService *auth.Service, orchestrator *match.Orchestrator, queue *match.Queue, hub *ws.Hub, store store.Store) *Server {
	router := mux.NewRouter()
	handlers := NewHandlers(authService, orchestrator, queue, hub, store)

	server := &Server{
		router:   router,
		handlers: handlers,
	}

	server.setupRoutes(cfg, authService)
	return server
}

func (s *Server) setupRoutes(cfg *config.Config, authService *auth.Service) {
	s.router.Use(LoggingMiddleware)
	s.router.Use(SecurityHeadersMiddleware)

	// CSRF note: SameSite=Lax on the session cookie prevents cross-site POST
	// requests from including the cookie, providing CSRF protection for all
	// state-changing endpoints without needing a token-based scheme.

	registerLimiter := NewRateLimiter(cfg.RegisterPerMinute, cfg.RateLimitIdle)
	loginLimiter := NewRateLimiter(cfg.LoginPerMinute, cfg.RateLimitIdle)
	turnLimiter := NewRateLimiter(cfg.TurnsPerMinute, cfg.RateLimitIdle)

	s.router.Handle("/api/auth/register", registerLimiter.Middleware(http.HandlerFunc(s.handlers.Register))).Methods("POST")
	s.router.Handle("/api/auth/login", loginLimiter.Middleware(http.HandlerFunc(s.handlers.Login))).Methods("POST")

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(authService))

	protected.HandleFunc("/auth/logout", s.handlers.Logout).Methods("POST")
	protected.HandleFunc("/matches", s.handlers.CreateMatch).Methods("POST")
	protected.HandleFunc("/matches/{matchId}", s.handlers.GetMatch).Methods("GET")
	protected.Handle("/matches/{matchId}/turns", turnLimiter.Middleware(http.HandlerFunc(s.handlers.TakeTurn))).Methods("POST")

	wsRouter := s.router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(AuthMiddleware(authService))
	wsRouter.HandleFunc("/matches/{matchId}", s.handlers.WatchMatch)

	// JSON 404 for anything else under /api
	s.router.PathPrefix("/api/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
