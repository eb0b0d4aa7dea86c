package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gamehub/auth"
	"gamehub/game"
	"gamehub/match"
	"gamehub/store"
	"gamehub/ws"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

type Handlers struct {
	authService  *auth.Service
	orchestrator *match.Orchestrator
	queue        *match.Queue
	hub          *ws.Hub
	store        store.Store
}

func NewHandlers(authService *auth.Service, orchestrator *match.Orchestrator, queue *match.Queue, hub *ws.Hub, store store.Store) *Handlers {
	return &Handlers{
		authService:  authService,
		orchestrator: orchestrator,
		queue:        queue,
		hub:          hub,
		store:        store,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write JSON response: %v", err)
	}
}

// writeMatchError maps orchestrator errors onto status codes. Game rule
// errors are client mistakes, not server failures.
func writeMatchError(w http.ResponseWriter, err error) {
	var gameErr *game.Error
	switch {
	case errors.As(err, &gameErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": gameErr.Msg,
			"kind":  string(gameErr.Kind),
		})
	case errors.Is(err, match.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, match.ErrNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		log.Printf("Match error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Auth handlers
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.authService.Register(req.Username, req.Password); err != nil {
		switch err {
		case auth.ErrInvalidUsername, auth.ErrInvalidPassword, auth.ErrUserExists:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Register error: %v", err)
			http.Error(w, "Registration failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sessionID, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		} else {
			log.Printf("Login error: %v", err)
			http.Error(w, "Login failed", http.StatusInternalServerError)
		}
		return
	}

	h.authService.GetSessionManager().SetSessionCookie(w, sessionID)

	user, err := h.store.GetUserByUsername(auth.SanitizeUsername(req.Username))
	if err != nil || user == nil {
		log.Printf("Login: failed to load user %s: %v", req.Username, err)
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Login successful",
		"userId":   user.ID,
		"username": user.Username,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.GetSessionFromRequest(r)
	if sessionID != "" {
		h.authService.Logout(sessionID)
		h.authService.GetSessionManager().ClearSessionCookie(w)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Match handlers
func (h *Handlers) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Game    string       `json:"game"`
		Players []match.Seat `json:"players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	matchID, agentFirst, err := h.orchestrator.CreateMatch(r.Context(), userID, game.Kind(req.Game), req.Players)
	if err != nil {
		writeMatchError(w, err)
		return
	}

	if agentFirst {
		h.queue.Enqueue(matchID)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"matchId":   matchID,
		"agentTurn": agentFirst,
	})
}

func (h *Handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matchID := mux.Vars(r)["matchId"]
	view, err := h.orchestrator.FetchMatch(r.Context(), userID, matchID)
	if err != nil {
		writeMatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) TakeTurn(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matchID := mux.Vars(r)["matchId"]

	var req struct {
		Action json.RawMessage `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Action) == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	applied, agentNext, err := h.orchestrator.TakeUserTurn(r.Context(), userID, matchID, req.Action)
	if err != nil {
		writeMatchError(w, err)
		return
	}

	if applied && agentNext {
		h.queue.Enqueue(matchID)
	}

	// applied=false is a lost race, not an error: the client refetches.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied": applied,
	})
}

// WebSocket handler
func (h *Handlers) WatchMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matchID := mux.Vars(r)["matchId"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.hub.HandleConnection(conn, matchID, userID)
}
