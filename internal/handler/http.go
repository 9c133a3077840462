package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skysquad-server/internal/auth"
	"github.com/skysquad-server/internal/catalog"
	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
	"github.com/skysquad-server/internal/game"
	"github.com/skysquad-server/internal/postgres"
	"github.com/skysquad-server/internal/progression"
	"github.com/skysquad-server/internal/ws"
)

// Result sizes for list endpoints.
const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// StarLeaderboard serves ranked star collectors.
type StarLeaderboard interface {
	TopCollectors(ctx context.Context, n int) ([]domain.StarLeaderboardEntry, error)
}

// Handler provides HTTP handlers for the game API
type Handler struct {
	game        *game.Service
	progression *progression.Engine
	scores      StarLeaderboard
	users       *postgres.Repository
	hub         *ws.Hub
	tokens      *auth.TokenService
	cfg         *config.Config
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	svc *game.Service,
	engine *progression.Engine,
	scores StarLeaderboard,
	users *postgres.Repository,
	hub *ws.Hub,
	tokens *auth.TokenService,
	cfg *config.Config,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		game:        svc,
		progression: engine,
		scores:      scores,
		users:       users,
		hub:         hub,
		tokens:      tokens,
		cfg:         cfg,
		logger:      logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/register", h.Register)

		r.Get("/stats", h.GetStats)
		r.Get("/achievements", h.ListAchievements)
		r.Get("/challenges", h.ListChallenges)
		r.Get("/leaderboard", h.GetLeaderboard)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.ServeWs(h.hub, h.game, h.tokens, &h.cfg.Auth, &h.cfg.Game, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.TotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// RegisterRequest is the body for player registration
type RegisterRequest struct {
	Username string `json:"username"`
}

// Register creates (or resumes) a named player account and issues a
// session token for the WebSocket handshake.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if req.Username == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrUsernameRequired)
		return
	}

	user := h.progression.GetOrCreateByUsername(r.Context(), req.Username)

	token, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"user_id":    user.ID,
			"username":   user.Username,
			"token":      token,
			"level":      user.Level,
			"experience": user.Experience,
		},
	})
}

// GetStats returns global game statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.game.Snapshot()

	stats := map[string]interface{}{
		"score":          snap.Score,
		"players_online": len(snap.Players),
		"active_stars":   len(snap.Stars),
	}

	if users, err := h.users.UserCount(r.Context()); err == nil {
		stats["registered_users"] = users
	} else {
		h.logger.Warn("failed to count users", "error", err)
	}

	h.writeSuccess(w, stats)
}

// ListAchievements returns the achievement catalog
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, catalog.Achievements())
}

// ListChallenges returns the currently active challenge set
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Challenges())
}

// GetLeaderboard returns the top star collectors
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	entries, err := h.scores.TopCollectors(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}
