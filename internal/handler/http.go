package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/service"
	"github.com/game-leaderboard/internal/store"
	"github.com/game-leaderboard/internal/websocket"
	"github.com/game-leaderboard/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the components the HTTP API serves
type Dependencies struct {
	Submissions *service.SubmissionService
	Rankings    *service.RankingService
	Players     *service.PlayerStatsService
	Stats       *worker.StatsJob
	Store       store.RecordStore
	Hub         *websocket.Hub
	// Metrics serves the Prometheus exposition, nil disables /metrics
	Metrics http.Handler

	RequestTimeout time.Duration
	StatsTimeout   time.Duration
}

// Handler provides HTTP handlers for the leaderboard API
type Handler struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies, logger *slog.Logger) *Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 5 * time.Second
	}
	if deps.StatsTimeout <= 0 {
		deps.StatsTimeout = 5 * time.Minute
	}
	return &Handler{deps: deps, logger: logger}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.deps.Metrics != nil {
		r.Handle("/metrics", h.deps.Metrics)
	}
	if h.deps.Hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(h.deps.RequestTimeout))

			r.Post("/scores", h.SubmitScore)
			r.Get("/rankings", h.GetRankings)
			r.Get("/games/{gameID}/rankings", h.GetRankings)
			r.Get("/players/stats", h.GetPlayerStats)
			r.Get("/players/{playerID}/stats", h.GetPlayerStats)
			r.Get("/ws/stats", h.GetWebSocketStats)
		})

		// A full scan outlives the per-request deadline
		r.With(middleware.Timeout(h.deps.StatsTimeout)).Post("/stats/compute", h.ComputeStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
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
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps err to a status and the error envelope. storeMsg is the
// caller-facing message used when the store failed.
func (h *Handler) writeError(w http.ResponseWriter, err error, storeMsg string) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		var ve *domain.ValidationError
		errors.As(err, &ve)
		h.writeJSON(w, http.StatusBadRequest, domain.APIResponse{Message: ve.Message})
	case domain.KindNotFound:
		h.writeJSON(w, http.StatusNotFound, domain.APIResponse{Message: domain.MsgPlayerNotFound})
	default:
		detail := err.Error()
		var se *domain.StoreError
		if errors.As(err, &se) && se.Err != nil {
			detail = se.Err.Error()
		}
		h.writeJSON(w, http.StatusInternalServerError, domain.APIResponse{
			Message: storeMsg,
			Error:   detail,
		})
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.deps.Hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	total := 0
	if h.deps.Hub != nil {
		total = h.deps.Hub.TotalConnections()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"total_connections": total,
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "healthy"})
}

// ReadyCheck reports ready once the store answers a ping
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deps.RequestTimeout)
	defer cancel()

	if err := h.deps.Store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, domain.APIResponse{Message: "store unavailable", Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "ready"})
}

// SubmitScore handles score submission
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeJSON(w, http.StatusBadRequest, domain.APIResponse{Message: domain.MsgInvalidJSONBody, Error: err.Error()})
		return
	}

	req, err := submission.ToRequest()
	if err != nil {
		h.writeError(w, err, domain.MsgStoreFailure)
		return
	}

	result, err := h.deps.Submissions.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err, domain.MsgStoreFailure)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.NewSubmitResponse(result))
}

// GetRankings returns the top entries of a game, from the path or the gameId query
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		gameID = r.URL.Query().Get("gameId")
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.deps.Rankings.Rankings(r.Context(), gameID, limit)
	if err != nil {
		h.writeError(w, err, domain.MsgRankingsFailure)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetPlayerStats returns a player's profile, from the path or the playerId query
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		playerID = r.URL.Query().Get("playerId")
	}

	resp, err := h.deps.Players.Stats(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err, domain.MsgPlayerStatsFailed)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ComputeStats runs the global stats job on demand
func (h *Handler) ComputeStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Stats.Run(r.Context())
	if err != nil {
		h.writeError(w, err, domain.MsgBatchFailed)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.NewBatchStatsResponse(result))
}
