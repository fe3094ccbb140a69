// Package api exposes the roster over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"clanchecker/service/internal/cache"
	"clanchecker/service/internal/query"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// LivenessMessage is the body of GET /
const LivenessMessage = "✅ COC Clan Checker API is running."

// PlayerQuerier answers filtered roster queries
type PlayerQuerier interface {
	Players(ctx context.Context, f query.Filter) query.Result
}

// SnapshotLoader reads the current snapshot without refreshing it
type SnapshotLoader interface {
	Load() *cache.Snapshot
}

// Handlers serves the roster endpoints
type Handlers struct {
	players PlayerQuerier
	store   SnapshotLoader
}

// New creates the handlers
func New(players PlayerQuerier, store SnapshotLoader) *Handlers {
	return &Handlers{
		players: players,
		store:   store,
	}
}

// NewRouter wires the routes and middleware
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)

	router.HandleFunc("/", h.Root).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/players", h.Players).Methods(http.MethodGet)

	return router
}

// Root is the liveness probe
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(LivenessMessage))
}

// Players returns the roster filtered by assignedClanTag, userId, playerTag
// and status. It always answers 200; no matches yields a "Not Found" message.
func (h *Handlers) Players(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.Filter{
		AssignedClanTag: q.Get("assignedClanTag"),
		DiscordUserID:   q.Get("userId"),
		PlayerTag:       q.Get("playerTag"),
		Status:          q.Get("status"),
	}

	writeJSON(w, http.StatusOK, h.players.Players(r.Context(), filter))
}

type healthResponse struct {
	Status      string     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Count       int        `json:"count"`
}

// Health reports the age and size of the cached roster
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Load()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		LastUpdated: snap.LastUpdated,
		Count:       len(snap.Data),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
