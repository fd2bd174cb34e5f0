package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/telecare/signaling/internal/core/service"
)

type Handler struct {
	Relay          *service.Relay
	allowedOrigins map[string]bool
}

func NewHandler(relay *service.Relay, allowedOrigins []string) *Handler {
	h := &Handler{Relay: relay}
	if len(allowedOrigins) > 0 {
		h.allowedOrigins = make(map[string]bool, len(allowedOrigins))
		for _, origin := range allowedOrigins {
			h.allowedOrigins[origin] = true
		}
	}
	return h
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/ws", h.ServeWS)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("signaling server is healthy"))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Relay.Snapshot()); err != nil {
		log.Error().Err(err).Msg("Error encoding stats")
	}
}
