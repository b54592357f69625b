// Package handlers provides the JSON API for the web interface.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/council/internal/config"
	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/debate"
	"github.com/alienxp03/council/internal/provider"
	"github.com/alienxp03/council/internal/storage"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	storage  storage.Storage
	registry *provider.Registry
	cfg      *config.Config
}

// New creates a new Handler.
func New(store storage.Storage, registry *provider.Registry, cfg *config.Config) *Handler {
	return &Handler{
		storage:  store,
		registry: registry,
		cfg:      cfg,
	}
}

// Router builds the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", h.listSessions)
		r.Post("/sessions", h.createSession)
		r.Get("/sessions/{id}", h.getSession)
		r.Delete("/sessions/{id}", h.deleteSession)
		r.Get("/providers", h.listProviders)
	})

	return r
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	summaries, err := h.storage.ListSessions(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to list sessions: %w", err))
		return
	}
	if summaries == nil {
		summaries = []*core.SessionSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.storage.GetSession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("session not found: %s", id))
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type createSessionRequest struct {
	Question string `json:"question"`
}

// createSession runs a full debate synchronously and returns the
// finished record. Long questions against real providers can take a
// while; the request context carries the overall budget.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	members, err := h.cfg.Members()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	moderator, err := h.cfg.ModeratorMember()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	orch, err := debate.New(h.registry, members, moderator, h.cfg.Request.Timeout())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	start := time.Now()
	rec, runErr := orch.RunDebate(r.Context(), req.Question)
	if rec == nil {
		writeError(w, http.StatusInternalServerError, runErr)
		return
	}

	if err := h.storage.SaveSession(rec); err != nil {
		slog.Error("Failed to save session", "session", rec.ID, "error", err)
	}

	slog.Info("Session finished", "session", rec.ID, "phase", rec.Phase, "duration", time.Since(start))

	status := http.StatusCreated
	if rec.Phase == core.PhaseFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, rec)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.storage.GetSession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("session not found: %s", id))
		return
	}

	if err := h.storage.DeleteSession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	sort.Strings(names)

	type providerInfo struct {
		Name      string `json:"name"`
		CanList   bool   `json:"can_list_models"`
		OnCouncil bool   `json:"on_council"`
	}

	council := make(map[string]bool)
	for _, name := range h.cfg.Council.Members {
		if pcfg, ok := h.cfg.Providers[name]; ok {
			if pcfg.Kind != "" {
				council[pcfg.Kind] = true
			} else {
				council[name] = true
			}
		}
	}

	infos := make([]providerInfo, 0, len(names))
	for _, name := range names {
		p, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		_, canList := p.(provider.ModelLister)
		infos = append(infos, providerInfo{
			Name:      name,
			CanList:   canList,
			OnCouncil: council[name],
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"providers": infos})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
