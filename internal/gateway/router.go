package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"snapsolve/internal/artifact"
	"snapsolve/internal/pipeline"
)

// NewRouter wires the websocket bridge and the read-only endpoints:
//
//	GET /healthz
//	GET /ws                              command/result channel
//	GET /session                         current session snapshot
//	GET /sessions/{id}/artifacts         audit listing
//	GET /sessions/{id}/artifacts/*       one audit blob
//
// store may be nil, in which case the artifact endpoints answer 404.
func NewRouter(bridge *Bridge, orch Orchestrator, store artifact.Store, logger *log.Logger) *chi.Mux {
	if logger == nil {
		logger = log.Default()
	}
	h := &handlers{orch: orch, store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/ws", bridge.ServeWS)
	r.Get("/session", h.currentSession)
	r.Route("/sessions/{id}/artifacts", func(r chi.Router) {
		r.Get("/", h.listArtifacts)
		r.Get("/*", h.getArtifact)
	})
	return r
}

type handlers struct {
	orch   Orchestrator
	store  artifact.Store
	logger *log.Logger
}

func (h *handlers) currentSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.Snapshot("")
	if err != nil {
		writeJSON(w, http.StatusNotFound, pipeline.Describe(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) listArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "artifact store disabled", http.StatusNotFound)
		return
	}
	id := chi.URLParam(r, "id")
	paths, err := h.store.List(r.Context(), id)
	if err != nil {
		h.logger.Printf("gateway: list artifacts %s: %v", id, err)
		http.Error(w, "failed to list artifacts", http.StatusInternalServerError)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "paths": paths})
}

func (h *handlers) getArtifact(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "artifact store disabled", http.StatusNotFound)
		return
	}
	id := chi.URLParam(r, "id")
	path := strings.TrimSpace(chi.URLParam(r, "*"))
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	if url, err := h.store.GetURL(r.Context(), id, path); err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	b, err := h.store.Get(r.Context(), id, path)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Printf("gateway: get artifact %s/%s: %v", id, path, err)
		http.Error(w, "failed to read artifact", http.StatusInternalServerError)
		return
	}
	if strings.HasSuffix(path, ".json") {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", http.DetectContentType(b))
	}
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
