package storage

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Serve streams a stored blob. Keys are unguessable enough for image
// delivery (owner-scoped path plus millisecond timestamp), so the route
// is unauthenticated like any CDN-style asset path.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !ValidKey(key) {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	blob, err := h.store.Get(r.Context(), key)
	if err != nil {
		slog.Error("loading blob", "key", key, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if blob == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}
