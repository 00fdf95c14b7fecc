package debug

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/viewstate"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// cachePrefix limits the surface to cache entries; session keys hold
// credentials and are never exposed.
const cachePrefix = "cache_"

type StateReader interface {
	Snapshot() viewstate.Snapshot
}

type Handler struct {
	store *kv.Store
	state StateReader
}

func NewHandler(store *kv.Store, state StateReader) *Handler {
	return &Handler{store: store, state: state}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func sendError(w http.ResponseWriter, r *http.Request, code, msg string, status int) {
	var b errorBody
	b.Error.Code = code
	b.Error.Message = msg
	render.Status(r, status)
	render.JSON(w, r, b)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type cacheEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
	Raw   string          `json:"raw,omitempty"`
}

func cacheKeyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if !strings.HasPrefix(key, cachePrefix) {
		sendError(w, r, "forbidden_key", "only cache_* keys can be inspected", http.StatusForbidden)
		return "", false
	}
	return key, true
}

func (h *Handler) GetCache(w http.ResponseWriter, r *http.Request) {
	key, ok := cacheKeyParam(w, r)
	if !ok {
		return
	}
	v, ok := h.store.Get(r.Context(), key)
	if !ok {
		sendError(w, r, "not_found", "no entry for key", http.StatusNotFound)
		return
	}
	entry := cacheEntry{Key: key}
	if json.Valid([]byte(v)) {
		entry.Value = json.RawMessage(v)
	} else {
		entry.Raw = v
	}
	render.JSON(w, r, entry)
}

func (h *Handler) DeleteCache(w http.ResponseWriter, r *http.Request) {
	key, ok := cacheKeyParam(w, r)
	if !ok {
		return
	}
	h.store.Remove(r.Context(), key)
	logger.Ctx(r.Context()).Info().Str("key", key).Msg("cache entry removed via debug surface")
	w.WriteHeader(http.StatusNoContent)
}

type stateView struct {
	EventCount    int    `json:"eventCount"`
	UserID        string `json:"userId,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Epoch         uint64 `json:"epoch"`
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot()
	v := stateView{
		EventCount:    len(snap.Events),
		Authenticated: snap.Authenticated,
		Epoch:         snap.Epoch,
	}
	if snap.User != nil {
		v.UserID = snap.User.ID
	}
	render.JSON(w, r, v)
}
