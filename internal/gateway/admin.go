package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/modules/ext/moderation"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

const pendingLimit = 100

// extensionJSON describes one extension for /api/extensions.
type extensionJSON struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// extensionsJSON is the /api/extensions body: what runs, in load order,
// and what could be enabled.
type extensionsJSON struct {
	Loaded    []extensionJSON `json:"loaded"`
	Available []extensionJSON `json:"available"`
}

// handleListExtensions lists the loaded set and the rest of the catalog.
func (g *Gateway) handleListExtensions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		set := g.pipeline.Dispatcher.Set()
		out := extensionsJSON{Loaded: []extensionJSON{}, Available: []extensionJSON{}}
		for _, e := range set.Extensions() {
			caps := make([]string, len(e.Kinds))
			for i, k := range e.Kinds {
				caps[i] = string(k)
			}
			out.Loaded = append(out.Loaded, extensionJSON{Name: e.Name, Description: e.Description, Capabilities: caps})
		}
		for _, info := range set.Available() {
			caps := info.Capabilities
			if caps == nil {
				caps = []string{}
			}
			out.Available = append(out.Available, extensionJSON{Name: info.ID.Name(), Description: info.Description, Capabilities: caps})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *Gateway) moderator(w http.ResponseWriter) (*moderation.Extension, bool) {
	mod, err := core.ServiceAs[*moderation.Extension](g.appCtx, moderation.ServiceName)
	if err != nil {
		http.Error(w, "moderation is not enabled", http.StatusNotFound)
		return nil, false
	}
	return mod, true
}

// handlePending lists comments awaiting moderation, oldest first.
func (g *Gateway) handlePending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := g.moderator(w)
		if !ok {
			return
		}
		pending, err := mod.Pending(r.Context(), pendingLimit)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		docs := make([]comment.Document, 0, len(pending))
		for _, c := range pending {
			doc, err := g.pipeline.Serialize(r.Context(), c)
			if err != nil {
				g.writeError(w, r, err)
				return
			}
			docs = append(docs, doc)
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

// handleModerate approves or rejects one pending comment.
func (g *Gateway) handleModerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := g.moderator(w)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			g.writeError(w, r, comment.NotFound("comment", chi.URLParam(r, "id")))
			return
		}
		mode := moderation.Mode(chi.URLParam(r, "mode"))
		if _, err := mod.Moderate(r.Context(), id, mode); err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "mode": mode})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
