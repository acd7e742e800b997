package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// errorJSON is the body of every failed operation.
type errorJSON struct {
	Error string `json:"error"`
}

// writeError maps err to its status. Client errors carry their message;
// anything else is logged and reported as an internal error.
func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := comment.Status(err)
	if status < http.StatusInternalServerError {
		writeJSON(w, status, errorJSON{Error: err.Error()})
		return
	}

	var fault *hook.ExtensionFault
	if errors.As(err, &fault) {
		g.logger.Error("extension fault",
			"extension", fault.Extension,
			"kind", string(fault.Kind),
			"path", r.URL.Path,
			"error", fault.Err,
			"stack", string(fault.Stack),
		)
	} else {
		g.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorJSON{Error: http.StatusText(status)})
}

// writeDocument writes a key-sorted document body.
func writeDocument(w http.ResponseWriter, status int, doc comment.Document) error {
	body, err := doc.Encode()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

// request builds the hook-visible request facts from the JSON body.
func (g *Gateway) request(w http.ResponseWriter, r *http.Request) (*comment.Request, error) {
	req := &comment.Request{
		Fields:     map[string]any{},
		RemoteAddr: r.RemoteAddr,
		Identity:   identity.FromContext(r.Context()),
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req.Fields); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, comment.Invalid("body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, comment.Invalid("body must be a JSON object: %v", err)
	}
	if req.Fields == nil {
		req.Fields = map[string]any{}
	}
	return req, nil
}

func commentID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, comment.NotFound("comment", raw)
	}
	return id, nil
}

func (g *Gateway) handleFetch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := hook.ThreadKey(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		doc, err := g.pipeline.Fetch(r.Context(), key)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		g.write(w, r, http.StatusOK, doc)
	}
}

func (g *Gateway) handleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := hook.ThreadKey(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		req, err := g.request(w, r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		resp, err := g.pipeline.Create(r.Context(), key, req)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		for name, values := range resp.Header {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		g.write(w, r, resp.Status, resp.Body)
	}
}

func (g *Gateway) handleView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := commentID(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		doc, err := g.pipeline.View(r.Context(), id)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		g.write(w, r, http.StatusOK, doc)
	}
}

func (g *Gateway) handleEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := commentID(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		req, err := g.request(w, r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		doc, err := g.pipeline.Update(r.Context(), id, req)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		g.write(w, r, http.StatusOK, doc)
	}
}

func (g *Gateway) handleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := commentID(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		req := &comment.Request{
			Fields:     map[string]any{},
			RemoteAddr: r.RemoteAddr,
			Identity:   identity.FromContext(r.Context()),
		}
		doc, err := g.pipeline.Delete(r.Context(), id, req)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		g.write(w, r, http.StatusOK, doc)
	}
}

func (g *Gateway) write(w http.ResponseWriter, r *http.Request, status int, doc comment.Document) {
	if err := writeDocument(w, status, doc); err != nil {
		g.logger.Error("writing response", "path", r.URL.Path, "error", fmt.Errorf("encode: %w", err))
	}
}
