// Package voting implements the voting extension: one up or down vote per
// identity and comment, with running counters kept in the comment's
// custom_json.
package voting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.RouteMounter    = (*Extension)(nil)
	_ hook.CommentEnricher = (*Extension)(nil)
	_ core.Provisioner     = (*Extension)(nil)
)

// Counter keys inside custom_json.
const (
	Upvotes   = "upvotes"
	Downvotes = "downvotes"
)

const (
	relVote     = "vote"
	casAttempts = 5
)

var (
	// ErrAlreadyVoted is returned for a second vote by the same identity.
	ErrAlreadyVoted = errors.New("voting: already voted")

	// ErrOwnComment is returned when an identity votes on its own comment.
	ErrOwnComment = fmt.Errorf("voting: own comment: %w", comment.ErrForbidden)

	errContended = errors.New("voting: counter update kept racing")
)

// Comments resolves a comment through the active visibility filters.
type Comments interface {
	Comment(ctx context.Context, id int64) (comment.Comment, error)
}

// Tally is the vote count of one comment.
type Tally struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

// Extension is the voting extension.
type Extension struct {
	store    store.Store
	comments Comments
	app      *core.AppContext
	logger   *slog.Logger
}

// New returns an extension bound to st, resolving comments through c.
func New(st store.Store, c Comments) *Extension {
	return &Extension{store: st, comments: c, logger: slog.Default()}
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("voting"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindMountRoutes, hook.KindEnrichComment),
		Description:  "Up and down votes, one per identity",
	}
}

// Provision implements core.Provisioner. The pipeline service is created
// after extensions load, so it is looked up on first use.
func (e *Extension) Provision(ctx *core.AppContext) error {
	st, err := core.ServiceAs[store.Store](ctx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("voting: %w", err)
	}
	e.store = st
	e.app = ctx
	e.logger = ctx.Logger
	return nil
}

func (e *Extension) lookup() (Comments, error) {
	if e.comments != nil {
		return e.comments, nil
	}
	if e.app == nil {
		return nil, errors.New("voting: not provisioned")
	}
	svc, err := core.ServiceAs[*pipeline.Service](e.app, pipeline.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("voting: %w", err)
	}
	e.comments = svc
	return svc, nil
}

// EnrichComment implements hook.CommentEnricher.
func (e *Extension) EnrichComment(_ context.Context, raw comment.Comment, out comment.Document) error {
	out[Upvotes] = counter(raw.Attrs[Upvotes])
	out[Downvotes] = counter(raw.Attrs[Downvotes])
	return nil
}

func counter(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// MountRoutes implements hook.RouteMounter.
func (e *Extension) MountRoutes(r chi.Router) {
	r.Post("/comments/{id}/upvote", e.handle(true))
	r.Post("/comments/{id}/downvote", e.handle(false))
}

func (e *Extension) handle(up bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, comment.NotFound("comment", chi.URLParam(r, "id")))
			return
		}
		voter, err := identity.Require(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		tally, err := e.Vote(r.Context(), voter, id, up)
		if err != nil {
			if comment.Status(err) == http.StatusInternalServerError && !errors.Is(err, ErrAlreadyVoted) {
				e.logger.Error("vote failed", "comment", id, "error", err)
			}
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tally)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := comment.Status(err)
	if errors.Is(err, ErrAlreadyVoted) {
		status = http.StatusConflict
	}
	http.Error(w, http.StatusText(status), status)
}

// Vote records one vote by voter on comment id and returns the new tally.
func (e *Extension) Vote(ctx context.Context, voter *comment.Identity, id int64, up bool) (Tally, error) {
	comments, err := e.lookup()
	if err != nil {
		return Tally{}, err
	}
	c, err := comments.Comment(ctx, id)
	if err != nil {
		return Tally{}, err
	}
	if c.OwnedBy(voter) {
		return Tally{}, ErrOwnComment
	}

	_, err = e.store.Insert(ctx, store.NewStatement(store.TableIdentityComment, map[string]any{
		"identity_id": voter.ID,
		"comment_id":  id,
		"rel_type":    relVote,
	}))
	switch {
	case errors.Is(err, store.ErrConflict):
		return Tally{}, ErrAlreadyVoted
	case err != nil:
		return Tally{}, fmt.Errorf("voting: record vote: %w", err)
	}

	key := Downvotes
	if up {
		key = Upvotes
	}
	tally, err := e.bump(ctx, id, key)
	if err != nil {
		e.unvote(ctx, voter.ID, id)
		return Tally{}, err
	}
	return tally, nil
}

// unvote removes a vote row whose counter was never bumped, so the voter
// can retry.
func (e *Extension) unvote(ctx context.Context, voter, id int64) {
	del, ok := e.store.(store.Deleter)
	if !ok {
		e.logger.Warn("vote recorded without counter", "comment", id, "identity", voter)
		return
	}
	_, err := del.Delete(context.WithoutCancel(ctx), store.TableIdentityComment, store.And(
		store.Eq("identity_id", voter),
		store.Eq("comment_id", id),
		store.Eq("rel_type", relVote),
	))
	if err != nil {
		e.logger.Error("vote rollback failed", "comment", id, "identity", voter, "error", err)
	}
}

// bump increments key in the stored custom_json. The update only matches
// the exact document it read, so a concurrent bump forces a re-read.
func (e *Extension) bump(ctx context.Context, id int64, key string) (Tally, error) {
	for range casAttempts {
		rows, err := e.store.Select(ctx, store.Query{
			Table: store.TableComment,
			Where: store.Eq("id", id),
			Limit: 1,
		})
		if err != nil {
			return Tally{}, fmt.Errorf("voting: load comment %d: %w", id, err)
		}
		if len(rows) == 0 {
			return Tally{}, comment.NotFound("comment", id)
		}
		raw := rawJSON(rows[0][store.AttrsColumn])

		next, err := sjson.Set(raw, key, gjson.Get(raw, key).Int()+1)
		if err != nil {
			return Tally{}, fmt.Errorf("voting: update counter: %w", err)
		}
		_, ok, err := e.store.Update(ctx, store.Statement{
			Table:  store.TableComment,
			Where:  store.And(store.Eq("id", id), store.Eq(store.AttrsColumn, raw)),
			Values: map[string]any{store.AttrsColumn: next},
		})
		if err != nil {
			return Tally{}, fmt.Errorf("voting: store counter: %w", err)
		}
		if ok {
			return Tally{
				Upvotes:   gjson.Get(next, Upvotes).Int(),
				Downvotes: gjson.Get(next, Downvotes).Int(),
			}, nil
		}
	}
	return Tally{}, errContended
}

func rawJSON(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return "{}"
	}
}
