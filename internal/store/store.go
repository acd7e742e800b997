// Package store defines the storage collaborator used by the request
// pipeline: three primitives (insert, update, select) over named tables,
// plus the predicate and statement values extensions manipulate.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Table names owned by the core schema.
const (
	TableThread          = "thread"
	TableComment         = "comment"
	TableIdentity        = "identity"
	TableIdentityComment = "identity_comment"
)

// ServiceName is the AppContext service a storage driver publishes.
const ServiceName = "store"

// AttrsColumn is the column holding the open extension-attribute map.
const AttrsColumn = "custom_json"

// Sentinel errors for store operations.
var (
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("store: unique constraint violated")

	// ErrInvalidIdentifier indicates a table or column name that is not a
	// plain SQL identifier.
	ErrInvalidIdentifier = errors.New("store: invalid identifier")
)

// Row is one result row keyed by column name.
type Row map[string]any

// Query describes a select.
type Query struct {
	Table   string
	Where   Predicate
	OrderBy []string
	Limit   int
}

// Store is the storage collaborator. All pipeline access goes through these
// primitives; nothing outside a Store implementation holds a connection.
type Store interface {
	// Insert executes the statement and returns the inserted row.
	Insert(ctx context.Context, stmt Statement) (Row, error)

	// Update executes the statement and returns the updated row, or
	// ok == false when the predicate matched nothing.
	Update(ctx context.Context, stmt Statement) (row Row, ok bool, err error)

	// Select returns every row matching the query.
	Select(ctx context.Context, q Query) ([]Row, error)
}

// Deleter is implemented by stores that can remove rows. Housekeeping and
// compensating writes use it; the request pipeline never deletes.
type Deleter interface {
	// Delete removes every row of table matching where and returns how
	// many went.
	Delete(ctx context.Context, table string, where Predicate) (int64, error)
}

// Statement is a pending insert or update. It is a plain value: rewriting
// hooks receive it through a reference and replace it wholesale, so helper
// methods return modified copies instead of mutating the receiver.
type Statement struct {
	Table  string
	Where  Predicate
	Values map[string]any
}

// NewStatement returns a statement targeting table with a copy of values.
func NewStatement(table string, values map[string]any) Statement {
	return Statement{Table: table, Values: maps.Clone(values)}
}

// With returns a copy of s with column set to v.
func (s Statement) With(column string, v any) Statement {
	values := make(map[string]any, len(s.Values)+1)
	maps.Copy(values, s.Values)
	values[column] = v
	s.Values = values
	return s
}

// WithAttr returns a copy of s whose custom_json value carries key = v.
func (s Statement) WithAttr(key string, v any) Statement {
	attrs := s.Attrs().Clone()
	attrs[key] = v
	return s.With(AttrsColumn, attrs)
}

// Attrs returns the custom_json value held by the statement, or nil.
func (s Statement) Attrs() comment.Attrs {
	switch v := s.Values[AttrsColumn].(type) {
	case comment.Attrs:
		return v
	case map[string]any:
		return comment.Attrs(v)
	default:
		return nil
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CheckIdentifier returns ErrInvalidIdentifier unless name is a plain
// SQL identifier. Implementations call it on every table and column name
// because those are interpolated, not bound.
func CheckIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
