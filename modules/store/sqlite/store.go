package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// DB implements store.Store on a SQLite database.
type DB struct {
	db *sql.DB
}

// Insert implements store.Store.
func (s *DB) Insert(ctx context.Context, stmt store.Statement) (store.Row, error) {
	if err := store.CheckIdentifier(stmt.Table); err != nil {
		return nil, err
	}
	cols, args, err := bindValues(stmt.Values)
	if err != nil {
		return nil, err
	}

	var q string
	if len(cols) == 0 {
		q = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES RETURNING *`, stmt.Table)
	} else {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		q = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
			stmt.Table, strings.Join(cols, ", "), marks)
	}

	rows, err := s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert into %s: %w", stmt.Table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sqlite: insert into %s returned no row", stmt.Table)
	}
	return rows[0], nil
}

// Update implements store.Store. When the predicate matches several rows
// all of them are updated and the first is returned.
func (s *DB) Update(ctx context.Context, stmt store.Statement) (store.Row, bool, error) {
	if err := store.CheckIdentifier(stmt.Table); err != nil {
		return nil, false, err
	}
	cols, args, err := bindValues(stmt.Values)
	if err != nil {
		return nil, false, err
	}
	if len(cols) == 0 {
		return nil, false, fmt.Errorf("sqlite: update %s: no values", stmt.Table)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	where, whereArgs, err := predicateSQL(stmt.Where)
	if err != nil {
		return nil, false, err
	}
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s RETURNING *`, stmt.Table, strings.Join(sets, ", "), where)

	rows, err := s.query(ctx, q, append(args, whereArgs...))
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: update %s: %w", stmt.Table, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Select implements store.Store.
func (s *DB) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := store.CheckIdentifier(q.Table); err != nil {
		return nil, err
	}
	where, args, err := predicateSQL(q.Where)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT * FROM %s WHERE %s`, q.Table, where)
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, term := range q.OrderBy {
			t, err := orderTerm(term)
			if err != nil {
				return nil, err
			}
			terms[i] = t
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := s.query(ctx, b.String(), args)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select from %s: %w", q.Table, err)
	}
	return rows, nil
}

// Delete implements store.Deleter. A true predicate is refused so a
// missing filter cannot empty a table.
func (s *DB) Delete(ctx context.Context, table string, where store.Predicate) (int64, error) {
	if err := store.CheckIdentifier(table); err != nil {
		return 0, err
	}
	if where.IsTrue() {
		return 0, fmt.Errorf("sqlite: delete from %s: predicate required", table)
	}
	cond, args, err := predicateSQL(where)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, table, cond), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete from %s: %w", table, mapError(err))
	}
	return res.RowsAffected()
}

// Ping verifies the database is reachable.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) query(ctx context.Context, q string, args []any) ([]store.Row, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(store.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// mapError turns unique and primary key violations into store.ErrConflict.
func mapError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch code := se.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE constraint failed"):
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}
	return err
}

// bindValues returns the column names in sorted order with their encoded
// values. Sorting keeps generated SQL stable for a given statement.
func bindValues(values map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if err := store.CheckIdentifier(c); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
	}
	slices.Sort(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		v, err := encodeValue(values[c])
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: column %s: %w", c, err)
		}
		args[i] = v
	}
	return cols, args, nil
}

// predicateSQL renders p with its arguments encoded like column values, so
// times and booleans compare the way they are stored.
func predicateSQL(p store.Predicate) (string, []any, error) {
	where, args := p.SQL()
	args = slices.Clone(args)
	for i, a := range args {
		v, err := encodeValue(a)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: predicate argument %d: %w", i, err)
		}
		args[i] = v
	}
	return where, args, nil
}

func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case time.Time:
		return comment.FormatTime(x), nil
	case *int64:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case driver.Valuer:
		return x.Value()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func orderTerm(term string) (string, error) {
	col, dir, _ := strings.Cut(strings.TrimSpace(term), " ")
	if err := store.CheckIdentifier(col); err != nil {
		return "", err
	}
	switch strings.ToUpper(strings.TrimSpace(dir)) {
	case "":
		return col, nil
	case "ASC", "DESC":
		return col + " " + strings.ToUpper(strings.TrimSpace(dir)), nil
	default:
		return "", fmt.Errorf("%w: order direction %q", store.ErrInvalidIdentifier, dir)
	}
}
