package store

import (
	"fmt"
	"strings"
)

// Predicate is a WHERE fragment with bound arguments. The zero value is the
// always-true predicate.
type Predicate struct {
	sql  string
	args []any
}

// True returns the always-true predicate.
func True() Predicate { return Predicate{} }

// Where builds a predicate from a raw SQL fragment using ? placeholders.
// Only code under our control should call it; user input belongs in args.
func Where(sql string, args ...any) Predicate {
	return Predicate{sql: sql, args: args}
}

// Eq matches rows where column equals v. A nil v matches NULL.
func Eq(column string, v any) Predicate {
	if v == nil {
		return Predicate{sql: quote(column) + " IS NULL"}
	}
	return Predicate{sql: quote(column) + " = ?", args: []any{v}}
}

// In matches rows where column is one of vs. An empty list matches nothing.
func In(column string, vs ...any) Predicate {
	if len(vs) == 0 {
		return Predicate{sql: "0"}
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(vs)), ", ")
	return Predicate{sql: fmt.Sprintf("%s IN (%s)", quote(column), marks), args: vs}
}

// AttrPath returns the SQL expression reading key out of custom_json.
func AttrPath(key string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", AttrsColumn, strings.ReplaceAll(key, "'", ""))
}

// AttrEq matches rows whose custom_json key equals v.
func AttrEq(key string, v any) Predicate {
	return Predicate{sql: AttrPath(key) + " = ?", args: []any{v}}
}

// AttrNotIn matches rows whose custom_json key is absent or not one of vs.
func AttrNotIn(key string, vs ...any) Predicate {
	if len(vs) == 0 {
		return True()
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(vs)), ", ")
	expr := AttrPath(key)
	return Predicate{
		sql:  fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", expr, expr, marks),
		args: vs,
	}
}

// AttrIsNotTrue matches rows whose boolean custom_json key is absent or false.
func AttrIsNotTrue(key string) Predicate {
	expr := AttrPath(key)
	return Predicate{sql: fmt.Sprintf("(%s IS NULL OR %s = 0)", expr, expr)}
}

// And combines predicates. Always-true operands are dropped; no operands
// yields the always-true predicate.
func And(ps ...Predicate) Predicate {
	return combine(" AND ", ps)
}

// Or combines predicates. Any always-true operand makes the result true.
func Or(ps ...Predicate) Predicate {
	for _, p := range ps {
		if p.IsTrue() {
			return True()
		}
	}
	return combine(" OR ", ps)
}

// Not negates p. Negating the always-true predicate matches nothing.
func Not(p Predicate) Predicate {
	if p.IsTrue() {
		return Predicate{sql: "0"}
	}
	return Predicate{sql: "NOT (" + p.sql + ")", args: p.args}
}

func combine(op string, ps []Predicate) Predicate {
	var live []Predicate
	for _, p := range ps {
		if !p.IsTrue() {
			live = append(live, p)
		}
	}
	switch len(live) {
	case 0:
		return True()
	case 1:
		return live[0]
	}

	parts := make([]string, len(live))
	var args []any
	for i, p := range live {
		parts[i] = "(" + p.sql + ")"
		args = append(args, p.args...)
	}
	return Predicate{sql: strings.Join(parts, op), args: args}
}

// IsTrue reports whether p is the always-true predicate.
func (p Predicate) IsTrue() bool { return p.sql == "" }

// SQL returns the fragment and its arguments. The always-true predicate
// renders as "1".
func (p Predicate) SQL() (string, []any) {
	if p.IsTrue() {
		return "1", nil
	}
	return p.sql, p.args
}

// String is for logs and tests.
func (p Predicate) String() string {
	s, _ := p.SQL()
	return s
}

func quote(column string) string {
	return `"` + strings.ReplaceAll(column, `"`, `""`) + `"`
}
