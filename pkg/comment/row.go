package comment

import (
	"fmt"
	"strconv"
	"time"
)

// CommentFromRow decodes a comment table row as returned by the store.
func CommentFromRow(row map[string]any) (Comment, error) {
	var (
		c   Comment
		err error
	)
	if c.ID, err = rowInt(row, "id"); err != nil {
		return c, err
	}
	if c.ThreadID, err = rowInt(row, "thread_id"); err != nil {
		return c, err
	}
	if c.ParentID, err = rowIntPtr(row, "parent_id"); err != nil {
		return c, err
	}
	if c.VersionOfID, err = rowIntPtr(row, "version_of_id"); err != nil {
		return c, err
	}
	if c.IdentityID, err = rowIntPtr(row, "identity_id"); err != nil {
		return c, err
	}
	active, err := rowInt(row, "active")
	if err != nil {
		return c, err
	}
	c.Active = active != 0
	if c.Created, err = rowTime(row, "created"); err != nil {
		return c, err
	}
	if c.Modified, err = rowTime(row, "modified"); err != nil {
		return c, err
	}
	c.Text = rowString(row, "text")
	if err := c.Attrs.Scan(row["custom_json"]); err != nil {
		return c, err
	}
	return c, nil
}

// ThreadFromRow decodes a thread table row.
func ThreadFromRow(row map[string]any) (Thread, error) {
	var t Thread
	id, err := rowInt(row, "id")
	if err != nil {
		return t, err
	}
	t.ID = id
	t.ClientID = rowString(row, "client_id")
	if err := t.Attrs.Scan(row["custom_json"]); err != nil {
		return t, err
	}
	return t, nil
}

// IdentityFromRow decodes an identity table row.
func IdentityFromRow(row map[string]any) (Identity, error) {
	var (
		id  Identity
		err error
	)
	if id.ID, err = rowInt(row, "id"); err != nil {
		return id, err
	}
	id.Token = rowString(row, "token")
	if id.Created, err = rowTime(row, "created"); err != nil {
		return id, err
	}
	if err := id.Attrs.Scan(row["custom_json"]); err != nil {
		return id, err
	}
	return id, nil
}

func rowInt(row map[string]any, col string) (int64, error) {
	switch v := row[col].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case nil:
		return 0, fmt.Errorf("comment: column %s is null", col)
	default:
		return 0, fmt.Errorf("comment: column %s has unexpected type %T", col, v)
	}
}

func rowIntPtr(row map[string]any, col string) (*int64, error) {
	if row[col] == nil {
		return nil, nil
	}
	v, err := rowInt(row, col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func rowString(row map[string]any, col string) string {
	switch v := row[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func rowTime(row map[string]any, col string) (time.Time, error) {
	switch v := row[col].(type) {
	case time.Time:
		return v.UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	t, err := ParseTime(rowString(row, col))
	if err != nil {
		return time.Time{}, fmt.Errorf("comment: column %s: %w", col, err)
	}
	return t, nil
}
