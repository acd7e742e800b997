package comment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
)

// Attrs is the open extension-attribute map persisted as the custom_json
// column. Values must be JSON-encodable.
type Attrs map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	maps.Copy(out, a)
	return out
}

// Merge returns a copy of a overlaid with patch. Neither input is modified.
func (a Attrs) Merge(patch Attrs) Attrs {
	out := a.Clone()
	maps.Copy(out, patch)
	return out
}

// String returns the named attribute when it is a string.
func (a Attrs) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// Bool returns the named attribute when it is a bool.
func (a Attrs) Bool(key string) bool {
	b, ok := a[key].(bool)
	return ok && b
}

// Value implements driver.Valuer.
func (a Attrs) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(a))
	if err != nil {
		return nil, fmt.Errorf("comment: encode attrs: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Attrs) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attrs{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("comment: cannot scan %T into attrs", src)
	}
	out := Attrs{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("comment: decode attrs: %w", err)
		}
	}
	*a = out
	return nil
}
