package comment

import (
	"encoding/json"
	"time"
)

// Document is a client-visible representation of a comment or thread.
// Encoding sorts keys, so the same document always yields the same bytes.
type Document map[string]any

// Encode returns the JSON encoding of the document.
func (d Document) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// FormatTime renders a timestamp the way documents and storage expect it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime. It also accepts RFC 3339 so rows
// written by SQLite defaults can be read back.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
