package pipeline

import (
	"encoding/json"
	"math"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

// text returns the required "text" field.
func text(req *comment.Request) (string, error) {
	if req == nil || req.Fields == nil {
		return "", comment.Invalid("text is required")
	}
	v, ok := req.Fields["text"]
	if !ok || v == nil {
		return "", comment.Invalid("text is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", comment.Invalid("text must be a string")
	}
	return s, nil
}

// parentID returns the optional "parent_id" field.
func parentID(req *comment.Request) (*int64, error) {
	if req == nil || req.Fields == nil {
		return nil, nil
	}
	var id int64
	switch v := req.Fields["parent_id"].(type) {
	case nil:
		return nil, nil
	case float64:
		if v != math.Trunc(v) || v < 1 || v > math.MaxInt64 {
			return nil, comment.Invalid("parent_id must be a positive integer")
		}
		id = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 1 {
			return nil, comment.Invalid("parent_id must be a positive integer")
		}
		id = n
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		return nil, comment.Invalid("parent_id must be an integer")
	}
	if id < 1 {
		return nil, comment.Invalid("parent_id must be a positive integer")
	}
	return &id, nil
}

func identityID(req *comment.Request) *int64 {
	if req == nil || req.Identity == nil {
		return nil
	}
	id := req.Identity.ID
	return &id
}
