package captureemail

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

func TestValidateComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email any
		want  any
		valid bool
	}{
		{"alice@example.org", "alice@example.org", true},
		{"a.b+tag@mail.example.co", "a.b+tag@mail.example.co", true},
		{"", nil, true},
		{nil, nil, true},
		{"not-an-email", nil, false},
		{"a@b", nil, false},
		{7.0, nil, false},
	}

	for _, tt := range tests {
		req := &comment.Request{Fields: map[string]any{"email": tt.email}}
		c, err := (&Extension{}).ValidateComment(context.Background(), comment.Comment{Attrs: comment.Attrs{}}, req, comment.ActionCreate)
		if tt.valid != (err == nil) {
			t.Errorf("%v: err = %v", tt.email, err)
			continue
		}
		if err != nil && !errors.Is(err, comment.ErrRecordInvalid) {
			t.Errorf("%v: err = %v, want ErrRecordInvalid", tt.email, err)
		}
		if err == nil && c.Attrs["email"] != tt.want {
			t.Errorf("%v: stored %v", tt.email, c.Attrs["email"])
		}
	}
}
