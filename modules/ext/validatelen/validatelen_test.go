package validatelen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

func TestValidateComment(t *testing.T) {
	t.Parallel()

	e := New(Config{Min: 3, Max: 10})
	tests := []struct {
		name   string
		text   string
		action comment.Action
		ok     bool
	}{
		{"too short", "hi", comment.ActionCreate, false},
		{"trailing space ignored", "hi   \n", comment.ActionCreate, false},
		{"min", "hey", comment.ActionCreate, true},
		{"runes not bytes", "héé", comment.ActionEdit, true},
		{"too long", strings.Repeat("x", 11), comment.ActionEdit, false},
		{"delete skips", "", comment.ActionDelete, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.ValidateComment(context.Background(), comment.Comment{Text: tt.text}, nil, tt.action)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, comment.ErrRecordInvalid) {
				t.Errorf("err = %v, want ErrRecordInvalid", err)
			}
		})
	}
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("min: 5"), &node); err != nil {
		t.Fatal(err)
	}
	e := &Extension{}
	if err := e.Configure(node.Content[0]); err != nil {
		t.Fatal(err)
	}
	if e.config.Min != 5 || e.config.Max != defaultMax {
		t.Errorf("config = %+v", e.config)
	}
	if err := e.Validate(); err != nil {
		t.Error(err)
	}

	if err := New(Config{Min: 10, Max: 5}).Validate(); err == nil {
		t.Error("expected error for max < min")
	}
}

func TestConfigure_ExplicitZeroMin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantMin int
	}{
		{"omitted", "max: 100", defaultMin},
		{"explicit zero", "min: 0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var node yaml.Node
			if err := yaml.Unmarshal([]byte(tt.yaml), &node); err != nil {
				t.Fatal(err)
			}
			e := &Extension{}
			if err := e.Configure(node.Content[0]); err != nil {
				t.Fatal(err)
			}
			if e.config.Min != tt.wantMin {
				t.Errorf("min = %d, want %d", e.config.Min, tt.wantMin)
			}
			if err := e.Validate(); err != nil {
				t.Error(err)
			}
		})
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("min: 0"), &node); err != nil {
		t.Fatal(err)
	}
	e := &Extension{}
	if err := e.Configure(node.Content[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ValidateComment(context.Background(), comment.Comment{Text: "  "}, nil, comment.ActionCreate); err != nil {
		t.Errorf("blank text rejected with min 0: %v", err)
	}
}
