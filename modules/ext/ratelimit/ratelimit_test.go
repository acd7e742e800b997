package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/cron"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newExt(cfg Config) (*Extension, *clock) {
	e := New(cfg)
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	e.now = c.now
	return e, c
}

func create(e *Extension, req *comment.Request) error {
	_, err := e.ValidateComment(context.Background(), comment.Comment{}, req, comment.ActionCreate)
	return err
}

func TestPerMinuteWindowSlides(t *testing.T) {
	t.Parallel()

	e, c := newExt(Config{PerMinute: 2})
	req := &comment.Request{RemoteAddr: "192.0.2.1:5555"}

	for range 2 {
		if err := create(e, req); err != nil {
			t.Fatal(err)
		}
	}
	if err := create(e, req); !errors.Is(err, comment.ErrRateLimited) {
		t.Fatalf("third create: err = %v", err)
	}

	// Another port on the same host is the same poster.
	if err := create(e, &comment.Request{RemoteAddr: "192.0.2.1:6000"}); err == nil {
		t.Error("port change escaped the limit")
	}
	if err := create(e, &comment.Request{RemoteAddr: "192.0.2.2:5555"}); err != nil {
		t.Errorf("other host limited: %v", err)
	}

	c.t = c.t.Add(61 * time.Second)
	if err := create(e, req); err != nil {
		t.Errorf("after window: %v", err)
	}
}

func TestIdentityTakesPrecedence(t *testing.T) {
	t.Parallel()

	e, _ := newExt(Config{PerMinute: 1})
	if err := create(e, &comment.Request{Identity: &comment.Identity{ID: 7}, RemoteAddr: "192.0.2.1:1"}); err != nil {
		t.Fatal(err)
	}
	// Same address, different identity.
	if err := create(e, &comment.Request{Identity: &comment.Identity{ID: 8}, RemoteAddr: "192.0.2.1:1"}); err != nil {
		t.Errorf("identity 8 limited: %v", err)
	}
	if err := create(e, &comment.Request{Identity: &comment.Identity{ID: 7}}); err == nil {
		t.Error("identity 7 not limited")
	}
}

func TestPerHourWindow(t *testing.T) {
	t.Parallel()

	e, c := newExt(Config{PerMinute: 10, PerHour: 3})
	req := &comment.Request{RemoteAddr: "198.51.100.4"}
	for range 3 {
		if err := create(e, req); err != nil {
			t.Fatal(err)
		}
		c.t = c.t.Add(5 * time.Minute)
	}
	if err := create(e, req); err == nil {
		t.Error("fourth comment within the hour allowed")
	}
	c.t = c.t.Add(50 * time.Minute)
	if err := create(e, req); err != nil {
		t.Errorf("after the hour: %v", err)
	}
}

func TestEditsAndUnknownPostersPass(t *testing.T) {
	t.Parallel()

	e, _ := newExt(Config{PerMinute: 1})
	req := &comment.Request{RemoteAddr: "192.0.2.9:1"}
	for range 3 {
		if _, err := e.ValidateComment(context.Background(), comment.Comment{}, req, comment.ActionEdit); err != nil {
			t.Fatal(err)
		}
	}
	for range 3 {
		if err := create(e, &comment.Request{}); err != nil {
			t.Fatal(err)
		}
	}
	if e.Tracked() != 0 {
		t.Errorf("tracked = %d, want 0", e.Tracked())
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	e, c := newExt(Config{PerMinute: 5})
	_ = create(e, &comment.Request{RemoteAddr: "192.0.2.1:1"})
	c.t = c.t.Add(30 * time.Second)
	_ = create(e, &comment.Request{RemoteAddr: "192.0.2.2:1"})

	c.t = c.t.Add(45 * time.Second)
	if n := e.Sweep(); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if e.Tracked() != 1 {
		t.Errorf("tracked = %d, want 1", e.Tracked())
	}
}

func TestProvisionRegistersSweepJob(t *testing.T) {
	t.Parallel()

	ctx := core.NewAppContext(nil, t.TempDir(), nil)
	sched := cron.NewScheduler(nil)
	if err := ctx.RegisterService(cron.ServiceName, sched); err != nil {
		t.Fatal(err)
	}
	e := New(Config{})
	if err := e.Provision(ctx); err != nil {
		t.Fatal(err)
	}
	if jobs := sched.Jobs(); len(jobs) != 1 || jobs[0] != "rate_limit_sweep" {
		t.Errorf("jobs = %v", jobs)
	}
	if err := sched.RunNow(context.Background(), "rate_limit_sweep"); err != nil {
		t.Error(err)
	}
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("per_hour: 20\nsweep_schedule: \"bad\""), &node); err != nil {
		t.Fatal(err)
	}
	e := New(Config{})
	if err := e.Configure(node.Content[0]); err != nil {
		t.Fatal(err)
	}
	if len(e.windows) != 1 || e.windows[0].limit != 20 {
		t.Errorf("windows = %+v", e.windows)
	}
	if err := e.Validate(); err == nil {
		t.Error("bad schedule accepted")
	}
	if err := New(Config{PerMinute: -1}).Validate(); err == nil {
		t.Error("negative limit accepted")
	}
}
