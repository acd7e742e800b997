package cron

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

// funcJob adapts a function to Job.
type funcJob struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

func (j funcJob) Name() string     { return j.name }
func (j funcJob) Schedule() string { return j.schedule }
func (j funcJob) Run(ctx context.Context) error {
	if j.run == nil {
		return nil
	}
	return j.run(ctx)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	for expr, ok := range map[string]bool{
		"*/10 * * * *": true,
		"0 3 * * *":    true,
		"0 0 1 1 *":    true,
		"60 * * * *":   false,
		"0 25 * * *":   false,
		"@every 5m":    false,
		"* * * * * *":  false,
		"":             false,
	} {
		if err := ParseSchedule(expr); (err == nil) != ok {
			t.Errorf("ParseSchedule(%q) = %v, want ok=%v", expr, err, ok)
		}
	}
}

func TestScheduler_Register(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	for _, name := range []string{"moderation_expire_pending", "identity_cache_prune", "rate_limit_sweep"} {
		if err := s.RegisterJob(funcJob{name: name, schedule: "*/10 * * * *"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RegisterJob(funcJob{name: "rate_limit_sweep", schedule: "* * * * *"}); err == nil {
		t.Error("duplicate job name accepted")
	}
	want := []string{"moderation_expire_pending", "identity_cache_prune", "rate_limit_sweep"}
	if got := s.Jobs(); !slices.Equal(got, want) {
		t.Errorf("Jobs = %v, want %v", got, want)
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("stop without start", func(t *testing.T) {
		t.Parallel()
		if err := NewScheduler(nil).Stop(context.Background()); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("bad schedule fails start", func(t *testing.T) {
		t.Parallel()
		s := NewScheduler(nil)
		_ = s.RegisterJob(funcJob{name: "broken", schedule: "nope"})
		if err := s.Start(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("failing job keeps scheduler up", func(t *testing.T) {
		t.Parallel()
		s := NewScheduler(nil)
		_ = s.RegisterJob(funcJob{name: "failing", schedule: "* * * * *", run: func(context.Context) error {
			return errors.New("store closed")
		}})
		if err := s.Start(); err != nil {
			t.Fatal(err)
		}
		if err := s.RunNow(context.Background(), "failing"); err == nil {
			t.Error("RunNow hid the job error")
		}
		if err := s.Stop(context.Background()); err != nil {
			t.Fatal(err)
		}
	})
}

func TestScheduler_RunNowSkipsWhileRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	s := NewScheduler(nil)
	_ = s.RegisterJob(funcJob{
		name:     "moderation_expire_pending",
		schedule: "0 0 1 1 *",
		run: func(context.Context) error {
			if runs.Add(1) == 1 {
				close(started)
			}
			<-release
			return nil
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunNow(context.Background(), "moderation_expire_pending")
	}()
	<-started

	if err := s.RunNow(context.Background(), "moderation_expire_pending"); !errors.Is(err, ErrJobBusy) {
		t.Errorf("overlapping RunNow err = %v, want ErrJobBusy", err)
	}
	close(release)
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if err := s.RunNow(context.Background(), "moderation_expire_pending"); err != nil {
		t.Errorf("RunNow after release: %v", err)
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("unknown job err = %v", err)
	}
}
