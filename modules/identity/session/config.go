package session

import (
	"errors"
	"time"

	"github.com/flemzord/sdiscuss/internal/cron"
)

const (
	defaultCookieName = "sdiscuss_session"
	defaultMaxAge     = 365 * 24 * time.Hour
	defaultCacheIdle  = 30 * time.Minute
	defaultOrphanAge  = 24 * time.Hour
)

// Config holds identity.session settings.
type Config struct {
	CookieName    string        `yaml:"cookie_name"`
	CookiePath    string        `yaml:"cookie_path"`
	Secure        bool          `yaml:"secure"`
	MaxAge        time.Duration `yaml:"max_age"`
	CacheIdle     time.Duration `yaml:"cache_idle"`
	PruneSchedule string        `yaml:"prune_schedule"`

	// OrphanAge is how long an identity with no comments or relations is
	// kept. Negative disables deletion.
	OrphanAge      time.Duration `yaml:"orphan_age"`
	OrphanSchedule string        `yaml:"orphan_schedule"`
}

func (c *Config) defaults() {
	if c.CookieName == "" {
		c.CookieName = defaultCookieName
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaultMaxAge
	}
	if c.CacheIdle == 0 {
		c.CacheIdle = defaultCacheIdle
	}
	if c.OrphanAge == 0 {
		c.OrphanAge = defaultOrphanAge
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxAge < 0 {
		errs = append(errs, errors.New("session: max_age must be positive"))
	}
	if c.CacheIdle < 0 {
		errs = append(errs, errors.New("session: cache_idle must be positive"))
	}
	for _, expr := range []string{c.PruneSchedule, c.OrphanSchedule} {
		if expr == "" {
			continue
		}
		if err := cron.ParseSchedule(expr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
