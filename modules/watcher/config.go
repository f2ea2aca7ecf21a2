package watcher

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/flemzord/pulse/internal/scheduler"
	"github.com/flemzord/pulse/internal/watch"
	"github.com/flemzord/pulse/modules/source/dragonite"
)

const (
	defaultBannedInterval   = 5 * time.Minute
	defaultDisabledInterval = 5 * time.Minute
	defaultOfflineInterval  = time.Minute
)

var defaultProviders = []string{"nk", "ptc"}

// Schedule holds the timing shared by every watcher section.
type Schedule struct {
	// Enabled defaults to true when the section is present.
	Enabled        *bool         `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	RunImmediately *bool         `yaml:"run_immediately"`
	StartDelay     time.Duration `yaml:"start_delay"`

	// Cron, when set, replaces Interval with a 5-field cron expression.
	Cron string `yaml:"cron"`
}

func (s *Schedule) on() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s *Schedule) immediate() bool {
	return s.RunImmediately == nil || *s.RunImmediately
}

func (s *Schedule) defaults(interval time.Duration) {
	if s.Interval == 0 {
		s.Interval = interval
	}
}

func (s *Schedule) validate(section string) error {
	if s.Interval <= 0 {
		return fmt.Errorf("watch: %s.interval must be positive, got %s", section, s.Interval)
	}
	if s.StartDelay < 0 {
		return fmt.Errorf("watch: %s.start_delay must be non-negative, got %s", section, s.StartDelay)
	}
	if s.Cron != "" {
		if err := scheduler.ValidateCron(s.Cron); err != nil {
			return fmt.Errorf("watch: %s.cron: %w", section, err)
		}
	}
	return nil
}

// describe returns the schedule as shown in logs.
func (s *Schedule) describe() string {
	if s.Cron != "" {
		return s.Cron
	}
	return s.Interval.String()
}

// BannedSection configures the banned-accounts watchers, one per provider.
type BannedSection struct {
	Schedule  `yaml:",inline"`
	Window    time.Duration `yaml:"window"`
	Providers []string      `yaml:"providers"`
}

// DisabledSection configures the disabled-session watcher.
type DisabledSection struct {
	Schedule `yaml:",inline"`
	Window   time.Duration `yaml:"window"`
}

// OfflineSection configures the offline-device watcher.
type OfflineSection struct {
	Schedule  `yaml:",inline"`
	Threshold time.Duration `yaml:"threshold"`
}

// Config holds the watch module configuration. A missing section disables
// that watcher.
type Config struct {
	Banned   *BannedSection   `yaml:"banned"`
	Disabled *DisabledSection `yaml:"disabled"`
	Offline  *OfflineSection  `yaml:"offline"`
}

func (c *Config) defaults() {
	if b := c.Banned; b != nil {
		b.defaults(defaultBannedInterval)
		if b.Window == 0 {
			b.Window = watch.DefaultWindow
		}
		if len(b.Providers) == 0 {
			b.Providers = slices.Clone(defaultProviders)
		}
	}
	if d := c.Disabled; d != nil {
		d.defaults(defaultDisabledInterval)
		if d.Window == 0 {
			d.Window = watch.DefaultWindow
		}
	}
	if o := c.Offline; o != nil {
		o.defaults(defaultOfflineInterval)
		if o.Threshold == 0 {
			o.Threshold = watch.DefaultOfflineThreshold
		}
	}
}

// validate normalises providers in place.
func (c *Config) validate() error {
	var errs []error

	if b := c.Banned; b != nil {
		errs = append(errs, b.validate("banned"))
		if _, err := dragonite.WindowClause(b.Window); err != nil {
			errs = append(errs, fmt.Errorf("watch: banned.window: %w", err))
		}
		seen := make(map[string]bool, len(b.Providers))
		for i, p := range b.Providers {
			norm, err := dragonite.NormalizeProvider(p)
			if err != nil {
				errs = append(errs, fmt.Errorf("watch: banned.providers: %w", err))
				continue
			}
			if seen[norm] {
				errs = append(errs, fmt.Errorf("watch: banned.providers: duplicate %q", norm))
			}
			seen[norm] = true
			b.Providers[i] = norm
		}
	}
	if d := c.Disabled; d != nil {
		errs = append(errs, d.validate("disabled"))
		if _, err := dragonite.WindowClause(d.Window); err != nil {
			errs = append(errs, fmt.Errorf("watch: disabled.window: %w", err))
		}
	}
	if o := c.Offline; o != nil {
		errs = append(errs, o.validate("offline"))
		if o.Threshold < time.Minute {
			errs = append(errs, fmt.Errorf("watch: offline.threshold must be at least 1m, got %s", o.Threshold))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) enabledCount() int {
	n := 0
	if c.Banned != nil && c.Banned.on() {
		n += len(c.Banned.Providers)
	}
	if c.Disabled != nil && c.Disabled.on() {
		n++
	}
	if c.Offline != nil && c.Offline.on() {
		n++
	}
	return n
}
