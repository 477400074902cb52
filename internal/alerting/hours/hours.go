// Package hours implements the market-hours gate for the polling job.
package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config describes one trading window. Weekdays use ISO numbering with
// Monday as 1. With PauseOnClosed false the gate always passes.
type Config struct {
	Timezone      string `mapstructure:"timezone"`
	Open          string `mapstructure:"open"`
	Close         string `mapstructure:"close"`
	ActiveDays    []int  `mapstructure:"active_days"`
	PauseOnClosed bool   `mapstructure:"pause_on_closed"`
}

// withDefaults fills in NYSE-style defaults for unset fields.
func (c Config) withDefaults() Config {
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.Open == "" {
		c.Open = "09:30"
	}
	if c.Close == "" {
		c.Close = "16:00"
	}
	if len(c.ActiveDays) == 0 {
		c.ActiveDays = []int{1, 2, 3, 4, 5}
	}
	return c
}

// IsOpen reports whether now falls inside the configured trading window,
// evaluated on the clock of the configured timezone. The window is
// half-open: [open, close).
func IsOpen(cfg Config, now time.Time) (bool, error) {
	cfg = cfg.withDefaults()
	if !cfg.PauseOnClosed {
		return true, nil
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return false, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	local := now.In(loc)

	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // ISO: Sunday is 7
	}
	active := false
	for _, d := range cfg.ActiveDays {
		if d == weekday {
			active = true
			break
		}
	}
	if !active {
		return false, nil
	}

	openMin, err := parseClock(cfg.Open)
	if err != nil {
		return false, fmt.Errorf("invalid open time %q: %w", cfg.Open, err)
	}
	closeMin, err := parseClock(cfg.Close)
	if err != nil {
		return false, fmt.Errorf("invalid close time %q: %w", cfg.Close, err)
	}

	nowMin := local.Hour()*60 + local.Minute()
	return nowMin >= openMin && nowMin < closeMin, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hh, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, err
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock value out of range: %q", s)
	}
	return hh*60 + mm, nil
}
