// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/quickly-agree/models"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// PriorityOf classifies an event. Lifecycle milestones are high priority,
// individual votes are low.
func PriorityOf(t models.EventType) Priority {
	switch t {
	case models.EventConsensusReached, models.EventTransitionStarted, models.EventTransitionCompleted:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// QuietHours is a daily window, in local hours of Timezone, during which
// low-priority notices are held. Start may be greater than End for a window
// spanning midnight.
type QuietHours struct {
	Start    int    `yaml:"start"`
	End      int    `yaml:"end"`
	Timezone string `yaml:"timezone"`

	loc *time.Location
}

// Active reports whether t falls inside the window.
func (q *QuietHours) Active(t time.Time) bool {
	if q == nil || q.Start == q.End {
		return false
	}
	loc := q.loc
	if loc == nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	if q.Start < q.End {
		return h >= q.Start && h < q.End
	}
	return h >= q.Start || h < q.End
}

// Rules configure the notification filter.
type Rules struct {
	DedupWindow     time.Duration `yaml:"dedup_window"`
	QuietHours      *QuietHours   `yaml:"quiet_hours"`
	BatchSize       int           `yaml:"batch_size"`
	RespectActivity bool          `yaml:"respect_activity"`
	InactiveAfter   time.Duration `yaml:"inactive_after"`
}

// DefaultRules deduplicate for five minutes and deliver everything else
// immediately.
func DefaultRules() Rules {
	return Rules{
		DedupWindow:   5 * time.Minute,
		InactiveAfter: 24 * time.Hour,
	}
}

// LoadRules reads rules from a YAML file. Fields missing from the file keep
// their defaults.
//
//	dedup_window: 10m
//	batch_size: 5
//	respect_activity: true
//	inactive_after: 48h
//	quiet_hours:
//	  start: 22
//	  end: 7
//	  timezone: Europe/Berlin
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read notification rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules on top of DefaultRules.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("failed to parse notification rules: %w", err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r *Rules) validate() error {
	if r.DedupWindow < 0 {
		return errors.New("dedup_window must not be negative")
	}
	if r.BatchSize < 0 {
		return errors.New("batch_size must not be negative")
	}
	if r.InactiveAfter <= 0 {
		return errors.New("inactive_after must be positive")
	}
	if q := r.QuietHours; q != nil {
		if q.Start < 0 || q.Start > 23 || q.End < 0 || q.End > 23 {
			return errors.New("quiet_hours start and end must be between 0 and 23")
		}
		q.loc = time.UTC
		if q.Timezone != "" {
			loc, err := time.LoadLocation(q.Timezone)
			if err != nil {
				return fmt.Errorf("invalid quiet_hours timezone: %w", err)
			}
			q.loc = loc
		}
	}
	return nil
}
