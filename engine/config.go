// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/models"
)

// normalizeConfig fills unset fields from models.DefaultConfig and rejects
// values the calculator cannot work with.
func normalizeConfig(cfg models.DecisionConfig) (models.DecisionConfig, error) {
	def := models.DefaultConfig()
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.MinParticipants == 0 {
		cfg.MinParticipants = def.MinParticipants
	}
	if cfg.Threshold == 0 {
		// Absolute thresholds are vote counts, not percentages.
		if cfg.Algorithm == models.AlgorithmAbsolute && cfg.MinParticipants > 0 {
			cfg.Threshold = float64(cfg.MinParticipants)
		} else {
			cfg.Threshold = def.Threshold
		}
	}
	if cfg.TieHandling == "" {
		cfg.TieHandling = def.TieHandling
	}
	if cfg.TieBreaker == "" {
		cfg.TieBreaker = def.TieBreaker
	}

	if !cfg.Algorithm.Valid() {
		return cfg, invalidConfig("unknown algorithm %q", cfg.Algorithm)
	}
	if cfg.Algorithm == models.AlgorithmAbsolute {
		if cfg.Threshold < 1 {
			return cfg, invalidConfig("threshold must be a vote count of at least 1 for the absolute algorithm")
		}
	} else if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return cfg, invalidConfig("threshold must be between 0 and 100")
	}
	if cfg.MinParticipants < 1 {
		return cfg, invalidConfig("min_participants must be at least 1")
	}
	switch cfg.TieHandling {
	case models.TieHandlingBreak, models.TieHandlingNoConsensus:
	default:
		return cfg, invalidConfig("unknown tie_handling %q", cfg.TieHandling)
	}
	switch cfg.TieBreaker {
	case models.TieBreakerOrdinal, models.TieBreakerEarliestVote, models.TieBreakerLatestVote:
	default:
		return cfg, invalidConfig("unknown tie_breaker %q", cfg.TieBreaker)
	}
	if cfg.TimeLimitMinutes != nil && *cfg.TimeLimitMinutes <= 0 {
		return cfg, invalidConfig("time_limit_minutes must be positive")
	}
	if cfg.AutoTransitionSeconds != nil && *cfg.AutoTransitionSeconds < 0 {
		return cfg, invalidConfig("auto_transition_seconds must not be negative")
	}
	return cfg, nil
}

// expiresAt derives the voting deadline from the time limit.
func expiresAt(createdAt time.Time, cfg models.DecisionConfig) *time.Time {
	if cfg.TimeLimitMinutes == nil {
		return nil
	}
	t := createdAt.Add(time.Duration(*cfg.TimeLimitMinutes) * time.Minute).UTC()
	return &t
}

func invalidConfig(format string, args ...any) error {
	return apperr.Validation(apperr.ErrInvalidConfig.Code, fmt.Sprintf(format, args...))
}
