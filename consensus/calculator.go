// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package consensus

import (
	"math"
	"time"

	"github.com/danielhkuo/quickly-agree/models"
)

const (
	MajorityThreshold      = 50.0
	SupermajorityThreshold = 66.0

	// VelocityWindow is the trailing window used for votes-per-minute.
	VelocityWindow = 60 * time.Minute

	etaDampening = 0.1
	tieEpsilon   = 1e-9
)

// Input is everything the calculator needs about one decision.
type Input struct {
	DecisionID       string
	Options          []models.Option // ordered by position
	Votes            []models.Vote   // live votes only
	ParticipantCount int
}

// optionTally accumulates per-option values during a computation
type optionTally struct {
	option    models.Option
	count     int
	value     float64
	firstVote time.Time
	lastVote  time.Time
}

// Compute measures agreement for a decision. It never fails: zero votes or
// zero participants produce a well-formed empty snapshot.
func Compute(in Input, cfg models.DecisionConfig, now time.Time) models.ConsensusSnapshot {
	tallies, byID := newTallies(in.Options)

	total := 0
	recent := 0
	windowStart := now.Add(-VelocityWindow)
	for _, v := range in.Votes {
		t, ok := byID[v.OptionID]
		if !ok {
			continue
		}
		total++
		t.count++
		t.value += contribution(cfg.Algorithm, v)
		if t.firstVote.IsZero() || v.CreatedAt.Before(t.firstVote) {
			t.firstVote = v.CreatedAt
		}
		if v.CreatedAt.After(t.lastVote) {
			t.lastVote = v.CreatedAt
		}
		if v.CreatedAt.After(windowStart) && !v.CreatedAt.After(now) {
			recent++
		}
	}

	snap := models.ConsensusSnapshot{
		DecisionID:       in.DecisionID,
		TotalVotes:       total,
		ParticipantCount: max(in.ParticipantCount, total),
		Options:          make([]models.OptionBreakdown, 0, len(tallies)),
		Algorithm:        cfg.Algorithm,
		Threshold:        effectiveThreshold(cfg),
		CalculatedAt:     now,
	}

	if total == 0 {
		for _, t := range tallies {
			snap.Options = append(snap.Options, models.OptionBreakdown{
				OptionID: t.option.ID,
				Text:     t.option.Text,
			})
		}
		return snap
	}

	totalValue := 0.0
	for _, t := range tallies {
		totalValue += t.value
	}

	leader, tied := pickLeader(tallies, cfg.TieBreaker)

	for _, t := range tallies {
		pct := 0.0
		if totalValue > 0 {
			pct = t.value * 100 / totalValue
		}
		snap.Options = append(snap.Options, models.OptionBreakdown{
			OptionID:   t.option.ID,
			Text:       t.option.Text,
			Count:      t.count,
			Percentage: pct,
			IsLeading:  leader != nil && t.option.ID == leader.option.ID,
		})
	}

	if leader == nil {
		return snap
	}
	snap.LeadingOption = &models.OptionRef{ID: leader.option.ID, Text: leader.option.Text}

	target := snap.Threshold
	var reached bool
	switch cfg.Algorithm {
	case models.AlgorithmAbsolute:
		needed := absoluteThreshold(cfg.Threshold)
		snap.ConsensusLevel = math.Min(float64(leader.count)*100/needed, 100)
		reached = float64(leader.count) >= needed
		target = 100
	case models.AlgorithmPercentage, models.AlgorithmMajority, models.AlgorithmSupermajority,
		models.AlgorithmQuadratic:
		snap.ConsensusLevel = leader.value * 100 / totalValue
		reached = MeetsThreshold(snap.ConsensusLevel, snap.Threshold)
	case models.AlgorithmPairwise, models.AlgorithmCustom:
		// Not implemented distinctly: computed with percentage rules and
		// tagged with the requested algorithm.
		snap.ConsensusLevel = leader.value * 100 / totalValue
		reached = MeetsThreshold(snap.ConsensusLevel, snap.Threshold)
	default:
		snap.ConsensusLevel = leader.value * 100 / totalValue
		reached = MeetsThreshold(snap.ConsensusLevel, snap.Threshold)
	}

	if total < cfg.MinParticipants {
		reached = false
	}
	if tied && cfg.TieHandling == models.TieHandlingNoConsensus {
		reached = false
	}
	snap.IsConsensusReached = reached

	snap.VotingVelocity = float64(recent) / VelocityWindow.Minutes()
	if snap.VotingVelocity > 0 && snap.ConsensusLevel < target {
		eta := (target - snap.ConsensusLevel) / (snap.VotingVelocity * etaDampening)
		snap.EstimatedTimeToConsensus = &eta
	}

	snap.ConfidenceScore = confidence(snap.ConsensusLevel, total, snap.ParticipantCount)
	return snap
}

// MeetsThreshold reports whether a level satisfies a percentage threshold.
func MeetsThreshold(level, threshold float64) bool {
	return level >= threshold
}

func newTallies(options []models.Option) ([]*optionTally, map[string]*optionTally) {
	tallies := make([]*optionTally, 0, len(options))
	byID := make(map[string]*optionTally, len(options))
	for _, o := range options {
		t := &optionTally{option: o}
		tallies = append(tallies, t)
		byID[o.ID] = t
	}
	return tallies, byID
}

// contribution is what one vote adds to its option's tally.
func contribution(algorithm models.Algorithm, v models.Vote) float64 {
	if algorithm == models.AlgorithmQuadratic {
		w := v.Weight
		if w <= 0 {
			w = models.DefaultWeight
		}
		return math.Sqrt(w)
	}
	return 1
}

func effectiveThreshold(cfg models.DecisionConfig) float64 {
	switch cfg.Algorithm {
	case models.AlgorithmMajority:
		return MajorityThreshold
	case models.AlgorithmSupermajority:
		return SupermajorityThreshold
	case models.AlgorithmAbsolute:
		return absoluteThreshold(cfg.Threshold)
	default:
		return cfg.Threshold
	}
}

// absoluteThreshold is the vote count required under the absolute rule.
func absoluteThreshold(threshold float64) float64 {
	if threshold < 1 {
		return 1
	}
	return threshold
}

// pickLeader returns the option with the highest value and whether more
// than one option shares that value. Ties are resolved by the tie breaker,
// falling back to ordinal position.
func pickLeader(tallies []*optionTally, tieBreaker string) (*optionTally, bool) {
	var leader *optionTally
	tied := false
	for _, t := range tallies {
		if t.count == 0 {
			continue
		}
		if leader == nil {
			leader = t
			continue
		}
		switch {
		case t.value > leader.value+tieEpsilon:
			leader = t
			tied = false
		case math.Abs(t.value-leader.value) <= tieEpsilon:
			tied = true
			if preferOnTie(t, leader, tieBreaker) {
				leader = t
			}
		}
	}
	return leader, tied
}

// preferOnTie reports whether candidate beats current when their values are equal.
func preferOnTie(candidate, current *optionTally, tieBreaker string) bool {
	switch tieBreaker {
	case models.TieBreakerEarliestVote:
		if !candidate.firstVote.Equal(current.firstVote) {
			return candidate.firstVote.Before(current.firstVote)
		}
	case models.TieBreakerLatestVote:
		if !candidate.lastVote.Equal(current.lastVote) {
			return candidate.lastVote.After(current.lastVote)
		}
	}
	return candidate.option.Position < current.option.Position
}

func confidence(level float64, total, participants int) float64 {
	if total == 0 || participants == 0 {
		return 0
	}
	participation := math.Min(float64(total)/float64(participants), 1)
	c := 0.7*(level/100) + 0.3*participation
	return math.Max(0, math.Min(c, 1))
}
