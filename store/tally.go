// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"

	"github.com/danielhkuo/quickly-agree/consensus"
	"github.com/danielhkuo/quickly-agree/models"
)

// LoadTally reads the options, live votes, eligible participant count and
// configuration the calculator needs for one decision.
func (s *Store) LoadTally(ctx context.Context, decisionID string) (consensus.Input, models.DecisionConfig, error) {
	ctx, cancel := s.Bound(ctx)
	defer cancel()

	d, err := s.GetDecision(ctx, decisionID)
	if err != nil {
		return consensus.Input{}, models.DecisionConfig{}, err
	}
	options, err := s.ListOptions(ctx, decisionID)
	if err != nil {
		return consensus.Input{}, models.DecisionConfig{}, err
	}
	votes, err := s.ListVotes(ctx, decisionID)
	if err != nil {
		return consensus.Input{}, models.DecisionConfig{}, err
	}
	participants, err := s.CountEligibleParticipants(ctx, decisionID)
	if err != nil {
		return consensus.Input{}, models.DecisionConfig{}, err
	}

	return consensus.Input{
		DecisionID:       decisionID,
		Options:          options,
		Votes:            votes,
		ParticipantCount: participants,
	}, d.Config, nil
}
