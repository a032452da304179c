// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package consensus turns a decision's live votes into an agreement measurement.

Compute is pure: it reads only the Input and configuration handed to it.

	snap := consensus.Compute(consensus.Input{
		DecisionID:       id,
		Options:          options,
		Votes:            votes,
		ParticipantCount: participants,
	}, cfg, time.Now())

# Algorithms

  - percentage: leading option's share of votes against the configured threshold
  - majority: same share, fixed 50% threshold
  - supermajority: same share, fixed 66% threshold
  - absolute: leading option's raw count against the threshold as a count
  - quadratic: every vote contributes sqrt(weight) before shares are taken
  - pairwise, custom: computed with percentage rules, tagged with their own name

# Derived values

Velocity counts votes in the trailing 60 minutes, in votes per minute. The
estimated time to agreement is (threshold - level) / (velocity * 0.1)
minutes and is nil when nothing is moving or the threshold is already met.
Confidence is 0.7 * level/100 + 0.3 * min(votes/participants, 1).
*/
package consensus
