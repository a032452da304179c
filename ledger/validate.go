// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"time"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/auth"
	"github.com/danielhkuo/quickly-agree/models"
)

const maxCommentLength = 1000

// buildVote checks the mode-specific fields of in and returns the vote to store.
// An empty vote type means single choice.
func buildVote(decisionID string, p models.Participant, in models.VoteInput, origin models.Origin, now time.Time) (models.Vote, error) {
	voteType := in.VoteType
	if voteType == "" {
		voteType = models.VoteSingle
	}

	switch voteType {
	case models.VoteSingle, models.VoteMulti, models.VoteWeighted:
	case models.VoteRanked:
		if in.Ranking == nil {
			return models.Vote{}, apperr.ErrMissingRank
		}
		if *in.Ranking < 1 {
			return models.Vote{}, apperr.Validation("invalid_rank", "ranking must be 1 or greater")
		}
	case models.VoteScored:
		if in.Score == nil {
			return models.Vote{}, apperr.ErrMissingScore
		}
	case models.VoteDelegated:
		if !p.CanDelegate {
			return models.Vote{}, apperr.ErrCannotDelegate
		}
	default:
		return models.Vote{}, apperr.ErrUnknownVoteType
	}

	weight := models.DefaultWeight
	if in.Weight != nil {
		weight = *in.Weight
	}
	if weight < models.MinWeight || weight > models.MaxWeight {
		return models.Vote{}, apperr.ErrWeightOutOfRange
	}

	if len(in.Comment) > maxCommentLength {
		return models.Vote{}, apperr.Validation("comment_too_long", "comment must be at most 1000 characters")
	}

	return models.Vote{
		ID:            auth.NewID(),
		DecisionID:    decisionID,
		ParticipantID: p.ParticipantID,
		OptionID:      in.OptionID,
		VoteType:      voteType,
		Ranking:       in.Ranking,
		Score:         in.Score,
		Weight:        weight,
		Sentiment:     in.Sentiment,
		Comment:       in.Comment,
		OriginHash:    origin.AddressHash,
		ClientString:  origin.Client,
		CreatedAt:     now,
	}, nil
}
