// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/testutil"
)

func TestCastVote(t *testing.T) {
	s := newTestServer(t)
	d := s.createDecision(t, &models.DecisionConfig{MinParticipants: 3}, "Lisbon", "Porto")
	bob := s.invite(t, d, "Bob")

	w := s.vote("POST", d.DecisionID, bob.Token, &models.VoteInput{OptionID: d.OptionIDs[1], Comment: "closer"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.VoteResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Vote.OptionID != d.OptionIDs[1] || resp.Vote.VoteType != models.VoteSingle {
		t.Errorf("Unexpected vote %+v", resp.Vote)
	}
	if resp.Vote.Weight != models.DefaultWeight {
		t.Errorf("Expected default weight, got %v", resp.Vote.Weight)
	}
	if resp.Consensus.TotalVotes != 1 || resp.Consensus.ParticipantCount != 2 {
		t.Errorf("Unexpected snapshot %+v", resp.Consensus)
	}
	if resp.Consensus.IsConsensusReached {
		t.Error("One vote must not reach agreement with min_participants 3")
	}
}

func TestCastVoteRejections(t *testing.T) {
	s := newTestServer(t)
	d := s.createDecision(t, nil, "Lisbon", "Porto")
	bob := s.invite(t, d, "Bob")

	obs, err := s.eng.Invite(t.Context(), d.DecisionID, models.InviteParticipantRequest{
		DisplayName: "Olga",
		CanVote:     new(bool),
	})
	if err != nil {
		t.Fatalf("Failed to invite observer: %v", err)
	}

	rank := 0
	weight := 11.0

	tests := []struct {
		name           string
		token          string
		input          models.VoteInput
		expectedStatus int
		expectedCode   string
	}{
		{"missing token", "", models.VoteInput{OptionID: d.OptionIDs[0]}, http.StatusUnauthorized, "missing_token"},
		{"unknown token", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", models.VoteInput{OptionID: d.OptionIDs[0]}, http.StatusUnauthorized, "invalid_token"},
		{"observer", obs.Token, models.VoteInput{OptionID: d.OptionIDs[0]}, http.StatusForbidden, "not_eligible"},
		{"missing option", bob.Token, models.VoteInput{}, http.StatusBadRequest, "missing_option"},
		{"foreign option", bob.Token, models.VoteInput{OptionID: "nope"}, http.StatusNotFound, "option_not_found"},
		{"unknown type", bob.Token, models.VoteInput{OptionID: d.OptionIDs[0], VoteType: "approval"}, http.StatusBadRequest, "unknown_vote_type"},
		{"ranked without rank", bob.Token, models.VoteInput{OptionID: d.OptionIDs[0], VoteType: models.VoteRanked}, http.StatusBadRequest, "missing_rank"},
		{"ranked with zero rank", bob.Token, models.VoteInput{OptionID: d.OptionIDs[0], VoteType: models.VoteRanked, Ranking: &rank}, http.StatusBadRequest, "invalid_rank"},
		{"scored without score", bob.Token, models.VoteInput{OptionID: d.OptionIDs[0], VoteType: models.VoteScored}, http.StatusBadRequest, "missing_score"},
		{"weight too large", bob.Token, models.VoteInput{OptionID: d.OptionIDs[0], VoteType: models.VoteWeighted, Weight: &weight}, http.StatusBadRequest, "weight_out_of_range"},
		{"delegation not allowed", bob.Token, models.VoteInput{OptionID: d.OptionIDs[0], VoteType: models.VoteDelegated}, http.StatusForbidden, "cannot_delegate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			w := s.vote("POST", d.DecisionID, tt.token, &in)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			var resp models.ErrorResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Code != tt.expectedCode {
				t.Errorf("Expected code %s, got %s (%s)", tt.expectedCode, resp.Code, resp.Message)
			}
		})
	}
}

func TestVoteOnUnknownDecision(t *testing.T) {
	s := newTestServer(t)
	d := s.createDecision(t, nil, "Lisbon", "Porto")

	w := s.vote("POST", "missing", d.ProposerToken, &models.VoteInput{OptionID: d.OptionIDs[0]})
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestChangeAndRetractVote(t *testing.T) {
	s := newTestServer(t)
	d := s.createDecision(t, &models.DecisionConfig{MinParticipants: 3}, "Lisbon", "Porto")
	bob := s.invite(t, d, "Bob")

	w := s.vote("PUT", d.DecisionID, bob.Token, &models.VoteInput{OptionID: d.OptionIDs[0]})
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = s.vote("DELETE", d.DecisionID, bob.Token, nil)
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = s.vote("POST", d.DecisionID, bob.Token, &models.VoteInput{OptionID: d.OptionIDs[0]})
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = s.vote("PUT", d.DecisionID, bob.Token, &models.VoteInput{OptionID: d.OptionIDs[1]})
	testutil.AssertStatus(t, w, http.StatusOK)
	var changed models.VoteResponse
	testutil.AssertJSON(t, w, &changed)
	if changed.Consensus.Options[0].Count != 0 || changed.Consensus.Options[1].Count != 1 {
		t.Errorf("Expected the vote to move, got %+v", changed.Consensus.Options)
	}

	me := do(s.voting.GetMyVote, "GET", "/decisions/"+d.DecisionID+"/votes/me", d.DecisionID, nil,
		map[string]string{"X-Participant-Token": bob.Token})
	testutil.AssertStatus(t, me, http.StatusOK)
	var mine models.Vote
	testutil.AssertJSON(t, me, &mine)
	if mine.OptionID != d.OptionIDs[1] {
		t.Errorf("Expected live vote on %s, got %s", d.OptionIDs[1], mine.OptionID)
	}

	w = s.vote("DELETE", d.DecisionID, bob.Token, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var retracted models.RetractResponse
	testutil.AssertJSON(t, w, &retracted)
	if retracted.Consensus.TotalVotes != 0 {
		t.Errorf("Expected no votes after retract, got %d", retracted.Consensus.TotalVotes)
	}

	me = do(s.voting.GetMyVote, "GET", "/decisions/"+d.DecisionID+"/votes/me", d.DecisionID, nil,
		map[string]string{"X-Participant-Token": bob.Token})
	testutil.AssertStatus(t, me, http.StatusNotFound)

	audit := do(s.decisions.GetAudit, "GET", "/decisions/"+d.DecisionID+"/audit", d.DecisionID, nil, admin(d))
	testutil.AssertStatus(t, audit, http.StatusOK)
	var entries []models.AuditEntry
	testutil.AssertJSON(t, audit, &entries)
	actions := []string{}
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	expected := []string{models.AuditCast, models.AuditChange, models.AuditRetract}
	if len(actions) != len(expected) {
		t.Fatalf("Expected audit %v, got %v", expected, actions)
	}
	for i := range expected {
		if actions[i] != expected[i] {
			t.Errorf("Expected audit %v, got %v", expected, actions)
		}
	}
	if entries[0].Origin == "" || entries[0].Origin == "192.0.2.1" {
		t.Error("Expected a hashed origin in the audit trail")
	}
}
