// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/middleware"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/testutil"
)

type testServer struct {
	eng         *engine.Engine
	decisions   *DecisionHandler
	voting      *VotingHandler
	consensus   *ConsensusHandler
	transitions *TransitionHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	eng, err := engine.New(testutil.SetupTestDB(t), testutil.GetTestConfig(), nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return &testServer{
		eng:         eng,
		decisions:   NewDecisionHandler(eng),
		voting:      NewVotingHandler(eng),
		consensus:   NewConsensusHandler(eng),
		transitions: NewTransitionHandler(eng),
	}
}

// createDecision creates a decision through the handler and returns the response.
func (s *testServer) createDecision(t *testing.T, cfg *models.DecisionConfig, options ...string) models.CreateDecisionResponse {
	t.Helper()

	req := models.CreateDecisionRequest{
		Title:        "Team offsite",
		ProposerName: "Alice",
		Config:       cfg,
	}
	for _, text := range options {
		req.Options = append(req.Options, models.AddOptionRequest{Text: text})
	}

	w := httptest.NewRecorder()
	s.decisions.CreateDecision(w, testutil.MakeRequest("POST", "/decisions", req, nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to create decision: %d - %s", w.Code, w.Body.String())
	}

	var resp models.CreateDecisionResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

// invite adds a participant through the handler and returns its token.
func (s *testServer) invite(t *testing.T, d models.CreateDecisionResponse, name string) models.InviteParticipantResponse {
	t.Helper()

	req := testutil.MakeRequest("POST", "/decisions/"+d.DecisionID+"/participants",
		models.InviteParticipantRequest{DisplayName: name}, admin(d))
	req.SetPathValue("id", d.DecisionID)
	w := httptest.NewRecorder()
	s.decisions.InviteParticipant(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to invite %s: %d - %s", name, w.Code, w.Body.String())
	}

	var resp models.InviteParticipantResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

// vote sends a vote request and returns the recorder.
func (s *testServer) vote(method, decisionID, token string, in *models.VoteInput) *httptest.ResponseRecorder {
	var body interface{}
	if in != nil {
		body = *in
	}
	req := testutil.MakeRequest(method, "/decisions/"+decisionID+"/votes", body,
		map[string]string{middleware.HeaderParticipantToken: token})
	req.SetPathValue("id", decisionID)
	w := httptest.NewRecorder()

	switch method {
	case "POST":
		s.voting.CastVote(w, req)
	case "PUT":
		s.voting.ChangeVote(w, req)
	case "DELETE":
		s.voting.RetractVote(w, req)
	}
	return w
}

func admin(d models.CreateDecisionResponse) map[string]string {
	return map[string]string{middleware.HeaderAdminKey: d.AdminKey}
}

// do runs a handler against a request addressed to decisionID.
func do(h http.HandlerFunc, method, path, decisionID string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest(method, path, body, headers)
	req.SetPathValue("id", decisionID)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}
