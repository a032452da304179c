// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/middleware"
	"github.com/danielhkuo/quickly-agree/models"
)

type VotingHandler struct {
	eng *engine.Engine
}

func NewVotingHandler(eng *engine.Engine) *VotingHandler {
	return &VotingHandler{eng: eng}
}

// CastVote handles POST /decisions/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, p, ok := requireParticipant(w, r, h.eng)
	if !ok {
		return
	}

	var in models.VoteInput
	if err := middleware.ParseJSONBody(r, &in); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.eng.CastVote(r.Context(), id, p.ParticipantID, in, h.origin(r))
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// ChangeVote handles PUT /decisions/{id}/votes
func (h *VotingHandler) ChangeVote(w http.ResponseWriter, r *http.Request) {
	id, p, ok := requireParticipant(w, r, h.eng)
	if !ok {
		return
	}

	var in models.VoteInput
	if err := middleware.ParseJSONBody(r, &in); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.eng.ChangeVote(r.Context(), id, p.ParticipantID, in, h.origin(r))
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// RetractVote handles DELETE /decisions/{id}/votes
func (h *VotingHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	id, p, ok := requireParticipant(w, r, h.eng)
	if !ok {
		return
	}

	snap, err := h.eng.RetractVote(r.Context(), id, p.ParticipantID, h.origin(r))
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RetractResponse{
		Message:   "Vote retracted",
		Consensus: snap,
	})
}

// GetMyVote handles GET /decisions/{id}/votes/me
func (h *VotingHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	id, p, ok := requireParticipant(w, r, h.eng)
	if !ok {
		return
	}

	vote, err := h.eng.MyVote(r.Context(), id, p.ParticipantID)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, vote)
}

func (h *VotingHandler) origin(r *http.Request) models.Origin {
	return h.eng.Origin(middleware.GetClientIP(r), r.UserAgent())
}
