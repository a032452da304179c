// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/middleware"
	"github.com/danielhkuo/quickly-agree/models"
)

type DecisionHandler struct {
	eng *engine.Engine
}

func NewDecisionHandler(eng *engine.Engine) *DecisionHandler {
	return &DecisionHandler{eng: eng}
}

// CreateDecision handles POST /decisions
func (h *DecisionHandler) CreateDecision(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDecisionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.eng.CreateDecision(r.Context(), req)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// GetDecision handles GET /decisions/{id}
func (h *DecisionHandler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionID(w, r)
	if !ok {
		return
	}

	d, err := h.eng.Decision(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, d)
}

// AddOption handles POST /decisions/{id}/options
func (h *DecisionHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	var req models.AddOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	optionID, err := h.eng.AddOption(r.Context(), id, req)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.AddOptionResponse{OptionID: optionID})
}

// UpdateConfig handles PUT /decisions/{id}/config
func (h *DecisionHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	var cfg models.DecisionConfig
	if err := middleware.ParseJSONBody(r, &cfg); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	d, err := h.eng.UpdateConfig(r.Context(), id, cfg)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, d)
}

// CloseDecision handles POST /decisions/{id}/close
func (h *DecisionHandler) CloseDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	closedAt, err := h.eng.Close(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CloseDecisionResponse{ClosedAt: closedAt})
}

// InviteParticipant handles POST /decisions/{id}/participants
func (h *DecisionHandler) InviteParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	var req models.InviteParticipantRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.eng.Invite(r.Context(), id, req)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// ListParticipants handles GET /decisions/{id}/participants
func (h *DecisionHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	participants, err := h.eng.Participants(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, participants)
}

// GetAudit handles GET /decisions/{id}/audit
func (h *DecisionHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	entries, err := h.eng.Audit(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entries)
}
