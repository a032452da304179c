// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/middleware"
)

type TransitionHandler struct {
	eng *engine.Engine
}

func NewTransitionHandler(eng *engine.Engine) *TransitionHandler {
	return &TransitionHandler{eng: eng}
}

// GetStatus handles GET /decisions/{id}/transition
func (h *TransitionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionID(w, r)
	if !ok {
		return
	}

	status, err := h.eng.TransitionStatus(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}

// Start handles POST /decisions/{id}/transition
func (h *TransitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	status, err := h.eng.StartTransition(r.Context(), id, "")
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}

// Cancel handles POST /decisions/{id}/transition/cancel
func (h *TransitionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	status, err := h.eng.CancelTransition(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}

// CancelCountdown handles DELETE /decisions/{id}/transition/countdown
func (h *TransitionHandler) CancelCountdown(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r, h.eng)
	if !ok {
		return
	}

	status, err := h.eng.CancelCountdown(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}

// GetConfirmations handles GET /decisions/{id}/confirmations
func (h *TransitionHandler) GetConfirmations(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionID(w, r)
	if !ok {
		return
	}

	confirmations, err := h.eng.Confirmations(r.Context(), id)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, confirmations)
}
