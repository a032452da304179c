// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/middleware"
	"github.com/danielhkuo/quickly-agree/models"
)

// decisionID reads the {id} path segment, writing a 400 when it is empty.
func decisionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "decision id is required")
		return "", false
	}
	return id, true
}

// requireAdmin checks the X-Admin-Key header against the addressed decision.
func requireAdmin(w http.ResponseWriter, r *http.Request, eng *engine.Engine) (string, bool) {
	id, ok := decisionID(w, r)
	if !ok {
		return "", false
	}
	if err := eng.AuthorizeAdmin(id, r.Header.Get(middleware.HeaderAdminKey)); err != nil {
		middleware.ErrorFrom(w, err)
		return "", false
	}
	return id, true
}

// requireParticipant resolves the X-Participant-Token header to a
// participant of the addressed decision.
func requireParticipant(w http.ResponseWriter, r *http.Request, eng *engine.Engine) (string, models.Participant, bool) {
	id, ok := decisionID(w, r)
	if !ok {
		return "", models.Participant{}, false
	}
	p, err := eng.Authenticate(r.Context(), id, r.Header.Get(middleware.HeaderParticipantToken))
	if err != nil {
		middleware.ErrorFrom(w, err)
		return "", models.Participant{}, false
	}
	return id, p, true
}
