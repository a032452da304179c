// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/history"
	"github.com/danielhkuo/quickly-agree/middleware"
	"github.com/danielhkuo/quickly-agree/models"
)

type ConsensusHandler struct {
	eng *engine.Engine
}

func NewConsensusHandler(eng *engine.Engine) *ConsensusHandler {
	return &ConsensusHandler{eng: eng}
}

// GetConsensus handles GET /decisions/{id}/consensus
// ?refresh=true bypasses the cache.
func (h *ConsensusHandler) GetConsensus(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionID(w, r)
	if !ok {
		return
	}

	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "refresh must be true or false")
			return
		}
		refresh = b
	}

	snap, err := h.eng.Consensus(r.Context(), id, refresh)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snap)
}

// GetHistory handles GET /decisions/{id}/consensus/history?hours=N
func (h *ConsensusHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionID(w, r)
	if !ok {
		return
	}

	hours := int(history.DefaultWindow / time.Hour)
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	entries, err := h.eng.History(r.Context(), id, time.Duration(hours)*time.Hour)
	if err != nil {
		middleware.ErrorFrom(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.HistoryResponse{
		DecisionID: id,
		Hours:      hours,
		Entries:    entries,
	})
}
