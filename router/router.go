// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quickly-agree/cliparse"
	"github.com/danielhkuo/quickly-agree/engine"
	"github.com/danielhkuo/quickly-agree/handlers"
	"github.com/danielhkuo/quickly-agree/metrics"
	"github.com/danielhkuo/quickly-agree/middleware"
)

func NewRouter(eng *engine.Engine, cfg cliparse.Config, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	decisionHandler := handlers.NewDecisionHandler(eng)
	votingHandler := handlers.NewVotingHandler(eng)
	consensusHandler := handlers.NewConsensusHandler(eng)
	transitionHandler := handlers.NewTransitionHandler(eng)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", m.Handler())

	// Decision management (admin operations require X-Admin-Key)
	mux.HandleFunc("POST /decisions", middleware.WithLogging(decisionHandler.CreateDecision))
	mux.HandleFunc("GET /decisions/{id}", middleware.WithLogging(decisionHandler.GetDecision))
	mux.HandleFunc("POST /decisions/{id}/options", middleware.WithLogging(decisionHandler.AddOption))
	mux.HandleFunc("PUT /decisions/{id}/config", middleware.WithLogging(decisionHandler.UpdateConfig))
	mux.HandleFunc("POST /decisions/{id}/close", middleware.WithLogging(decisionHandler.CloseDecision))
	mux.HandleFunc("POST /decisions/{id}/participants", middleware.WithLogging(decisionHandler.InviteParticipant))
	mux.HandleFunc("GET /decisions/{id}/participants", middleware.WithLogging(decisionHandler.ListParticipants))
	mux.HandleFunc("GET /decisions/{id}/audit", middleware.WithLogging(decisionHandler.GetAudit))

	// Voting (requires X-Participant-Token)
	mux.HandleFunc("POST /decisions/{id}/votes", middleware.WithLogging(votingHandler.CastVote))
	mux.HandleFunc("PUT /decisions/{id}/votes", middleware.WithLogging(votingHandler.ChangeVote))
	mux.HandleFunc("DELETE /decisions/{id}/votes", middleware.WithLogging(votingHandler.RetractVote))
	mux.HandleFunc("GET /decisions/{id}/votes/me", middleware.WithLogging(votingHandler.GetMyVote))

	// Consensus
	mux.HandleFunc("GET /decisions/{id}/consensus", middleware.WithLogging(consensusHandler.GetConsensus))
	mux.HandleFunc("GET /decisions/{id}/consensus/history", middleware.WithLogging(consensusHandler.GetHistory))

	// Transition lifecycle
	mux.HandleFunc("GET /decisions/{id}/transition", middleware.WithLogging(transitionHandler.GetStatus))
	mux.HandleFunc("POST /decisions/{id}/transition", middleware.WithLogging(transitionHandler.Start))
	mux.HandleFunc("POST /decisions/{id}/transition/cancel", middleware.WithLogging(transitionHandler.Cancel))
	mux.HandleFunc("DELETE /decisions/{id}/transition/countdown", middleware.WithLogging(transitionHandler.CancelCountdown))
	mux.HandleFunc("GET /decisions/{id}/confirmations", middleware.WithLogging(transitionHandler.GetConfirmations))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-agree API v1"))
	})

	return middleware.CORS(mux, cfg.CORSOrigins)
}
