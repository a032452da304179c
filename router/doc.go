// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Agree API.

# Route Registration

NewRouter builds a Go 1.22 http.ServeMux over a single engine and wraps it
in the CORS middleware:

	handler := router.NewRouter(eng, cfg, m)

# Endpoints

Operational:

	GET /health  - Liveness
	GET /metrics - Prometheus exposition
	GET /        - Banner

Decision management (admin routes require X-Admin-Key):

	POST /decisions                    - Create decision
	GET  /decisions/{id}               - Decision with options
	POST /decisions/{id}/options       - Add option
	PUT  /decisions/{id}/config        - Change rule configuration
	POST /decisions/{id}/close         - Close without a result
	POST /decisions/{id}/participants  - Invite participant
	GET  /decisions/{id}/participants  - List participants
	GET  /decisions/{id}/audit         - Vote audit trail

Voting (requires X-Participant-Token):

	POST   /decisions/{id}/votes    - Cast
	PUT    /decisions/{id}/votes    - Change
	DELETE /decisions/{id}/votes    - Retract
	GET    /decisions/{id}/votes/me - Caller's live vote

Consensus:

	GET /decisions/{id}/consensus         - Snapshot (?refresh=true)
	GET /decisions/{id}/consensus/history - Trend (?hours=N)

Transition:

	GET    /decisions/{id}/transition           - Status and countdown
	POST   /decisions/{id}/transition           - Start (admin)
	POST   /decisions/{id}/transition/cancel    - Cancel (admin)
	DELETE /decisions/{id}/transition/countdown - Stop auto-transition (admin)
	GET    /decisions/{id}/confirmations        - Confirmation pool

Every decision route is wrapped with middleware.WithLogging.
*/
package router
