// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Agree API.

# Handler Types

Each handler is a thin struct over the engine:

  - DecisionHandler: decision, option, configuration and participant management
  - VotingHandler: casting, changing and retracting votes
  - ConsensusHandler: cached consensus snapshots and trend history
  - TransitionHandler: commit-and-confirm lifecycle and the confirmation pool

	decisions := handlers.NewDecisionHandler(eng)

# Identity

Proposer operations require the X-Admin-Key header returned when the
decision was created. Voting operations require the X-Participant-Token
header issued to the proposer at creation and to every invited participant;
a missing or unknown token is a 401.

# Lifecycle

	OPEN → AGREEMENT_REACHED → TRANSITIONING → CONFIRMING

AGREEMENT_REACHED falls back to OPEN when a vote change loses agreement.
The proposer can start the transition, cancel it before it completes, or
cancel a pending auto-transition countdown. OPEN and AGREEMENT_REACHED
decisions can be closed without a result.

# Errors

Engine rejections are written with middleware.ErrorFrom as
{"error", "message", "code"}.
*/
package handlers
