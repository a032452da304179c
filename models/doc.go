// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateDecisionRequest: title, description, proposer_name, options, config
  - AddOptionRequest: text, description
  - InviteParticipantRequest: display_name, can_vote, can_delegate
  - VoteInput: optionId, voteType, ranking, score, weight, sentiment, comment

# Response Types

Types for JSON responses:

  - CreateDecisionResponse: decision_id, admin_key, proposer_token
  - VoteResponse: recorded vote plus a fresh consensus snapshot
  - HistoryResponse: trend entries for a trailing window
  - ErrorResponse: error, message, code

# Domain Types

  - Decision: proposal, rule configuration and lifecycle state
  - Option: candidate outcome with an ordinal position
  - Vote: a participant's single live choice
  - Participant: membership and eligibility in a decision's pool
  - AuditEntry: append-only record of a vote mutation
  - ConsensusSnapshot: calculator output
  - HistoryEntry: persisted snapshot for trend queries
  - Confirmation: one row of the attendance-confirmation pool
  - Event: lifecycle event handed to the notification filter

# Lifecycle

	OPEN ⇄ AGREEMENT_REACHED → TRANSITIONING → CONFIRMING
	                 ↑______________|  (cancel)

OPEN and AGREEMENT_REACHED may also be soft-closed to CLOSED.
*/
package models
