// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger records each participant's single live vote on a decision.

Cast, Change and Retract each run as one store transaction: the prior vote
is removed, the new one inserted, the participant's status updated and one
audit entry appended. Mutations for the same (decision, participant) pair
are serialized in process; a racing writer that slips past the lock fails
on the vote table's unique key and gets apperr.ErrConcurrentVote.

Checks run in this order, each with its own error:

  - decision exists (ErrDecisionNotFound)
  - decision accepts votes: OPEN or AGREEMENT_REACHED and not expired (ErrDecisionNotOpen)
  - participant is invited and may vote (ErrNotEligible)
  - option belongs to the decision (ErrMissingOption, ErrOptionNotFound)
  - mode fields: rank, score, weight range, delegation right

After commit the cached consensus for the decision is invalidated and a
VOTE_CAST or VOTE_CHANGED event is published.
*/
package ledger
