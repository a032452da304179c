// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the relational store behind the consensus engine.

Every query is a method on Queries, which wraps either the *sql.DB or an
open *sql.Tx, so the same code runs inside and outside a transaction:

	err := st.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.DeleteVote(ctx, decisionID, participantID); err != nil {
			return err
		}
		return q.InsertVote(ctx, vote)
	})

Queries use $N placeholders, which both lib/pq and modernc.org/sqlite accept.
Lookups that find nothing return the matching apperr sentinel
(ErrDecisionNotFound, ErrOptionNotFound, ErrNoVote, ErrNotParticipant).

State changes on the decision row are compare-and-set updates guarded by the
expected current state; they report whether a row changed.
*/
package store
