// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache memoizes consensus snapshots so reads inside the freshness
window cost nothing.

The cache is a projection of the store and never a source of truth. Entries
live in a bounded LRU keyed by decision ID; concurrent misses for one
decision share a single computation.

OnRefresh sees snapshots in the order their loads started. A computation
that finishes after a newer one has been delivered is recorded in history
but not delivered.

	svc, err := cache.New(cache.Config{TTL: 30 * time.Second, Size: 1024}, st, recorder, m)
	snap, err := svc.Get(ctx, decisionID, false)

	// after every committed vote
	svc.Invalidate(decisionID)
*/
package cache
