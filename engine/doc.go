// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine wires the decision engine together and is the only thing the
HTTP layer talks to.

New builds, on one database handle:

  - the store, bounded by the configured timeout
  - the vote ledger
  - the consensus cache with its history recorder
  - the transition state machine, fed by every cache refresh
  - the notification filter, receiving every engine event

Vote operations return the committed vote together with a freshly computed
snapshot. Reads of consensus and transition status first act on any
auto-transition countdown that has elapsed, so a decision moves on even
when the background sweep is not running.

Run drives the periodic sweep and the notification flush until its context
is cancelled.
*/
package engine
