// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify decides which participants hear about engine events, and when.

Every event is addressed to the decision's participants except the one who
caused it. Each notice then passes the rules in order:

  - dedup: the same event type for the same recipient and decision is
    dropped inside DedupWindow
  - priority: CONSENSUS_REACHED and TRANSITION_* are high priority and are
    delivered at once; VOTE_* notices continue below
  - activity: with RespectActivity set, recipients idle for longer than
    InactiveAfter get no low-priority notices
  - quiet hours: low-priority notices are held until the window ends
  - batching: with BatchSize set, low-priority notices queue per recipient
    until the batch is full or Flush runs

Delivery goes through a Sink. LogSink writes structured log records.
*/
package notify
