// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package transition implements the decision lifecycle.

	OPEN ──reached──▶ AGREEMENT_REACHED ──Start / countdown──▶ TRANSITIONING ──▶ CONFIRMING
	  ▲                     │    ▲                                  │
	  └────── lost ─────────┘    └──────────── Cancel ──────────────┘

OPEN and AGREEMENT_REACHED may also be soft-closed by the proposer.

# Automatic moves

Observe is fed every freshly computed snapshot. It marks agreement and,
when the decision has an auto-transition countdown, stores the deadline
on the decision row. There are no timers: CheckDue compares the stored
deadline with the clock and is called on reads and from the background
sweep, so a restart never loses a countdown.

# Completing a transition

A transition runs three recorded steps:

 1. one pending confirmation per participant (50%)
 2. the winning option's text copied onto the decision (90%)
 3. state set to CONFIRMING (100%)

Each step is skipped when already recorded and is itself idempotent, so
Complete and Resume can be repeated after a crash without duplicating
confirmations.

Per-decision operations are serialized in process; every state change is
also a compare-and-set on the decision row.
*/
package transition
