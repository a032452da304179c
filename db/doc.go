// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections and creates the schema.

# Connections

Open registers both drivers and opens a pool for either type:

	conn, err := db.Open(db.TypeSQLite, "quickly-agree.db")

SQLite pools hold one connection with a busy timeout and immediate
transactions, so concurrent writers wait their turn.

# Schema Creation

CreateSchema initializes all required tables for PostgreSQL or SQLite:

	if err := db.CreateSchema(conn, db.TypePostgres); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
JSON payload columns are JSONB on PostgreSQL and TEXT on SQLite.

# Tables

  - decision: proposal, rule configuration, lifecycle and transition markers
  - option: candidate outcomes with an ordinal position
  - participant: voting pool membership and identity token
  - vote: one live vote per participant per decision
  - vote_audit: append-only log of every vote mutation
  - consensus_history: append-only snapshot time series
  - confirmation: materialized attendance-confirmation pool

# Relationships

	decision 1──* option
	decision 1──* participant
	decision 1──* vote ──1 option
	decision 1──* vote_audit
	decision 1──* consensus_history
	decision 1──* confirmation

Decisions are never deleted; they are soft-closed instead.
*/
package db
