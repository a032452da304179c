// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Agree API server.

Quickly Agree is a group decision service: participants vote on options
under a configurable rule, the server continuously works out whether the
group has agreed, and an agreed decision moves on to a confirmation pool
for the winning option.

# Starting the Server

The server reads flags, environment variables and an optional .env file:

	DATABASE_URL=quickly-agree.db ADMIN_KEY_SALT=... go run .

Or with flags and PostgreSQL:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin keys and origin hashing

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - CACHE_TTL, CACHE_SIZE: Consensus cache tuning
  - STORE_TIMEOUT: Bound on a single store operation
  - SWEEP_INTERVAL: Due-transition sweep and notification flush interval
  - HISTORY_WINDOW_MAX: Largest trend window a client may request
  - NOTIFY_RULES: YAML notification rules file
  - CORS_ORIGINS: Allowed origins, comma separated
  - LOG_LEVEL: debug, info, warn or error

# Architecture

  - engine: Facade wiring the components below
  - ledger: Vote casting, changing and retraction with the audit trail
  - consensus: Pure consensus calculation per algorithm
  - cache: Bounded snapshot cache with recompute coalescing
  - history: Snapshot trend recording
  - transition: Lifecycle state machine and due-transition sweep
  - notify: Notification rule filter
  - store: SQL access for PostgreSQL and SQLite
  - handlers, router, middleware: HTTP surface
  - models, apperr, auth, keylock, metrics, db, cliparse: Shared support

See package documentation for each component.
*/
package main
