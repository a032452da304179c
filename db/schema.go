// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// DriverName maps a database type to its database/sql driver name.
func DriverName(dbType string) (string, error) {
	switch dbType {
	case TypeSQLite:
		return "sqlite", nil
	case TypePostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database type %q", dbType)
	}
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dbType string) error {
	jsonType := "TEXT"
	if dbType == TypePostgres {
		jsonType = "JSONB"
	}

	_, err := db.Exec(strings.ReplaceAll(schema, "{{json}}", jsonType))
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Decisions
CREATE TABLE IF NOT EXISTS decision (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    proposer_id TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'OPEN'
        CHECK (state IN ('OPEN', 'AGREEMENT_REACHED', 'TRANSITIONING', 'CONFIRMING', 'CLOSED')),
    algorithm TEXT NOT NULL DEFAULT 'percentage',
    threshold DOUBLE PRECISION NOT NULL DEFAULT 60,
    min_participants INTEGER NOT NULL DEFAULT 1,
    time_limit_minutes INTEGER,
    tie_handling TEXT NOT NULL DEFAULT 'tiebreak',
    tie_breaker TEXT NOT NULL DEFAULT 'ordinal',
    allow_option_add BOOLEAN NOT NULL DEFAULT FALSE,
    auto_transition_seconds INTEGER,
    expires_at TIMESTAMP,
    agreement_reached_at TIMESTAMP,
    transition_deadline TIMESTAMP,
    transition_step TEXT NOT NULL DEFAULT '',
    transition_progress INTEGER NOT NULL DEFAULT 0,
    winning_option_id TEXT,
    final_option_text TEXT,
    final_option_description TEXT,
    confirmed_at TIMESTAMP,
    closed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_state ON decision(state);
CREATE INDEX IF NOT EXISTS idx_decision_deadline ON decision(transition_deadline);

-- Options
CREATE TABLE IF NOT EXISTS option (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL REFERENCES decision(id),
    text TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    UNIQUE (decision_id, position)
);

CREATE INDEX IF NOT EXISTS idx_option_decision_id ON option(decision_id);

-- Participants
CREATE TABLE IF NOT EXISTS participant (
    decision_id TEXT NOT NULL REFERENCES decision(id),
    participant_id TEXT NOT NULL,
    display_name TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    can_vote BOOLEAN NOT NULL DEFAULT TRUE,
    can_delegate BOOLEAN NOT NULL DEFAULT FALSE,
    status TEXT NOT NULL DEFAULT 'invited' CHECK (status IN ('invited', 'active', 'voted')),
    last_active_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (decision_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_participant_token ON participant(token);

-- Live votes: one per participant per decision
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL REFERENCES decision(id),
    participant_id TEXT NOT NULL,
    option_id TEXT NOT NULL REFERENCES option(id),
    vote_type TEXT NOT NULL,
    ranking INTEGER,
    score DOUBLE PRECISION,
    weight DOUBLE PRECISION NOT NULL DEFAULT 1 CHECK (weight >= 0.1 AND weight <= 10),
    sentiment TEXT NOT NULL DEFAULT '',
    comment TEXT NOT NULL DEFAULT '',
    origin_hash TEXT NOT NULL DEFAULT '',
    client TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    UNIQUE (decision_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_decision_id ON vote(decision_id);

-- Audit trail (append-only)
CREATE TABLE IF NOT EXISTS vote_audit (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    action TEXT NOT NULL CHECK (action IN ('CAST', 'CHANGE', 'RETRACT')),
    old_value {{json}},
    new_value {{json}},
    origin TEXT NOT NULL DEFAULT '',
    client TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_audit_decision ON vote_audit(decision_id, created_at);

-- Consensus history (append-only time series)
CREATE TABLE IF NOT EXISTS consensus_history (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    consensus_level DOUBLE PRECISION NOT NULL,
    total_votes INTEGER NOT NULL,
    participant_count INTEGER NOT NULL,
    leading_option_id TEXT,
    is_consensus_reached BOOLEAN NOT NULL,
    algorithm TEXT NOT NULL,
    confidence_score DOUBLE PRECISION NOT NULL,
    payload {{json}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_consensus_history_decision ON consensus_history(decision_id, recorded_at);

-- Confirmation pool
CREATE TABLE IF NOT EXISTS confirmation (
    decision_id TEXT NOT NULL REFERENCES decision(id),
    participant_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (decision_id, participant_id)
);
`
