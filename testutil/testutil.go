// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-agree/auth"
	"github.com/danielhkuo/quickly-agree/cliparse"
	"github.com/danielhkuo/quickly-agree/db"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
)

// SetupTestDB creates a fresh SQLite database file with the full schema.
// The file lives in the test's temp dir and disappears with it.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(db.TypeSQLite, "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn, db.TypeSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseURL:      "file::memory:",
		DatabaseType:     db.TypeSQLite,
		AdminKeySalt:     "test-admin-salt",
		CacheTTL:         cliparse.DefaultCacheTTL,
		CacheSize:        64,
		StoreTimeout:     cliparse.DefaultStoreTimeout,
		SweepInterval:    cliparse.DefaultSweepInterval,
		HistoryWindowMax: cliparse.DefaultHistoryWindowMax,
		LogLevel:         "error",
	}
}

// CreateTestDecision inserts a decision in the given state and returns its
// ID and admin key. A nil config uses models.DefaultConfig.
func CreateTestDecision(t *testing.T, conn *sql.DB, cfg cliparse.Config, state string, dcfg *models.DecisionConfig) (decisionID, adminKey string) {
	t.Helper()

	decisionID = auth.NewID()
	adminKey = auth.GenerateAdminKey(decisionID, cfg.AdminKeySalt)

	config := models.DefaultConfig()
	if dcfg != nil {
		config = *dcfg
	}

	d := models.Decision{
		ID:         decisionID,
		Title:      "Test Decision",
		ProposerID: "proposer",
		State:      state,
		Config:     config,
		CreatedAt:  time.Now().UTC(),
	}
	if state == models.StateClosed {
		now := time.Now().UTC()
		d.ClosedAt = &now
	}

	if err := store.New(conn, 0).InsertDecision(context.Background(), d); err != nil {
		t.Fatalf("Failed to create test decision: %v", err)
	}

	return decisionID, adminKey
}

// AddTestOption appends an option to a decision and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, decisionID, text string) string {
	t.Helper()

	st := store.New(conn, 0)
	ctx := context.Background()

	pos, err := st.NextOptionPosition(ctx, decisionID)
	if err != nil {
		t.Fatalf("Failed to read option position: %v", err)
	}

	optionID := auth.NewID()
	err = st.InsertOption(ctx, models.Option{
		ID:         optionID,
		DecisionID: decisionID,
		Text:       text,
		Position:   pos,
	})
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// CreateTestParticipant invites a voting participant and returns its ID and token
func CreateTestParticipant(t *testing.T, conn *sql.DB, decisionID, name string) (participantID, token string) {
	t.Helper()
	return createParticipant(t, conn, decisionID, name, true, false)
}

// CreateTestDelegate invites a participant allowed to cast delegated votes
func CreateTestDelegate(t *testing.T, conn *sql.DB, decisionID, name string) (participantID, token string) {
	t.Helper()
	return createParticipant(t, conn, decisionID, name, true, true)
}

// CreateTestObserver invites a participant that may not vote
func CreateTestObserver(t *testing.T, conn *sql.DB, decisionID, name string) (participantID, token string) {
	t.Helper()
	return createParticipant(t, conn, decisionID, name, false, false)
}

func createParticipant(t *testing.T, conn *sql.DB, decisionID, name string, canVote, canDelegate bool) (string, string) {
	t.Helper()

	participantID := auth.NewID()
	token, err := auth.GenerateParticipantToken()
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	err = store.New(conn, 0).InsertParticipant(context.Background(), models.Participant{
		DecisionID:    decisionID,
		ParticipantID: participantID,
		DisplayName:   name,
		Token:         token,
		CanVote:       canVote,
		CanDelegate:   canDelegate,
		Status:        models.ParticipantInvited,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to create test participant: %v", err)
	}

	return participantID, token
}

// InsertTestVote writes a single-choice vote directly, bypassing the ledger
func InsertTestVote(t *testing.T, conn *sql.DB, decisionID, participantID, optionID string, at time.Time) string {
	t.Helper()

	voteID := auth.NewID()
	err := store.New(conn, 0).InsertVote(context.Background(), models.Vote{
		ID:            voteID,
		DecisionID:    decisionID,
		ParticipantID: participantID,
		OptionID:      optionID,
		VoteType:      models.VoteSingle,
		Weight:        models.DefaultWeight,
		CreatedAt:     at.UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	return voteID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
