// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/models"
)

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	testCases := []struct {
		name   string
		status int
		write  func(w http.ResponseWriter)
	}{
		{"implicit 200", http.StatusOK, func(w http.ResponseWriter) { w.Write([]byte("consensus")) }},
		{"created vote", http.StatusCreated, func(w http.ResponseWriter) { JSONResponse(w, http.StatusCreated, models.AddOptionResponse{OptionID: "opt-9"}) }},
		{"conflict", http.StatusConflict, func(w http.ResponseWriter) { ErrorFrom(w, apperr.ErrInvalidTransition) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) { tc.write(w) })

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest("POST", "/decisions/abc/votes", nil))

			if w.Code != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, w.Code)
			}

			var entry struct {
				Msg    string `json:"msg"`
				Path   string `json:"path"`
				Status int    `json:"status"`
			}
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
				t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
			}
			if entry.Msg != "request completed" || entry.Path != "/decisions/abc/votes" {
				t.Errorf("Unexpected log entry %+v", entry)
			}
			if entry.Status != tc.status {
				t.Errorf("Expected logged status %d, got %d", tc.status, entry.Status)
			}
		})
	}
}

func TestJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()

	JSONResponse(w, http.StatusCreated, models.AddOptionResponse{OptionID: "opt-1"})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"option_id":"opt-1"}` {
		t.Errorf("Unexpected body '%s'", body)
	}
}

func TestErrorFrom(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
		expectedKey  string
	}{
		{"validation", apperr.ErrMissingRank, http.StatusBadRequest, "missing_rank"},
		{"not open", apperr.ErrDecisionNotOpen, http.StatusBadRequest, "decision_not_open"},
		{"missing token", apperr.ErrMissingToken, http.StatusUnauthorized, "missing_token"},
		{"not eligible", apperr.ErrNotEligible, http.StatusForbidden, "not_eligible"},
		{"not found", apperr.ErrDecisionNotFound, http.StatusNotFound, "decision_not_found"},
		{"no vote", apperr.ErrNoVote, http.StatusNotFound, "vote_not_found"},
		{"concurrent", apperr.ErrConcurrentVote, http.StatusConflict, "concurrent_vote"},
		{"transition", apperr.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{"wrapped", fmt.Errorf("cast: %w", apperr.ErrOptionNotFound), http.StatusNotFound, "option_not_found"},
		{"timeout", fmt.Errorf("failed to query decision: %w", context.DeadlineExceeded), http.StatusInternalServerError, ""},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			ErrorFrom(w, tc.err)

			if w.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d", tc.expectedCode, w.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Code != tc.expectedKey {
				t.Errorf("Expected code '%s', got '%s'", tc.expectedKey, resp.Code)
			}
			if resp.Error != http.StatusText(tc.expectedCode) {
				t.Errorf("Expected error '%s', got '%s'", http.StatusText(tc.expectedCode), resp.Error)
			}
			if resp.Message == "" {
				t.Error("Expected a message")
			}
		})
	}
}

func TestErrorFrom_KeepsSpecificMessage(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFrom(w, apperr.Validation("invalid_window", "hours must be between 1 and 720"))

	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if resp.Message != "hours must be between 1 and 720" {
		t.Errorf("Unexpected message '%s'", resp.Message)
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		body := `{"optionId":"opt-1","voteType":"ranked","ranking":2}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.VoteInput
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.OptionID != "opt-1" || parsed.VoteType != "ranked" {
			t.Errorf("Unexpected vote input %+v", parsed)
		}
		if parsed.Ranking == nil || *parsed.Ranking != 2 {
			t.Error("Expected ranking 2")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid json}`))

		var parsed models.VoteInput
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))

		var parsed models.VoteInput
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for empty body")
		}
	})
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})
	handler := CORS(next, []string{"https://app.example"})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/decisions/abc/votes", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", HeaderParticipantToken)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Body.String() == "handled" {
			t.Error("Preflight must not reach the handler")
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
			t.Errorf("Expected allowed origin, got '%s'", got)
		}
		allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
		if !strings.Contains(allowed, strings.ToLower(HeaderParticipantToken)) {
			t.Errorf("Expected %s in allowed headers, got '%s'", HeaderParticipantToken, allowed)
		}
		if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut) {
			t.Error("Expected PUT in allowed methods")
		}
	})

	t.Run("simple request from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions/abc", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Body.String() != "handled" {
			t.Error("Expected next handler to be called")
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
			t.Errorf("Expected allowed origin, got '%s'", got)
		}
	})

	t.Run("other origin gets no grant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions/abc", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Expected no allowed origin, got '%s'", got)
		}
	})
}

func TestCORSWithoutOriginsGrantsNoCredentials(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS(next, nil)

	for _, method := range []string{http.MethodGet, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/decisions/abc", nil)
			req.Header.Set("Origin", "https://elsewhere.example")
			if method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Expected wildcard origin, got '%s'", got)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
				t.Errorf("Expected no credentials grant, got '%s'", got)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{"forwarded chain uses first hop", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.1.1"}, "10.0.0.2:443", "198.51.100.7"},
		{"forwarded entry is trimmed", map[string]string{"X-Forwarded-For": "  198.51.100.8 "}, "10.0.0.2:443", "198.51.100.8"},
		{"real ip when not forwarded", map[string]string{"X-Real-IP": "198.51.100.9"}, "10.0.0.2:443", "198.51.100.9"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "198.51.100.7", "X-Real-IP": "198.51.100.9"}, "10.0.0.2:443", "198.51.100.7"},
		{"remote host without port", nil, "192.0.2.44:61000", "192.0.2.44"},
		{"bare remote address", nil, "192.0.2.45", "192.0.2.45"},
		{"ipv6 remote", nil, "[2001:db8::2]:8080", "2001:db8::2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/decisions/abc", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			if got := GetClientIP(req); got != tc.expectedIP {
				t.Errorf("Expected IP '%s', got '%s'", tc.expectedIP, got)
			}
		})
	}
}
