// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs method, path, status and duration_ms for every request.

# CORS

	handler := middleware.CORS(mux, cfg.CORSOrigins)

Backed by github.com/rs/cors. Allows GET, POST, PUT, DELETE and OPTIONS with
the Content-Type, Authorization, X-Admin-Key and X-Participant-Token
headers. An empty origin list allows any origin.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
	middleware.ErrorFrom(w, err)

ErrorFrom maps apperr kinds to statuses: validation and state 400,
authentication 401, authorization 403, not found 404, conflict 409.
Anything else, including store timeouts, is a 500.

# Client IP Extraction

	ip := middleware.GetClientIP(r)

The result is hashed into the vote audit trail.
*/
package middleware
