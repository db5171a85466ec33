// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/asmolin/feedrank/internal/logging"
	"github.com/asmolin/feedrank/internal/models"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Err(err).Msg("encode response")
	}
}

// respondDetail writes the detail-style error body used for every
// client-visible failure.
func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, models.ErrorResponse{Detail: detail})
}

// queryInt parses an integer query parameter. ok is false when the
// parameter is absent; a present but malformed value is an error.
func queryInt(r *http.Request, name string) (value int, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s must be an integer", name)
	}
	return value, true, nil
}

// timeFormats are the accepted layouts for the time query parameter:
// RFC3339 and the zone-less variant clients commonly send.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime parses the request timestamp. Zone-less layouts are read
// as UTC.
func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("time must be an ISO 8601 timestamp")
}
