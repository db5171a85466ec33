// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package models defines the wire types shared by the API handlers and
// the recommendation pipeline.
package models

// PostGet is one recommended post as returned to the client.
//
// Example:
//
//	{"id": 2047, "text": "Morning routines that stick", "topic": "lifestyle"}
type PostGet struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Topic string `json:"topic"`
}

// ABResponse wraps a recommendation list with the resolved experiment
// group in A/B mode.
//
// Example:
//
//	{"exp_group": "test", "recommendations": [{"id": 2047, ...}]}
type ABResponse struct {
	ExpGroup        string    `json:"exp_group"`
	Recommendations []PostGet `json:"recommendations"`
}

// ErrorResponse is the error body for client-visible failures. The
// detail string is intentionally terse; internals are logged, not leaked.
//
// Example:
//
//	{"detail": "user id not found"}
type ErrorResponse struct {
	Detail string `json:"detail"`
}
