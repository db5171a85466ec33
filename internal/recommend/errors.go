// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package recommend

import "errors"

// ErrUserNotFound is returned when the requested user id has no row in
// the loaded user feature table. The API maps it to 404.
var ErrUserNotFound = errors.New("user id not found")

// ErrVariantNotConfigured is returned when a request resolves to an
// experiment variant the service holds no model for. This indicates a
// deployment misconfiguration, not a client error.
var ErrVariantNotConfigured = errors.New("experiment variant not configured")
