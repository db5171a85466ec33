// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package bucketing assigns users to experiment variants.
//
// Assignment is a pure function of (user id, salt, group count): no
// state, no randomness, stable across process restarts and across
// implementations. The digest algorithm is pinned to MD5 because the
// deployed experiment split was produced with it; changing the digest
// or the salt reshuffles every user between groups.
package bucketing

import (
	"crypto/md5" //nolint:gosec // not used for security; pinned for split parity
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
)

// Variant is one assigned branch of an A/B experiment.
type Variant int

const (
	// Control is the baseline branch (remainder 0).
	Control Variant = iota
	// Test is the treatment branch (remainder 1).
	Test
)

// String returns the wire label for the variant.
func (v Variant) String() string {
	switch v {
	case Control:
		return "control"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// ParseVariant maps a wire label back to a Variant.
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "control":
		return Control, true
	case "test":
		return Test, true
	}
	return Control, false
}

// Assign deterministically buckets a user into a variant: the MD5 digest
// of strconv.Itoa(userID)+salt, interpreted as a big unsigned integer,
// reduced modulo groups. Remainder 0 maps to Control, 1 to Test.
//
// Any other remainder means groups is misconfigured; that is a
// configuration error, not a user error, and should have been rejected
// at startup validation.
func Assign(userID int, salt string, groups int) (Variant, error) {
	if groups < 1 {
		return Control, fmt.Errorf("group count must be >= 1, got %d", groups)
	}

	sum := md5.Sum([]byte(strconv.Itoa(userID) + salt)) //nolint:gosec // pinned digest, see package doc
	digest := new(big.Int)
	// The hex digest always parses; SetString cannot fail here.
	digest.SetString(hex.EncodeToString(sum[:]), 16)

	remainder := new(big.Int).Mod(digest, big.NewInt(int64(groups))).Int64()
	switch remainder {
	case 0:
		return Control, nil
	case 1:
		return Test, nil
	default:
		return Control, fmt.Errorf("remainder %d has no variant label: check group count %d", remainder, groups)
	}
}
