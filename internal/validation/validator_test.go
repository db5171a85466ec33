// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package validation

import (
	"strings"
	"testing"
)

type recommendationParams struct {
	UserID int `validate:"required,gt=0"`
	Limit  int `validate:"gte=0,lte=200"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		if err := ValidateStruct(&recommendationParams{UserID: 200, Limit: 5}); err != nil {
			t.Errorf("ValidateStruct = %v, want nil", err)
		}
	})

	t.Run("zero limit is allowed", func(t *testing.T) {
		if err := ValidateStruct(&recommendationParams{UserID: 1, Limit: 0}); err != nil {
			t.Errorf("ValidateStruct = %v, want nil", err)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		err := ValidateStruct(&recommendationParams{Limit: 5})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if got := err.Errors()[0].Field(); got != "UserID" {
			t.Errorf("Field() = %q, want UserID", got)
		}
	})

	t.Run("limit over cap", func(t *testing.T) {
		err := ValidateStruct(&recommendationParams{UserID: 1, Limit: 500})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "less than or equal to 200") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("multiple errors join", func(t *testing.T) {
		err := ValidateStruct(&recommendationParams{UserID: -1, Limit: 500})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if len(err.Errors()) != 2 {
			t.Errorf("Errors() has %d entries, want 2", len(err.Errors()))
		}
		if !strings.Contains(err.Error(), ";") {
			t.Errorf("Error() = %q, want joined messages", err.Error())
		}
	})
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned different instances")
	}
}
