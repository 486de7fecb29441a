// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package validation

import (
	"math"
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator() should return one non-nil instance")
	}
}

type eventRequest struct {
	UserID       string   `json:"user_id" validate:"required,max=16"`
	BehaviorType string   `json:"behavior_type" validate:"required,behavior_type"`
	Scenario     string   `json:"scenario" validate:"omitempty,scenario"`
	Value        *float64 `json:"value" validate:"omitempty,signed_unit"`
	Limit        int      `json:"limit" validate:"min=0,max=50"`
	Exclude      []string `json:"exclude" validate:"max=2"`
}

func ptr(v float64) *float64 { return &v }

func valid() eventRequest {
	return eventRequest{UserID: "u1", BehaviorType: "borrow", Scenario: "homepage", Value: ptr(0.5), Limit: 10}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*eventRequest)
		wantField string
		wantTag   string
	}{
		{"valid", func(*eventRequest) {}, "", ""},
		{"nil value skipped", func(r *eventRequest) { r.Value = nil }, "", ""},
		{"boundary value", func(r *eventRequest) { r.Value = ptr(-1) }, "", ""},
		{"missing user", func(r *eventRequest) { r.UserID = "" }, "user_id", "required"},
		{"long user", func(r *eventRequest) { r.UserID = strings.Repeat("u", 17) }, "user_id", "max"},
		{"unknown behavior", func(r *eventRequest) { r.BehaviorType = "teleport" }, "behavior_type", "behavior_type"},
		{"unknown scenario", func(r *eventRequest) { r.Scenario = "sidebar" }, "scenario", "scenario"},
		{"value above one", func(r *eventRequest) { r.Value = ptr(1.5) }, "value", "signed_unit"},
		{"value NaN", func(r *eventRequest) { r.Value = ptr(math.NaN()) }, "value", "signed_unit"},
		{"limit too high", func(r *eventRequest) { r.Limit = 51 }, "limit", "max"},
		{"too many excludes", func(r *eventRequest) { r.Exclude = []string{"a", "b", "c"} }, "exclude", "max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			verr := ValidateStruct(&req)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected a validation error")
			}
			errs := verr.Errors()
			if len(errs) != 1 || errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("errors = %v, want %s/%s", verr, tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		req := valid()
		req.BehaviorType = "teleport"
		apiErr := ValidateStruct(&req).ToAPIError()
		if apiErr.Code != Code {
			t.Errorf("code = %s", apiErr.Code)
		}
		if apiErr.Message != "behavior_type must be a known behavior type" {
			t.Errorf("message = %q", apiErr.Message)
		}
		if apiErr.Details["field"] != "behavior_type" {
			t.Errorf("details = %v", apiErr.Details)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		req := valid()
		req.UserID = ""
		req.Limit = 99
		apiErr := ValidateStruct(&req).ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 2 {
			t.Fatalf("details = %v", apiErr.Details)
		}
		if !strings.Contains(apiErr.Message, "user_id is required") || !strings.Contains(apiErr.Message, "limit must be at most 50") {
			t.Errorf("message = %q", apiErr.Message)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := (&RequestValidationError{}).ToAPIError(); got.Code != Code || got.Message != "Validation failed" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestTranslateMinMaxUnits(t *testing.T) {
	req := valid()
	req.UserID = strings.Repeat("u", 20)
	req.Exclude = []string{"a", "b", "c"}
	msg := ValidateStruct(&req).Error()
	for _, want := range []string{"user_id must be at most 16 characters", "exclude must be at most 2 entries"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
