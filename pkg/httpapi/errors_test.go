package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind errors.Kind
		want int
	}{
		{errors.KindInvalidInput, http.StatusBadRequest},
		{errors.KindInvalidStage, http.StatusUnprocessableEntity},
		{errors.KindTerminalStage, http.StatusUnprocessableEntity},
		{errors.KindInvalidState, http.StatusUnprocessableEntity},
		{errors.KindNotFound, http.StatusNotFound},
		{errors.KindAlreadyResolved, http.StatusConflict},
		{errors.KindConflict, http.StatusConflict},
		{errors.KindNotEligible, http.StatusForbidden},
		{errors.KindInternal, http.StatusInternalServerError},
		{errors.KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := StatusForKind(tt.kind); got != tt.want {
				t.Errorf("StatusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.E(errors.KindTerminalStage, "engagement.Advance", "engagement already delivered"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Kind != "terminal_stage" {
		t.Errorf("kind = %q, want terminal_stage", body.Error.Kind)
	}
	if body.Error.Message != "engagement already delivered" {
		t.Errorf("message = %q, want the workflow message", body.Error.Message)
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.E(errors.KindInternal, "store.SaveEngagement", "disk I/O error at /var/lib/soc.db"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Message != "internal error" {
		t.Errorf("message = %q, internal detail should not leak", body.Error.Message)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["id"] != "abc" {
		t.Errorf("id = %q, want abc", body["id"])
	}
}
