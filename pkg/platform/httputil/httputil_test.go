package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dErrors "anonid/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "digest failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("invalid input includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "vin must be 17 characters"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error_description"] != "vin must be 17 characters" {
			t.Fatalf("expected error_description to be returned for invalid input")
		}
	})

	t.Run("quota exceeded sets retry-after", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeQuotaExceeded, "daily limit reached").WithRetryAfter(1500*time.Millisecond))

		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != "2" {
			t.Fatalf("expected Retry-After 2, got %q", got)
		}
	})

	t.Run("correlation risk is forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeCorrelationRisk, "segment density too high"))
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}
	})
}

func TestWriteLocalizedError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "de")
	w := httptest.NewRecorder()

	WriteLocalizedError(w, r, dErrors.New(dErrors.CodeQuotaExceeded, "daily limit reached"))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(body["message"], "Abfragelimit") {
		t.Fatalf("expected german message, got %q", body["message"])
	}
}

type sampleRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *sampleRequest) Normalize() { s.Name = strings.TrimSpace(s.Name) }

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("valid body is normalized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  acme "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[sampleRequest](w, r, nil, context.Background(), "req-1")
		if !ok {
			t.Fatalf("expected decode to succeed, got %d", w.Code)
		}
		if req.Name != "acme" {
			t.Fatalf("expected normalized name, got %q", req.Name)
		}
	})

	t.Run("whitespace-only field fails validation", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"   "}`))
		w := httptest.NewRecorder()
		if _, ok := DecodeAndPrepare[sampleRequest](w, r, nil, context.Background(), "req-2"); ok {
			t.Fatalf("expected validation failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
		w := httptest.NewRecorder()
		if _, ok := DecodeAndPrepare[sampleRequest](w, r, nil, context.Background(), "req-3"); ok {
			t.Fatalf("expected decode failure")
		}
	})
}
