// Package httputil holds the JSON response and request helpers shared by
// handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	dErrors "anonid/pkg/domain-errors"
)

const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalizer is implemented by request types that trim or canonicalize their
// fields before validation.
type Normalizer interface {
	Normalize()
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Message          string `json:"message,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP response. Internal errors never
// carry a description.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err, "")
}

// WriteLocalizedError is WriteError plus a localized, non-technical message
// chosen from the request's Accept-Language header.
func WriteLocalizedError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	writeError(w, err, dErrors.UserMessage(code, r.Header.Get("Accept-Language")))
}

func writeError(w http.ResponseWriter, err error, message string) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code), Message: message}
	if de, ok := dErrors.As(err); ok {
		if code != dErrors.CodeInternal {
			body.ErrorDescription = de.Message
		}
		if de.RetryAfter > 0 {
			secs := int(math.Ceil(de.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}
	WriteJSON(w, StatusFor(code), body)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case dErrors.CodeCorrelationRisk:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes a JSON body into T, normalizes it and validates its
// struct tags. On failure it writes a bad request response and returns false.
// Validation failures are logged by field name only.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body", "request_id", requestID)
		}
		WriteLocalizedError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid json body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizer); ok {
		n.Normalize()
	}

	if err := validate.StructCtx(ctx, &req); err != nil {
		field := ""
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed", "request_id", requestID, "field", field)
		}
		WriteLocalizedError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request: "+field))
		return nil, false
	}
	return &req, true
}
