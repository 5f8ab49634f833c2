// Package httputil holds the JSON response and request helpers shared by all
// handlers, including the error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the normalized error fields.
type ErrorDetail struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	RequestID  string                 `json:"request_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError normalizes err into the error envelope. Internal and external
// failures are redacted when production is set; all authentication codes
// collapse to the kind string on the wire.
func WriteError(w http.ResponseWriter, r *http.Request, err error, production bool) {
	appErr := apperr.From(err)
	status := appErr.HTTPStatus()

	detail := ErrorDetail{
		Code:      string(appErr.Kind),
		Message:   appErr.Message,
		RequestID: logger.GetRequestID(r.Context()),
		Details:   appErr.Details,
	}
	if production && !appErr.Kind.Expected() {
		detail.Message = "an internal error occurred"
		detail.Details = nil
	}
	if appErr.Kind == apperr.KindAuthentication {
		// Internal codes (INVALID_TOKEN, EXPIRED_TOKEN, PRINCIPAL_NOT_FOUND)
		// stay in logs only.
		detail.Details = nil
	}
	if appErr.RetryAfter > 0 {
		seconds := int(appErr.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		detail.RetryAfter = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	WriteJSON(w, status, ErrorBody{Error: detail})
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields, oversized
// bodies and trailing data.
func DecodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is required")
		case errors.As(err, &maxErr):
			return apperr.Validation(fmt.Sprintf("request body must be at most %d bytes", maxErr.Limit))
		default:
			return apperr.Validation("request body is not valid JSON")
		}
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON object")
	}
	return nil
}
