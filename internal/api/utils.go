package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSONResponse(w, r, status, map[string]interface{}{
		"success":    false,
		"error":      message,
		"request_id": middleware.GetReqID(r.Context()),
	})
}

// ErrorResponseWith writes an error response with extra top-level fields,
// e.g. attemptsLeft for a wrong verification code.
func ErrorResponseWith(w http.ResponseWriter, r *http.Request, status int, message string, extra map[string]interface{}) {
	resp := map[string]interface{}{
		"success":    false,
		"error":      message,
		"request_id": middleware.GetReqID(r.Context()),
	}
	for k, v := range extra {
		resp[k] = v
	}
	WriteJSONResponse(w, r, status, resp)
}

// ValidationErrorResponse writes a 400 with a field -> message map.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		ErrorResponseWith(w, r, http.StatusBadRequest, ve.Error(), map[string]interface{}{
			"fieldErrors": ve.Fields,
		})
		return
	}
	ErrorResponse(w, r, http.StatusBadRequest, err.Error())
}

// StatusForError maps the error taxonomy onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthenticated), errors.Is(err, types.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrExpired):
		return http.StatusGone
	case errors.Is(err, types.ErrFrozen):
		return http.StatusLocked
	case errors.Is(err, types.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, types.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrPersistenceDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var taxonomy = []error{
	types.ErrValidation, types.ErrUnauthenticated, types.ErrInvalidCredentials,
	types.ErrForbidden, types.ErrNotFound, types.ErrConflict, types.ErrExpired,
	types.ErrFrozen, types.ErrRateLimited, types.ErrUpstream, types.ErrPersistenceDisabled,
}

// publicMessage strips the trailing sentinel text so "profile not found: not
// found" is shown as "profile not found".
func publicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			if trimmed := strings.TrimSuffix(msg, ": "+sentinel.Error()); trimmed != "" {
				msg = trimmed
			}
			break
		}
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// ServiceErrorResponse writes the response for an error returned by a
// service. Unclassified errors get the fallback message and a 500.
func ServiceErrorResponse(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		ValidationErrorResponse(w, r, ve)
		return
	}
	var ae *types.AttemptsError
	if errors.As(err, &ae) {
		ErrorResponseWith(w, r, http.StatusBadRequest, "Invalid verification code", map[string]interface{}{
			"attemptsLeft": ae.AttemptsLeft,
		})
		return
	}
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		ErrorResponse(w, r, status, fallback)
		return
	}
	ErrorResponse(w, r, status, publicMessage(err))
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			fieldName = strings.Trim(fieldName, `"`)
			return fmt.Errorf("body contains unknown key %q", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		case errors.As(err, &invalidUnmarshalError):
			panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))

		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// VerifyAudience reports whether expectedAudience is present in the claim.
// An empty expectation always passes.
func VerifyAudience(claimsAudience jwt.ClaimStrings, expectedAudience string) bool {
	if expectedAudience == "" {
		return true
	}
	for _, aud := range claimsAudience {
		if aud == expectedAudience {
			return true
		}
	}
	return false
}
