package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/rates"
	"saldo/internal/report"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrEmptyCategory,
	core.ErrDescriptionTooLong,
	core.ErrInvalidThreshold,
	core.ErrTypeChange,
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity
		}
	}
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, report.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStaleWrite):
		return http.StatusConflict
	case errors.Is(err, core.ErrStorageUnavailable),
		errors.Is(err, core.ErrWriteFailed),
		errors.Is(err, core.ErrNoData),
		errors.Is(err, rates.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures and writes the mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
			log.ComponentHTTP, r.Pattern, log.LogFields{log.FieldPath: r.URL.Path, log.FieldStatusCode: status})
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
