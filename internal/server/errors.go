package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"statsvault/internal/api"
	"statsvault/internal/blobstore"
	"statsvault/internal/store"
	"statsvault/internal/vault"
)

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "remote_addr", r.RemoteAddr)
		if r.Pattern != "" {
			fields = append(fields, "route", r.Pattern)
		} else {
			fields = append(fields, "path", r.URL.Path)
		}
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// writeServiceError maps a coordinator or store failure onto the wire.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := vaultError(err)
	s.writeErrorReq(w, r, httpStatusFromError(mapped), mapped)
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func conflictCode(err error, code int) error {
	return makeAPIError(http.StatusConflict, "conflict", code, err)
}

func exhausted(err error) error {
	return makeAPIError(http.StatusGone, "exhausted", ErrCodeExhausted, err)
}

func tooLarge(err error) error {
	return makeAPIError(http.StatusRequestEntityTooLarge, "too_large", ErrCodeRequestTooLarge, err)
}

func internalErrorCode(err error, code int) error {
	return makeAPIError(http.StatusInternalServerError, "internal", code, err)
}

// vaultError classifies errors from the coordinator. Order matters: the
// no-payload error also matches store.ErrNotFound.
func vaultError(err error) error {
	var existing apiError
	if errors.As(err, &existing) {
		return existing
	}
	switch {
	case errors.Is(err, vault.ErrNoPayload):
		return notFoundCode(err, ErrCodePayloadNotFound)
	case errors.Is(err, store.ErrNotFound):
		return notFoundCode(err, ErrCodeEntryNotFound)
	case errors.Is(err, store.ErrExhausted):
		return exhausted(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return conflictCode(err, ErrCodeEntryExists)
	case errors.Is(err, blobstore.ErrTooLarge):
		return tooLarge(err)
	case errors.Is(err, vault.ErrInvalidToken):
		return badRequestCode(err, ErrCodeInvalidToken)
	case errors.Is(err, vault.ErrInvalidID):
		return badRequestCode(err, ErrCodeInvalidID)
	case errors.Is(err, vault.ErrUnsupportedCommand):
		return badRequestCode(err, ErrCodeUnsupportedCommand)
	case errors.Is(err, blobstore.ErrCorrupt):
		return internalErrorCode(err, ErrCodePayloadCorrupt)
	default:
		return internalErrorCode(err, ErrCodeStoreFailure)
	}
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "exhausted"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return tooLarge(fmt.Errorf("request body too large: %w", blobstore.ErrTooLarge))
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	if err := decodeJSON(w, r, maxBytes, dst); err != nil {
		mapped := classifyDecodeJSONError(err)
		s.writeErrorReq(w, r, httpStatusFromError(mapped), mapped)
		return false
	}
	return true
}
